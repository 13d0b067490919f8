package pump

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/gjson"
)

// ErrInvalidIDL is returned for files that are not JSON.
var ErrInvalidIDL = errors.New("idl is not valid json")

var idlSections = []string{"address", "metadata", "instructions", "accounts", "events", "errors", "types"}

var idlRequired = []struct {
	path string
	what string
}{
	{`types.#(name=="Config").type.fields.#(name=="authority")`, "Config.authority"},
	{`types.#(name=="Config").type.fields.#(name=="paused")`, "Config.paused"},
	{`types.#(name=="BondingCurve").type.fields.#(name=="is_completed")`, "BondingCurve.is_completed"},
	{`instructions.#(name=="release_reserves")`, "release_reserves instruction"},
	{`instructions.#(name=="migrate")`, "migrate instruction"},
	{`events.#(name=="ReservesReleased")`, "ReservesReleased event"},
}

// CheckIDL validates an IDL document against the program built for
// programID. It returns one message per problem; an empty result means the
// file is current.
func CheckIDL(raw []byte, programID solana.PublicKey) ([]string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidIDL
	}
	doc := gjson.ParseBytes(raw)
	var problems []string

	if addr := doc.Get("address").String(); addr != programID.String() {
		problems = append(problems, fmt.Sprintf("address is %q, want %s", addr, programID))
	}
	for _, req := range idlRequired {
		if !doc.Get(req.path).Exists() {
			problems = append(problems, "missing "+req.what)
		}
	}

	seeds := constSeeds(doc)
	for _, want := range []string{GlobalConfigSeed, BondingCurveSeed} {
		if !seeds[want] {
			problems = append(problems, fmt.Sprintf("missing %q seed constant", want))
		}
	}

	drift, err := idlDrift(doc, programID)
	if err != nil {
		return nil, err
	}
	return append(problems, drift...), nil
}

// constSeeds collects every const PDA seed used by an instruction account.
func constSeeds(doc gjson.Result) map[string]bool {
	out := make(map[string]bool)
	doc.Get("instructions.#.accounts.#.pda.seeds").ForEach(func(_, perIx gjson.Result) bool {
		perIx.ForEach(func(_, perAccount gjson.Result) bool {
			perAccount.ForEach(func(_, seed gjson.Result) bool {
				if seed.Get("kind").String() != "const" {
					return true
				}
				var b []byte
				seed.Get("value").ForEach(func(_, v gjson.Result) bool {
					b = append(b, byte(v.Uint()))
					return true
				})
				out[string(b)] = true
				return true
			})
			return true
		})
		return true
	})
	return out
}

// idlDrift compares each top-level section with the generated IDL after
// decoding both, so key order and whitespace do not matter.
func idlDrift(doc gjson.Result, programID solana.PublicKey) ([]string, error) {
	generated, err := MarshalIDL(programID)
	if err != nil {
		return nil, err
	}
	want := gjson.ParseBytes(generated)

	var problems []string
	for _, section := range idlSections {
		var got, exp interface{}
		if r := doc.Get(section); r.Exists() {
			if err := json.Unmarshal([]byte(r.Raw), &got); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidIDL, section, err)
			}
		}
		if err := json.Unmarshal([]byte(want.Get(section).Raw), &exp); err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(got, exp) {
			problems = append(problems, fmt.Sprintf("%s drifted from the program, regenerate the IDL", section))
		}
	}
	return problems, nil
}
