package pump

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestGeneratedIDLPassesCheck(t *testing.T) {
	raw, err := MarshalIDL(DefaultProgramID)
	require.NoError(t, err)

	problems, err := CheckIDL(raw, DefaultProgramID)
	require.NoError(t, err)
	assert.Empty(t, problems)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, int64(5), doc.Get("instructions.#").Int())
	assert.Equal(t, int64(ErrorCodeOffset), doc.Get(`errors.#(name=="ProgramPaused").code`).Int())
	disc := doc.Get(`accounts.#(name=="Config").discriminator`).Array()
	require.Len(t, disc, 8)
	assert.Equal(t, int64(configDiscriminator[0]), disc[0].Int())
}

func TestCheckIDLIgnoresFormatting(t *testing.T) {
	raw, err := MarshalIDL(DefaultProgramID)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	compact, err := json.Marshal(doc)
	require.NoError(t, err)

	problems, err := CheckIDL(compact, DefaultProgramID)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCheckIDLReportsProblems(t *testing.T) {
	raw, err := MarshalIDL(DefaultProgramID)
	require.NoError(t, err)

	t.Run("not json", func(t *testing.T) {
		_, err := CheckIDL([]byte("{"), DefaultProgramID)
		assert.ErrorIs(t, err, ErrInvalidIDL)
	})

	t.Run("other program", func(t *testing.T) {
		problems, err := CheckIDL(raw, solana.SystemProgramID)
		require.NoError(t, err)
		assert.Contains(t, problems, "address drifted from the program, regenerate the IDL")
		require.NotEmpty(t, problems)
		assert.Contains(t, problems[0], "address is")
	})

	t.Run("missing instruction", func(t *testing.T) {
		idl := BuildIDL(DefaultProgramID)
		kept := idl.Instructions[:0]
		for _, ix := range idl.Instructions {
			if ix.Name != InstructionReleaseReserves {
				kept = append(kept, ix)
			}
		}
		idl.Instructions = kept
		out, err := json.Marshal(idl)
		require.NoError(t, err)

		problems, err := CheckIDL(out, DefaultProgramID)
		require.NoError(t, err)
		assert.Contains(t, problems, "missing release_reserves instruction")
		assert.Contains(t, problems, "instructions drifted from the program, regenerate the IDL")
	})
}
