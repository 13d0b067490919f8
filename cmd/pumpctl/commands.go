package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/app"
	"github.com/rovshanmuradov/pump-curve/internal/export"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

var errGenesisExists = errors.New("ledger snapshot already exists, pass -force to replace it")

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("pumpctl "+name, flag.ContinueOnError)
}

// resolveKey accepts a wallet name or a base58 address.
func resolveKey(e *env, s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, errors.New("address is required")
	}
	if w, err := e.runner.Wallet(s); err == nil {
		return w.PublicKey, nil
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%q is neither a wallet nor an address: %w", s, err)
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cmdGenesis(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("genesis")
	users := fs.String("users", "alice,bob", "comma separated user wallets to create and fund")
	force := fs.Bool("force", false, "replace an existing ledger snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(e.cfg.SnapshotPath); err == nil && !*force {
		return errGenesisExists
	}

	cfg, err := e.runner.Genesis(ctx, app.DefaultGenesis(splitList(*users)...))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderConfig(cfg))
	fmt.Fprintln(e.out, renderWallets(ctx, e.runner))
	return nil
}

// optionalBool is a flag that remembers whether it was set.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string   { return strconv.FormatBool(b.value) }
func (b *optionalBool) IsBoolFlag() bool { return true }
func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func cmdConfigure(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("configure")
	var paused, pauseLaunch, pauseSwap optionalBool
	fs.Var(&paused, "paused", "pause or resume the whole program")
	fs.Var(&pauseLaunch, "pause-launch", "pause or resume launches")
	fs.Var(&pauseSwap, "pause-swap", "pause or resume swaps")
	feeRecipient := fs.String("fee-recipient", "", "new fee recipient (wallet name or address)")
	authority := fs.String("authority", "", "hand the admin role to this wallet or address")
	buyFee := fs.Float64("buy-fee", -1, "buy fee percent")
	sellFee := fs.Float64("sell-fee", -1, "sell fee percent")
	curveLimit := fs.Uint64("curve-limit", 0, "lamports that complete a curve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := e.runner.Configure(ctx, func(c *pump.Config) error {
		if paused.set {
			c.Paused = paused.value
		}
		if pauseLaunch.set {
			c.PauseLaunch = pauseLaunch.value
		}
		if pauseSwap.set {
			c.PauseSwap = pauseSwap.value
		}
		if *feeRecipient != "" {
			key, err := resolveKey(e, *feeRecipient)
			if err != nil {
				return err
			}
			c.FeeRecipient = key
		}
		if *authority != "" {
			key, err := resolveKey(e, *authority)
			if err != nil {
				return err
			}
			c.Authority = key
		}
		if *buyFee >= 0 {
			c.BuyFeePercent = *buyFee
		}
		if *sellFee >= 0 {
			c.SellFeePercent = *sellFee
		}
		if *curveLimit > 0 {
			c.CurveLimit = *curveLimit
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderConfig(cfg))
	return nil
}

func cmdLaunch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("launch")
	creator := fs.String("creator", "alice", "creator wallet")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	uri := fs.String("uri", "", "metadata uri")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := e.runner.Launch(ctx, *creator, pump.LaunchArgs{Name: *name, Symbol: *symbol, URI: *uri})
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderPairs("Launched "+*symbol, [][2]string{
		{"mint", res.Accounts.Mint.String()},
		{"bonding curve", res.Accounts.BondingCurve.String()},
		{"curve token account", res.Accounts.TokenAccount.String()},
		{"signature", res.Signature.String()},
	}))
	return nil
}

func cmdSwap(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("swap")
	user := fs.String("user", "bob", "trading wallet")
	mintArg := fs.String("mint", "", "token mint")
	side := fs.String("side", "buy", "buy or sell")
	amount := fs.Uint64("amount", 0, "lamports to spend on buy, token base units to sell")
	slippage := fs.Uint("slippage-bps", 100, "slippage tolerance in basis points")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := resolveKey(e, *mintArg)
	if err != nil {
		return err
	}
	dir := pump.DirectionBuy
	switch *side {
	case "buy":
	case "sell":
		dir = pump.DirectionSell
	default:
		return fmt.Errorf("unknown side %q", *side)
	}

	res, err := e.runner.Swap(ctx, *user, mint, *amount, dir, uint32(*slippage))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderSwap(res))
	return nil
}

func cmdMigrate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("migrate")
	mintArg := fs.String("mint", "", "token mint")
	nonce := fs.Uint("nonce", 0, "pool nonce passed to the adapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := resolveKey(e, *mintArg)
	if err != nil {
		return err
	}
	res, err := e.runner.Migrate(ctx, mint, uint8(*nonce))
	if err != nil {
		return err
	}
	pairs := [][2]string{
		{"adapter", string(e.cfg.AdapterKind())},
		{"adapter program", res.Adapter.String()},
		{"signature", res.Signature.String()},
	}
	if res.Pool != nil {
		pairs = append(pairs,
			[2]string{"pool tokens", export.Tokens(res.Pool.AmountToken)},
			[2]string{"pool wsol", export.SOL(res.Pool.AmountWsol)},
			[2]string{"lp mint", res.Pool.LpMint.String()},
		)
	}
	fmt.Fprintln(e.out, renderPairs("Migrated "+mint.String(), pairs))
	return nil
}

func cmdRelease(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("release")
	mintArg := fs.String("mint", "", "token mint")
	recipientArg := fs.String("recipient", app.AdminWallet, "recipient wallet or address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mint, err := resolveKey(e, *mintArg)
	if err != nil {
		return err
	}
	recipient, err := resolveKey(e, *recipientArg)
	if err != nil {
		return err
	}
	res, err := e.runner.Release(ctx, mint, recipient)
	if res != nil {
		fmt.Fprintln(e.out, renderReleases([]export.ReleaseRow{res.Row()}))
	}
	return err
}

func cmdSweep(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("sweep")
	recipientArg := fs.String("recipient", app.AdminWallet, "recipient wallet or address")
	mintsArg := fs.String("mints", "", "comma separated mints, default every completed curve")
	format := fs.String("format", string(export.FormatCSV), "report format: csv or json")
	onlySuccess := fs.Bool("only-success", false, "leave failed releases out of the report")
	outDir := fs.String("out", "", "report directory, default export_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	recipient, err := resolveKey(e, *recipientArg)
	if err != nil {
		return err
	}
	var mints []solana.PublicKey
	for _, s := range splitList(*mintsArg) {
		key, err := resolveKey(e, s)
		if err != nil {
			return err
		}
		mints = append(mints, key)
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	report, err := e.runner.Sweep(ctx, recipient, mints, export.ExportOptions{
		Format:      f,
		OutputDir:   *outDir,
		OnlySuccess: *onlySuccess,
	})
	if report != nil {
		rows := make([]export.ReleaseRow, len(report.Results))
		for i, r := range report.Results {
			rows[i] = r.Row()
		}
		fmt.Fprintln(e.out, renderReleases(rows))
		fmt.Fprintln(e.out, renderSummary(report))
	}
	return err
}

func cmdCurveState(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("curve-state")
	mintArg := fs.String("mint", "", "token mint, empty lists every curve")
	ownerArg := fs.String("owner", "", "also show this wallet's token balance for the mint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mintArg == "" {
		curves, err := e.runner.Curves(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, renderCurves(curves))
		return nil
	}
	mint, err := resolveKey(e, *mintArg)
	if err != nil {
		return err
	}
	state, err := e.runner.CurveState(ctx, mint)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderCurveState(state))
	if *ownerArg == "" {
		return nil
	}
	owner, err := resolveKey(e, *ownerArg)
	if err != nil {
		return err
	}
	ata, amount, err := e.runner.HolderBalance(ctx, mint, owner)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderPairs("Holder", [][2]string{
		{"owner", owner.String()},
		{"token account", ata.String()},
		{"holder tokens", export.Tokens(amount)},
	}))
	return nil
}

func cmdEvents(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("events")
	filter := fs.String("event", "", "only print this event name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := e.runner.Journal().Records(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderJournal(records, *filter))
	return nil
}

func cmdIDL(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("idl")
	outFile := fs.String("out", "", "write the IDL to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	programID, err := e.cfg.ProgramKey()
	if err != nil {
		return err
	}
	raw, err := pump.MarshalIDL(programID)
	if err != nil {
		return err
	}
	if *outFile == "" {
		_, err = fmt.Fprintln(e.out, string(raw))
		return err
	}
	return os.WriteFile(*outFile, append(raw, '\n'), 0o644)
}

func cmdIDLCheck(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("idl-check")
	file := fs.String("file", "idl/pump.json", "IDL file to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	programID, err := e.cfg.ProgramKey()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	problems, err := pump.CheckIDL(raw, programID)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(e.out, okStyle.Render("IDL OK: "+*file))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(e.out, errorStyle.Render("✗ ")+p)
	}
	return fmt.Errorf("%s: %d problem(s)", *file, len(problems))
}

// cmdErrors decodes the custom code a wallet or explorer shows for a failed
// transaction, e.g. "custom program error: 0x1772".
func cmdErrors(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("errors")
	code := fs.String("code", "", "custom error code, decimal or 0x hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		fmt.Fprintln(e.out, renderProgramErrors(pump.Errors()))
		return nil
	}
	n, err := strconv.ParseUint(*code, 0, 32)
	if err != nil {
		return fmt.Errorf("parse code %q: %w", *code, err)
	}
	pe, ok := pump.ErrorByCode(uint32(n))
	if !ok {
		return fmt.Errorf("code %d is not a pump program error", n)
	}
	fmt.Fprintln(e.out, renderProgramErrors([]*pump.Error{pe}))
	return nil
}
