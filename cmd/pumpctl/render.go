package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rovshanmuradov/pump-curve/internal/app"
	"github.com/rovshanmuradov/pump-curve/internal/export"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
	"github.com/rovshanmuradov/pump-curve/internal/storage"
)

var (
	cyan   = lipgloss.Color("#00E5FF")
	green  = lipgloss.Color("#2AFFAA")
	red    = lipgloss.Color("#FF5555")
	yellow = lipgloss.Color("#FFB500")
	muted  = lipgloss.Color("#6C7280")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	keyStyle    = lipgloss.NewStyle().Foreground(muted)
	okStyle     = lipgloss.NewStyle().Foreground(green)
	errorStyle  = lipgloss.NewStyle().Foreground(red)
	warnStyle   = lipgloss.NewStyle().Foreground(yellow)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(cyan).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(muted)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderPairs(title string, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	lines := []string{titleStyle.Render(title)}
	for _, p := range pairs {
		lines = append(lines, keyStyle.Width(width+2).Render(p[0])+p[1])
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderError prints err with a follow-up hint for the failures an
// operator can clear from the command line.
func renderError(err error) string {
	msg := errorStyle.Render("error: " + err.Error())
	switch {
	case pump.IsPausedError(err):
		return msg + "\n" + warnStyle.Render("hint: resume with pumpctl configure -paused=false -pause-launch=false -pause-swap=false")
	case pump.IsSlippageExceededError(err):
		return msg + "\n" + warnStyle.Render("hint: retry with a larger -slippage-bps")
	case pump.IsAlreadyMigratedError(err):
		return msg + "\n" + warnStyle.Render("hint: check curve-state, the curve is already in its pool")
	}
	return msg
}

func renderProgramErrors(errs []*pump.Error) string {
	rows := make([][]string, 0, len(errs))
	for _, pe := range errs {
		rows = append(rows, []string{strconv.FormatUint(uint64(pe.Code), 10), fmt.Sprintf("0x%x", pe.Code), pe.Name, pe.Msg})
	}
	return renderTable([]string{"code", "hex", "name", "message"}, rows)
}

func yesNo(b bool) string {
	if b {
		return warnStyle.Render("yes")
	}
	return "no"
}

func renderConfig(cfg *pump.Config) string {
	return renderPairs("Global config", [][2]string{
		{"authority", cfg.Authority.String()},
		{"fee recipient", cfg.FeeRecipient.String()},
		{"curve limit", export.SOL(cfg.CurveLimit) + " SOL"},
		{"virtual reserves", export.Tokens(cfg.InitialVirtualTokenReserves) + " / " + export.SOL(cfg.InitialVirtualSolReserves) + " SOL"},
		{"real token reserves", export.Tokens(cfg.InitialRealTokenReserves)},
		{"total supply", export.Tokens(cfg.TotalTokenSupply)},
		{"fees buy/sell/migration", fmt.Sprintf("%g%% / %g%% / %g%%", cfg.BuyFeePercent, cfg.SellFeePercent, cfg.MigrationFeePercent)},
		{"paused", yesNo(cfg.Paused)},
		{"launch paused", yesNo(cfg.PauseLaunch)},
		{"swap paused", yesNo(cfg.PauseSwap)},
		{"completed", yesNo(cfg.IsCompleted)},
		{"raydium program", cfg.ExpectedRaydiumProgram.String()},
		{"meteora program", cfg.ExpectedMeteoraProgram.String()},
	})
}

func renderWallets(ctx context.Context, r *app.Runner) string {
	var rows [][]string
	for _, name := range r.Wallets().Names() {
		w, _ := r.Wallet(name)
		balance, err := r.Ledger().GetBalance(ctx, w.PublicKey)
		cell := export.SOL(balance)
		if err != nil {
			cell = errorStyle.Render(err.Error())
		}
		rows = append(rows, []string{name, w.PublicKey.String(), cell})
	}
	return renderTable([]string{"Wallet", "Address", "SOL"}, rows)
}

func renderSwap(res *app.SwapResult) string {
	q := res.Quote
	pairs := [][2]string{
		{"direction", q.Direction.String()},
		{"amount in", strconv.FormatUint(q.AmountIn, 10)},
		{"fee", export.SOL(q.Fee) + " SOL"},
		{"quoted out", strconv.FormatUint(q.AmountOut, 10)},
		{"min out", strconv.FormatUint(q.MinOut, 10)},
		{"price impact", fmt.Sprintf("%d bps", q.PriceImpactBps)},
		{"signature", res.Signature.String()},
		{"token balance", export.Tokens(res.TokenBalance)},
	}
	if t := res.Trade; t != nil {
		pairs = append(pairs,
			[2]string{"received", strconv.FormatUint(t.AmountOut, 10)},
			[2]string{"real reserves", export.SOL(t.RealSolReserves) + " SOL / " + export.Tokens(t.RealTokenReserves)},
		)
	}
	return renderPairs("Swap", pairs)
}

func renderReleases(rows []export.ReleaseRow) string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		status := okStyle.Render("ok")
		if !r.Success() {
			status = errorStyle.Render(r.Error)
		}
		out = append(out, []string{
			r.Mint,
			export.SOL(r.LamportsSent),
			export.Tokens(r.TokensSent),
			strconv.Itoa(r.Attempts),
			status,
		})
	}
	return renderTable([]string{"Mint", "SOL", "Tokens", "Attempts", "Status"}, out)
}

func renderSummary(report *app.SweepReport) string {
	s := report.Summary
	pairs := [][2]string{
		{"mints", strconv.Itoa(s.TotalMints)},
		{"succeeded", strconv.Itoa(s.Succeeded)},
		{"failed", strconv.Itoa(s.Failed)},
		{"empty", strconv.Itoa(s.Empty)},
		{"total SOL", s.TotalSOL},
		{"total tokens", export.Tokens(s.TotalTokens)},
	}
	if report.ReportPath != "" {
		pairs = append(pairs, [2]string{"report", report.ReportPath})
	}
	return renderPairs("Sweep", pairs)
}

func renderCurves(curves []*pump.BondingCurve) string {
	rows := make([][]string, 0, len(curves))
	for _, c := range curves {
		rows = append(rows, []string{
			c.TokenMint.String(),
			export.SOL(c.RealSolReserves),
			export.Tokens(c.RealTokenReserves),
			yesNo(c.IsCompleted),
			yesNo(c.MigrationCompleted),
		})
	}
	return renderTable([]string{"Mint", "Real SOL", "Real tokens", "Completed", "Migrated"}, rows)
}

func renderCurveState(s *app.CurveState) string {
	c := s.Curve
	pairs := [][2]string{
		{"mint", c.TokenMint.String()},
		{"creator", c.Creator.String()},
		{"decimals", strconv.Itoa(int(s.Decimals))},
		{"supply", export.Tokens(s.Supply)},
		{"bonding curve", s.Accounts.BondingCurve.String()},
		{"virtual reserves", export.Tokens(c.VirtualTokenReserves) + " / " + export.SOL(c.VirtualSolReserves) + " SOL"},
		{"real reserves", export.Tokens(c.RealTokenReserves) + " / " + export.SOL(c.RealSolReserves) + " SOL"},
		{"price", s.Price.String() + " lamports per base unit"},
		{"completed", yesNo(c.IsCompleted)},
		{"migrated", yesNo(c.MigrationCompleted)},
		{"balance", export.SOL(s.Lamports) + " SOL (rent " + export.SOL(s.RentMinimum) + ")"},
		{"curve tokens", export.Tokens(s.TokenBalance)},
		{"curve wsol", export.SOL(s.WSOLBalance)},
		{"releasable", export.SOL(s.Plan.LamportsSent) + " SOL, " + export.Tokens(s.Plan.TokensSent) + " tokens"},
	}
	if s.Pool != nil {
		pairs = append(pairs, [2]string{"pool", s.Pool.Kind + " " + export.Tokens(s.Pool.AmountToken) + " / " + export.SOL(s.Pool.AmountWsol) + " WSOL"})
	}
	return renderPairs("Bonding curve", pairs)
}

func renderJournal(records []*storage.Record, filter string) string {
	var rows [][]string
	for _, rec := range records {
		if filter != "" && rec.Event != filter {
			continue
		}
		detail := string(rec.Payload)
		name := rec.Event
		if rec.Error != "" {
			name = errorStyle.Render(rec.Type)
			detail = rec.Error
		}
		sig := rec.Signature
		if len(sig) > 12 {
			sig = sig[:12] + "…"
		}
		rows = append(rows, []string{strconv.FormatUint(rec.Slot, 10), name, sig, strings.TrimSpace(detail)})
	}
	return renderTable([]string{"Slot", "Event", "Signature", "Payload"}, rows)
}
