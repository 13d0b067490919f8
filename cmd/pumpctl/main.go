// Command pumpctl operates a pump curve deployment on a persisted local
// ledger: genesis, configuration, launches, trades, migrations and reserve
// sweeps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/app"
	"github.com/rovshanmuradov/pump-curve/internal/config"
	"github.com/rovshanmuradov/pump-curve/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

// env is what every subcommand runs against.
type env struct {
	cfg    *config.Config
	runner *app.Runner
	logger *zap.Logger
	out    io.Writer
}

type command struct {
	name  string
	usage string
	// offline commands do not touch the ledger.
	offline bool
	run     func(ctx context.Context, e *env, args []string) error
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("pumpctl", flag.ContinueOnError)
	configPath := global.String("config", "", "path to the deployment config (yaml or json)")
	envFile := global.String("env", ".env", "dotenv file with PUMP_* overrides")
	metricsFile := global.String("metrics", "", "write prometheus metrics to this file on exit")
	global.Usage = func() { usage(global.Output()) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		usage(global.Output())
		return errors.New("no command given")
	}

	cmd, ok := commands()[global.Arg(0)]
	if !ok {
		usage(global.Output())
		return fmt.Errorf("unknown command %q", global.Arg(0))
	}

	// .env необязателен
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	e := &env{cfg: cfg, logger: log.Logger, out: out}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.offline {
		defer log.Sync()
		return cmd.run(ctx, e, global.Args()[1:])
	}

	reg := prometheus.NewRegistry()
	e.runner, err = app.NewRunner(cfg, log.Logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.runner.Close(closeCtx); err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("shutdown: "+err.Error()))
		}
	}()

	if cmd.name != "genesis" {
		if err := e.runner.Load(ctx); err != nil {
			return err
		}
	}

	end := log.TrackPerformance(cmd.name)
	runErr := cmd.run(ctx, e, global.Args()[1:])
	end()

	// failed transactions still pay fees and advance the ledger
	if !errors.Is(runErr, app.ErrNotInitialized) && !errors.Is(runErr, errGenesisExists) {
		if err := e.runner.Save(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			return errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
		}
	}
	return runErr
}

func commands() map[string]*command {
	list := []*command{
		{name: "genesis", usage: "create a fresh ledger, fund wallets and write the global config", run: cmdGenesis},
		{name: "configure", usage: "update the global config as admin", run: cmdConfigure},
		{name: "launch", usage: "launch a token on a new bonding curve", run: cmdLaunch},
		{name: "swap", usage: "buy or sell against a bonding curve", run: cmdSwap},
		{name: "migrate", usage: "migrate a completed curve to the configured pool adapter", run: cmdMigrate},
		{name: "release", usage: "release one curve's reserves to a recipient", run: cmdRelease},
		{name: "sweep", usage: "release many curves concurrently and export a report", run: cmdSweep},
		{name: "curve-state", usage: "show one curve, or list every curve", run: cmdCurveState},
		{name: "events", usage: "print the event journal", run: cmdEvents},
		{name: "idl", usage: "print the program IDL", offline: true, run: cmdIDL},
		{name: "idl-check", usage: "validate an IDL file against the program", offline: true, run: cmdIDLCheck},
		{name: "errors", usage: "list program error codes, or look one up", offline: true, run: cmdErrors},
	}
	out := make(map[string]*command, len(list))
	for _, c := range list {
		out[c.name] = c
	}
	return out
}

func usage(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("pumpctl")+" [-config file] [-env file] [-metrics file] <command> [flags]")
	fmt.Fprintln(w)
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, cmds[name].usage)
	}
}
