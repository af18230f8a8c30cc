package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ledgerops/evm-submit/client"
	"github.com/ledgerops/evm-submit/config"
	"github.com/ledgerops/evm-submit/submission"
)

// Exit codes of the evm-submit binary.
const (
	ExitFailure    = 1
	ExitUnresolved = 2
)

// app is the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	envFile string
	cfg     *config.Config
	log     zerolog.Logger

	shutdownTracing func(context.Context) error
}

// Execute runs the command line and returns the error of the failed command,
// if any.
func Execute(ctx context.Context) error {
	root, a := newRootCommand()
	err := root.ExecuteContext(ctx)
	if a.shutdownTracing != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := a.shutdownTracing(shutdownCtx); serr != nil {
			a.log.Warn().Err(serr).Msg("could not flush traces")
		}
	}
	return err
}

// ExitCode maps the error returned by Execute to the process exit code. A
// transaction whose outcome is still unknown gets its own code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case submission.IsUnresolved(err):
		return ExitUnresolved
	default:
		return ExitFailure
	}
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: viper.New(), log: zerolog.Nop()}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:               "evm-submit",
		Short:             "Submit ether transfers to an EVM chain and query its state",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file providing ARB_RPC, PRIVKEY, TO_ADDR, AMOUNT and GAS_PRICE_GWEI")
	pf.String("rpc", config.DefaultRPCEndpoint, "JSON-RPC endpoint of the node")
	pf.String("chain-id", strconv.Itoa(config.DefaultChainID), "chain id transactions are signed for")
	pf.Duration("call-timeout", config.DefaultCallTimeout, "timeout of a single RPC call")
	pf.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.String("otlp-endpoint", "", "host:port of an OTLP/HTTP trace collector, tracing is off if empty")
	pf.Bool("otlp-insecure", false, "send traces over plain HTTP")
	a.bind(pf, map[string]string{
		config.KeyRPCEndpoint:   "rpc",
		config.KeyChainID:       "chain-id",
		config.KeyCallTimeout:   "call-timeout",
		config.KeyLogLevel:      "log-level",
		config.KeyTraceEndpoint: "otlp-endpoint",
		config.KeyTraceInsecure: "otlp-insecure",
	})

	root.AddCommand(
		a.sendCommand(),
		a.balanceCommand(),
		a.blockCommand(),
		a.gasCommand(),
	)
	return root, a
}

func (a *app) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// load reads the environment, the env file and the flags into a.cfg and
// sets up logging and tracing.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	a.v.AutomaticEnv()
	if err := config.ReadEnvFile(a.v, a.envFile, cmd.Flag("env-file").Changed); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	shutdown, err := setupTracing(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown
	return nil
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().
		Logger()
}

func (a *app) dial(ctx context.Context) (*client.Client, error) {
	return client.Dial(ctx, a.cfg.RPCEndpoint,
		client.WithPerCallTimeout(a.cfg.PerCallTimeout),
		client.WithLogger(a.log),
	)
}
