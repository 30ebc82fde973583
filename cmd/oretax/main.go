package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/batch"
	"github.com/evetools/oretax/internal/clock"
	"github.com/evetools/oretax/internal/config"
	"github.com/evetools/oretax/internal/credit"
	creditservice "github.com/evetools/oretax/internal/credit/service"
	"github.com/evetools/oretax/internal/esi"
	"github.com/evetools/oretax/internal/invoice"
	invoiceservice "github.com/evetools/oretax/internal/invoice/service"
	"github.com/evetools/oretax/internal/migration"
	"github.com/evetools/oretax/internal/miningledger"
	miningservice "github.com/evetools/oretax/internal/miningledger/service"
	"github.com/evetools/oretax/internal/notify"
	"github.com/evetools/oretax/internal/period"
	"github.com/evetools/oretax/internal/pricing"
	"github.com/evetools/oretax/internal/providers"
	"github.com/evetools/oretax/internal/reconcile"
	reconcileservice "github.com/evetools/oretax/internal/reconcile/service"
	"github.com/evetools/oretax/internal/roster"
	"github.com/evetools/oretax/internal/sde"
	"github.com/evetools/oretax/internal/taxation"
	taxservice "github.com/evetools/oretax/internal/taxation/service"
	"github.com/evetools/oretax/internal/taxrate"
	"github.com/evetools/oretax/pkg/db"
	"github.com/evetools/oretax/pkg/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		runApp(fx.Invoke(StartBatch))
	case "migrate":
		// migration.Module applies the schema during startup, so starting
		// the graph and stopping again is the whole job
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner) {
			lc.Append(fx.Hook{OnStart: func(context.Context) error {
				return sd.Shutdown()
			}})
		}))
	case "import":
		p := parsePeriod(args)
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, imp *miningservice.Importer) {
			runAction(lc, sd, logger, func(ctx context.Context) error {
				n, err := imp.Import(ctx, p)
				fmt.Printf("imported %d mining records for %s\n", n, p)
				return err
			})
		}))
	case "calculate":
		p := parsePeriod(args)
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, eng *taxservice.Engine) {
			runAction(lc, sd, logger, func(ctx context.Context) error {
				n, err := eng.Calculate(ctx, p)
				fmt.Printf("calculated %d payer obligations for %s\n", n, p)
				return err
			})
		}))
	case "invoice":
		p := parsePeriod(args)
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, gen *invoiceservice.Generator) {
			runAction(lc, sd, logger, func(ctx context.Context) error {
				invoices, err := gen.Generate(ctx, p)
				fmt.Printf("issued %d invoices for %s\n", len(invoices), p)
				return err
			})
		}))
	case "reconcile":
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, m *reconcileservice.Matcher) {
			runAction(lc, sd, logger, func(ctx context.Context) error {
				n, err := m.Reconcile(ctx)
				fmt.Printf("settled %d invoices\n", n)
				return err
			})
		}))
	case "recompute-credits":
		fs := flag.NewFlagSet("recompute-credits", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "report balances without writing them")
		_ = fs.Parse(args)
		runApp(fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, l *creditservice.Ledger) {
			runAction(lc, sd, logger, func(ctx context.Context) error {
				balances, err := l.Recompute(ctx, *dryRun)
				if err != nil {
					return err
				}
				for characterID, amount := range balances {
					fmt.Printf("character %d: %.2f ISK credit\n", characterID, amount)
				}
				return nil
			})
		}))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fmt.Fprintln(os.Stderr, "usage: oretax [run|migrate|import|calculate|invoice|reconcile|recompute-credits] [flags]")
		os.Exit(2)
	}
}

func baseModules() fx.Option {
	return fx.Options(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(ProvideTokens),
		db.Module,
		clock.Module,
		migration.Module,

		esi.Module,
		sde.Module,
		pricing.Module,
		taxrate.Module,
		roster.Module,
		miningledger.Module,
		taxation.Module,
		invoice.Module,
		reconcile.Module,
		credit.Module,
		providers.Module,
		notify.Module,
		batch.Module,
	)
}

func runApp(invoke fx.Option) {
	app := fx.New(baseModules(), invoke)
	app.Run()
}

// runAction executes a one-shot pipeline action in the background and shuts
// the app down when it finishes, propagating failure through the exit code.
func runAction(lc fx.Lifecycle, sd fx.Shutdowner, logger *zap.Logger, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := fn(ctx); err != nil {
					logger.Error("command failed", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
					return
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func StartBatch(lc fx.Lifecycle, runner *batch.Runner, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting batch pipeline")
			go runner.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// ProvideTokens reads the ESI bearer token from the environment. Without a
// token the client still serves the public market endpoints.
func ProvideTokens() esi.TokenSource {
	return esi.StaticTokenSource(os.Getenv("ESI_TOKEN"))
}

func parsePeriod(args []string) period.Period {
	fs := flag.NewFlagSet("period", flag.ExitOnError)
	raw := fs.String("period", "", "tax period as YYYY-MM (default: current month)")
	_ = fs.Parse(args)

	if *raw == "" {
		return period.Month(clock.SystemClock{}.Now())
	}
	p, err := period.Parse(*raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return p
}
