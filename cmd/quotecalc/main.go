// Command quotecalc prices IT service quotes from the terminal and keeps a local history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/logging"
	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/storage/filekv"
)

// app is the state shared by every subcommand once the root pre-run has opened it.
type app struct {
	statePath string
	logLevel  string
	verbose   bool

	logger *zap.Logger
	store  *filekv.Store
}

func (a *app) manager(ctx context.Context, opts ...quote.Option) *quote.Manager {
	return quote.NewManager(ctx, a.store, append([]quote.Option{quote.WithLogger(a.logger)}, opts...)...)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "quotecalc",
		Short: "Price IT service quotes",
		Long: `quotecalc prices hardware, parts and labor for IT service quotes.

Items at or below $50 are marked up 2x, items above $50 are marked up 1.3x.
Hardware labor bills $129.90/hr and software labor $120.00/hr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := a.logLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, true)
			if err != nil {
				return err
			}
			a.logger = logger

			store, err := filekv.Open(a.statePath)
			if err != nil {
				return fmt.Errorf("open state %s: %w", a.statePath, err)
			}
			a.store = store
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.statePath, "state", defaultStatePath(), "path of the JSON state file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCalcCmd(a), newHistoryCmd(a), newCatalogCmd(), newDescribeCmd(a), newRecommendCmd(a), newAnalyzePricingCmd(a))
	return root
}

func defaultStatePath() string {
	if p := os.Getenv("STATE_PATH"); p != "" {
		return p
	}
	return "./quotecalc-state.json"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
