package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Simplici0/quotecalc/internal/describe"
)

// generatorFlags selects the model backend for the commands that talk to one.
type generatorFlags struct {
	mode  string
	url   string
	model string
}

func (f *generatorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "mock", "generator: mock or ollama")
	cmd.Flags().StringVar(&f.url, "ollama-url", describe.DefaultOllamaURL, "Ollama server URL")
	cmd.Flags().StringVar(&f.model, "model", "", "model to use (must be installed)")
}

func (f *generatorFlags) service(ctx context.Context, a *app) (*describe.Service, error) {
	var gen describe.Generator
	switch f.mode {
	case "mock":
		gen = describe.NewMock()
	case "ollama":
		gen = describe.NewOllama(f.url, "", nil)
	default:
		return nil, fmt.Errorf("unknown mode %q (mock or ollama)", f.mode)
	}
	if f.model != "" {
		if err := gen.SetModel(ctx, f.model); err != nil {
			return nil, err
		}
	}
	return describe.NewService(ctx, gen, a.store, a.logger), nil
}

func newDescribeCmd(a *app) *cobra.Command {
	var flags generatorFlags

	cmd := &cobra.Command{
		Use:   "describe TEXT...",
		Short: "Turn work notes into a customer-facing labor description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := flags.service(ctx, a)
			if err != nil {
				return err
			}
			d, err := svc.Describe(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.Text)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newRecommendCmd(a *app) *cobra.Command {
	var flags generatorFlags

	cmd := &cobra.Command{
		Use:   "recommend REQUEST...",
		Short: "Suggest services for a customer's request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := flags.service(ctx, a)
			if err != nil {
				return err
			}
			advice, err := svc.Recommend(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), advice.Text)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newAnalyzePricingCmd(a *app) *cobra.Command {
	var flags generatorFlags

	cmd := &cobra.Command{
		Use:   "analyze-pricing SERVICE...",
		Short: "Suggest pricing and bundles for the given services",
		Long: `Asks the model for pricing and bundle suggestions. Each argument is one service name:
  quotecalc analyze-pricing "Virus Removal" "Tune-Up"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := flags.service(ctx, a)
			if err != nil {
				return err
			}
			advice, err := svc.AnalyzePricing(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), advice.Text)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
