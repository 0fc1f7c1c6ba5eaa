package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/charmitro/peak-mem/internal/config"
	"github.com/charmitro/peak-mem/internal/report"
	"github.com/charmitro/peak-mem/internal/store"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage saved baselines",
	}
	cmd.AddCommand(
		newBaselineListCmd(),
		newBaselineShowCmd(),
		newBaselineDeleteCmd(),
	)
	return cmd
}

var flagBaselineJSON bool

func baselineRenderer() *report.Renderer {
	format := report.FormatHuman
	if flagBaselineJSON {
		format = report.FormatJSON
	}
	unit, _ := report.ParseUnit(cfg.Units)
	return report.New(report.Options{Format: format, Unit: unit})
}

func newBaselineListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved baselines",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listBaselines(cmd.Context(), cfg, baselineRenderer(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&flagBaselineJSON, "json", false, "Output in JSON format")
	return cmd
}

func newBaselineShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a saved baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := st.GetBaseline(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load baseline %q: %w", args[0], err)
			}
			return baselineRenderer().Baseline(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().BoolVar(&flagBaselineJSON, "json", false, "Output in JSON format")
	return cmd
}

func newBaselineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved baseline",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteBaseline(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}

func openStore(ctx context.Context, c config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Baseline.Backend, c.Baseline.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open baseline store: %w", err)
	}
	return st, nil
}

func listBaselines(ctx context.Context, c config.Config, r *report.Renderer, w io.Writer) error {
	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.ListBaselines(ctx)
	if err != nil {
		return fmt.Errorf("list baselines: %w", err)
	}
	return r.Baselines(w, list)
}

func deleteBaseline(ctx context.Context, c config.Config, name string, w io.Writer) error {
	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteBaseline(ctx, name); err != nil {
		return fmt.Errorf("delete baseline %q: %w", name, err)
	}
	fmt.Fprintf(w, "Deleted baseline %q\n", name)
	return nil
}
