package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/imagegen"
	"github.com/jingkaihe/skillbox/pkg/ledger"
	"github.com/jingkaihe/skillbox/pkg/logger"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

func openLedger(tool string) (*ledger.Ledger, error) {
	dir, err := config.LedgerDir()
	if err != nil {
		return nil, err
	}
	return ledger.New(dir, tool), nil
}

// saveAndRecord writes the generated images, prints their paths and adds the
// run to the tool's ledger. A ledger failure is logged, not returned, since
// the images are already on disk.
func saveAndRecord(cmd *cobra.Command, tool, prefix, prompt string, result *imagegen.Result) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = config.OutputDir()
	}

	paths, err := imagegen.Save(outDir, prefix, result.Images)
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	if err != nil {
		return err
	}
	if result.Text != "" {
		presenter.Info(result.Text)
	}
	if result.RevisedPrompt != "" {
		presenter.Info("Revised prompt: " + result.RevisedPrompt)
	}

	l, err := openLedger(tool)
	if err != nil {
		logger.G(cmd.Context()).WithError(err).Warn("failed to open cost ledger")
		return nil
	}
	data, err := imagegen.Record(l, prompt, result)
	if err != nil {
		logger.G(cmd.Context()).WithError(err).Warn("failed to record cost")
		return nil
	}
	presenter.Costs(&presenter.CostStats{
		Tool:       tool,
		TotalCost:  data.TotalCost,
		ImageCount: data.ImageCount,
		LastCost:   result.Cost,
	})
	return nil
}

// newCostsCmd builds the `costs` subcommand of an image tool.
func newCostsCmd(tool string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show or reset the estimated spend of " + tool,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLedger(tool)
			if err != nil {
				return err
			}

			if reset, _ := cmd.Flags().GetBool("reset"); reset {
				if err := l.Reset(); err != nil {
					return err
				}
				presenter.Success("Reset the " + tool + " cost ledger")
				return nil
			}

			data, err := l.Load()
			if err != nil {
				return err
			}
			presenter.Costs(&presenter.CostStats{
				Tool:       tool,
				TotalCost:  data.TotalCost,
				ImageCount: data.ImageCount,
			})

			history, _ := cmd.Flags().GetInt("history")
			if history <= 0 || len(data.History) == 0 {
				return nil
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Time", "Model", "Size", "Quality", "Images", "Cost", "Prompt"})
			table.SetAutoWrapText(false)
			table.SetBorder(false)
			for _, e := range data.Recent(history) {
				table.Append([]string{
					e.Timestamp.Local().Format("2006-01-02 15:04"),
					e.Model,
					e.Size,
					e.Quality,
					fmt.Sprint(e.Images),
					fmt.Sprintf("$%.4f", e.Cost),
					e.Prompt,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Bool("reset", false, "Clear the totals and history")
	cmd.Flags().Int("history", 10, "Number of recent generations to list")
	return cmd
}
