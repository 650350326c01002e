package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/imagefit"
	"github.com/jingkaihe/skillbox/pkg/presenter"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Local image utilities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var imageFitCmd = &cobra.Command{
	Use:   "fit <path>",
	Short: "Shrink an image until it fits a size budget",
	Long: `Shrink an image until it fits a size budget.

The image is re-encoded at decreasing widths and quality for a bounded number
of attempts. When the budget cannot be met the smallest result is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetKB, _ := cmd.Flags().GetInt("target-kb")
		out, _ := cmd.Flags().GetString("out")
		dataURI, _ := cmd.Flags().GetBool("data-uri")

		result, err := imagefit.Fit(cmd.Context(), args[0], imagefit.Options{TargetKB: targetKB})
		if err != nil {
			return err
		}

		summary := fmt.Sprintf("%s: %dKB -> %dKB after %d attempts", filepath.Base(args[0]),
			result.OriginalSize/1024, len(result.Data)/1024, result.Attempts)
		if result.Fits {
			presenter.Info(summary)
		} else {
			presenter.Warning(summary + fmt.Sprintf(", still over %dKB", result.TargetKB))
		}

		if dataURI {
			fmt.Fprintln(cmd.OutOrStdout(), imagefit.DataURI(result))
			return nil
		}

		if out == "" {
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			out = outputPath("", base+"-fit", result.MIMEType)
		}
		if err := writeOutputFile(out, result.Data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	imageFitCmd.Flags().Int("target-kb", imagefit.DefaultTargetKB, "Size budget in KB")
	imageFitCmd.Flags().StringP("out", "o", "", "Output file (defaults to a new file in the output directory)")
	imageFitCmd.Flags().Bool("data-uri", false, "Print a base64 data URI instead of writing a file")

	imageCmd.AddCommand(imageFitCmd)
	rootCmd.AddCommand(imageCmd)
}
