package main

import (
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/imagegen"
	"github.com/jingkaihe/skillbox/pkg/imagegen/gemini"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

// GeminiImageConfig holds the flags of `gemini-image generate`
type GeminiImageConfig struct {
	Model      string
	Aspect     string
	References []string
	RefKB      int
	OutDir     string
}

// NewGeminiImageConfig creates a GeminiImageConfig with default values
func NewGeminiImageConfig() *GeminiImageConfig {
	return &GeminiImageConfig{
		Model: gemini.DefaultModel,
		RefKB: gemini.DefaultRefKB,
	}
}

func getGeminiImageConfigFromFlags(cmd *cobra.Command) *GeminiImageConfig {
	config := NewGeminiImageConfig()
	if model, err := cmd.Flags().GetString("model"); err == nil && model != "" {
		config.Model = model
	}
	config.Aspect, _ = cmd.Flags().GetString("aspect")
	config.References, _ = cmd.Flags().GetStringSlice("ref")
	if kb, err := cmd.Flags().GetInt("ref-kb"); err == nil {
		config.RefKB = kb
	}
	config.OutDir, _ = cmd.Flags().GetString("out-dir")
	return config
}

var geminiImageCmd = &cobra.Command{
	Use:   "gemini-image",
	Short: "Generate images with Gemini",
	Long: `Generate images with Gemini's native image models.

Requires GEMINI_API_KEY. The estimated cost of every generation is kept in a
ledger; see 'gemini-image costs'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), gemini.Tool))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var geminiImageGenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate images from a prompt and optional reference images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := getGeminiImageConfigFromFlags(cmd)

		apiKey, err := config.Credential(config.GeminiAPIKey)
		if err != nil {
			return err
		}

		req := gemini.Request{Prompt: args[0], Model: cfg.Model, Aspect: cfg.Aspect}
		for _, path := range cfg.References {
			ref, err := imagegen.LoadReference(ctx, path, cfg.RefKB)
			if err != nil {
				return err
			}
			req.References = append(req.References, ref)
		}

		client, err := gemini.New(ctx, gemini.Config{
			APIKey:  apiKey,
			BaseURL: config.Lookup("GEMINI_BASE_URL"),
		})
		if err != nil {
			return err
		}
		result, err := client.Generate(ctx, req)
		if err != nil {
			return err
		}
		return saveAndRecord(cmd, gemini.Tool, "gemini", args[0], result)
	},
}

func init() {
	defaults := NewGeminiImageConfig()
	geminiImageGenerateCmd.Flags().String("model", defaults.Model, "Gemini image model")
	geminiImageGenerateCmd.Flags().String("aspect", "", "Aspect ratio hint such as 16:9")
	geminiImageGenerateCmd.Flags().StringSlice("ref", nil, "Reference image (repeatable)")
	geminiImageGenerateCmd.Flags().Int("ref-kb", defaults.RefKB, "Size budget of each reference image in KB")
	geminiImageGenerateCmd.Flags().String("out-dir", "", "Directory for generated images (default: the output directory)")

	geminiImageCmd.AddCommand(geminiImageGenerateCmd, newCostsCmd(gemini.Tool))
	rootCmd.AddCommand(geminiImageCmd)
}
