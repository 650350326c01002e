package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillbox/pkg/config"
	"github.com/jingkaihe/skillbox/pkg/imagegen/openai"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

func getOpenAIImageRequestFromFlags(cmd *cobra.Command, prompt string) openai.Request {
	req := openai.Request{Prompt: prompt}
	req.Model, _ = cmd.Flags().GetString("model")
	req.Size, _ = cmd.Flags().GetString("size")
	req.Quality, _ = cmd.Flags().GetString("quality")
	req.N, _ = cmd.Flags().GetInt("n")
	req.Image, _ = cmd.Flags().GetString("image")
	req.Mask, _ = cmd.Flags().GetString("mask")
	return req
}

func newOpenAIImageClient() (*openai.Client, error) {
	apiKey, err := config.Credential(config.OpenAIAPIKey)
	if err != nil {
		return nil, err
	}
	return openai.New(openai.Config{
		APIKey:  apiKey,
		BaseURL: config.Lookup("OPENAI_BASE_URL"),
	}), nil
}

var openaiImageCmd = &cobra.Command{
	Use:   "openai-image",
	Short: "Generate and edit images with OpenAI",
	Long: `Generate and edit images with the OpenAI images API.

Requires OPENAI_API_KEY. The estimated cost of every call is kept in a ledger;
see 'openai-image costs'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		cmd.SetContext(logger.WithSkill(cmd.Context(), openai.Tool))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var openaiImageGenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate images from a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newOpenAIImageClient()
		if err != nil {
			return err
		}
		result, err := client.Generate(cmd.Context(), getOpenAIImageRequestFromFlags(cmd, args[0]))
		if err != nil {
			return err
		}
		logger.G(cmd.Context()).WithField("request", openai.Describe(result)).Debug("generated images")
		return saveAndRecord(cmd, openai.Tool, "openai", args[0], result)
	},
}

var openaiImageEditCmd = &cobra.Command{
	Use:   "edit <prompt>",
	Short: "Edit an image, optionally restricted to a mask",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := getOpenAIImageRequestFromFlags(cmd, args[0])
		if req.Image == "" {
			return errors.New("--image is required")
		}
		client, err := newOpenAIImageClient()
		if err != nil {
			return err
		}
		result, err := client.Edit(cmd.Context(), req)
		if err != nil {
			return err
		}
		logger.G(cmd.Context()).WithField("request", openai.Describe(result)).Debug("edited image")
		return saveAndRecord(cmd, openai.Tool, "openai-edit", args[0], result)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{openaiImageGenerateCmd, openaiImageEditCmd} {
		cmd.Flags().String("model", openai.DefaultModel, "Image model: gpt-image-1, dall-e-3 or dall-e-2")
		cmd.Flags().String("size", openai.DefaultSize, "Image size, e.g. 1024x1024, 1536x1024 or auto")
		cmd.Flags().String("quality", "", "Quality: low, medium, high or auto (gpt-image-1); standard or hd (dall-e-3)")
		cmd.Flags().Int("n", 1, "Number of images")
		cmd.Flags().String("out-dir", "", "Directory for generated images (default: the output directory)")
	}
	openaiImageEditCmd.Flags().String("image", "", "Image to edit")
	openaiImageEditCmd.Flags().String("mask", "", "PNG mask whose transparent areas are edited")

	openaiImageCmd.AddCommand(openaiImageGenerateCmd, openaiImageEditCmd, newCostsCmd(openai.Tool))
	rootCmd.AddCommand(openaiImageCmd)
}
