// Package gemini generates images with Gemini's native image models.
package gemini

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/jingkaihe/skillbox/pkg/imagegen"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

const (
	// Tool names the ledger file.
	Tool = "gemini-image"
	// DefaultModel is the image model used when none is given.
	DefaultModel = "gemini-2.5-flash-image"
	// DefaultRefKB is the size budget for each inlined reference image.
	DefaultRefKB = 900
)

// pricePerImage is the output price of one generated image in USD.
var pricePerImage = map[string]float64{
	"gemini-2.5-flash-image":                    0.039,
	"gemini-2.5-flash-image-preview":            0.039,
	"gemini-2.0-flash-preview-image-generation": 0.039,
}

// CostPerImage returns the estimated price of one image and whether the model
// is in the pricing table.
func CostPerImage(model string) (float64, bool) {
	p, ok := pricePerImage[model]
	return p, ok
}

// Request describes one generation.
type Request struct {
	Prompt string
	Model  string
	// Aspect is an aspect ratio hint such as 16:9.
	Aspect     string
	References []imagegen.Image
}

// Client wraps a genai client.
type Client struct {
	genai *genai.Client
}

// Config configures New.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// New creates a client for the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}
	return &Client{genai: client}, nil
}

// prompt is the text sent to the model, with the aspect hint appended.
func (r Request) prompt() string {
	if r.Aspect == "" {
		return r.Prompt
	}
	return r.Prompt + "\n\nAspect ratio: " + r.Aspect + "."
}

// Generate runs generateContent with text and image output enabled.
func (c *Client) Generate(ctx context.Context, req Request) (*imagegen.Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is empty")
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	parts := []*genai.Part{genai.NewPartFromText(req.prompt())}
	for _, ref := range req.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	logger.G(ctx).WithField("model", model).WithField("references", len(req.References)).Debug("calling generateContent")

	resp, err := c.genai.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini generateContent failed")
	}

	result := &imagegen.Result{Model: model, Size: req.Aspect}
	var text []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch {
			case part.InlineData != nil && len(part.InlineData.Data) > 0:
				result.Images = append(result.Images, imagegen.Image{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				})
			case part.Text != "":
				text = append(text, part.Text)
			}
		}
	}
	result.Text = strings.TrimSpace(strings.Join(text, "\n"))

	if len(result.Images) == 0 {
		if result.Text != "" {
			return nil, errors.Errorf("gemini returned no image: %s", result.Text)
		}
		return nil, errors.New("gemini returned no image")
	}

	price, known := CostPerImage(model)
	if !known {
		logger.G(ctx).WithField("model", model).Warn("no price known for model, cost recorded as 0")
	}
	result.Cost = price * float64(len(result.Images))
	return result, nil
}
