// Package openai generates and edits images with the OpenAI images API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/jingkaihe/skillbox/pkg/imagegen"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

const (
	// Tool names the ledger file.
	Tool = "openai-image"

	DefaultModel   = "gpt-image-1"
	DefaultSize    = "1024x1024"
	DefaultQuality = "medium"
)

// Client wraps a go-openai client.
type Client struct {
	api        *openai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// Config configures New.
type Config struct {
	APIKey string
	// BaseURL overrides the API root, e.g. https://api.openai.com/v1.
	BaseURL string
}

// New creates a client.
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(clientConfig),
		httpClient: http.DefaultClient,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(clientConfig.BaseURL, "/"),
	}
}

// Request describes a generation or an edit.
type Request struct {
	Prompt  string
	Model   string
	Size    string
	Quality string
	N       int
	// Image and Mask are only used by Edit.
	Image string
	Mask  string
}

func (r *Request) applyDefaults() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.Size == "" {
		r.Size = DefaultSize
	}
	if r.Quality == "" {
		r.Quality = defaultQuality(r.Model)
	}
	if r.N <= 0 {
		r.N = 1
	}
	if r.N > 10 {
		return errors.Errorf("n must be between 1 and 10, got %d", r.N)
	}
	if r.Model == "dall-e-3" && r.N != 1 {
		return errors.New("dall-e-3 only supports n=1")
	}
	return nil
}

func defaultQuality(model string) string {
	switch model {
	case "dall-e-3":
		return "standard"
	case "dall-e-2":
		return ""
	default:
		return DefaultQuality
	}
}

// gpt-image-1 always answers with base64 and rejects response_format.
func responseFormat(model string) string {
	if strings.HasPrefix(model, "dall-e") {
		return openai.CreateImageResponseFormatB64JSON
	}
	return ""
}

// Generate calls images/generations.
func (c *Client) Generate(ctx context.Context, req Request) (*imagegen.Result, error) {
	if err := req.applyDefaults(); err != nil {
		return nil, err
	}

	logger.G(ctx).WithField("model", req.Model).WithField("size", req.Size).WithField("n", req.N).Debug("generating images")

	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          req.Model,
		N:              req.N,
		Quality:        req.Quality,
		Size:           req.Size,
		ResponseFormat: responseFormat(req.Model),
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai image generation failed")
	}
	return c.collect(ctx, req, resp)
}

// Edit calls images/edits with the source image and an optional mask.
//
// The request is built here rather than with CreateEditImage because the SDK
// does not send model or quality, and the API then falls back to dall-e-2.
func (c *Client) Edit(ctx context.Context, req Request) (*imagegen.Result, error) {
	if err := req.applyDefaults(); err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, errors.New("an image to edit is required")
	}

	body, contentType, err := editForm(req)
	if err != nil {
		return nil, err
	}

	logger.G(ctx).WithField("model", req.Model).WithField("image", req.Image).Debug("editing image")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build edit request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "openai image edit failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(apiError(resp), "openai image edit failed")
	}

	var imageResp openai.ImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imageResp); err != nil {
		return nil, errors.Wrap(err, "failed to decode edit response")
	}
	return c.collect(ctx, req, imageResp)
}

func editForm(req Request) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := addImagePart(w, "image", req.Image); err != nil {
		return nil, "", errors.Wrap(err, "failed to read image")
	}
	if req.Mask != "" {
		if err := addImagePart(w, "mask", req.Mask); err != nil {
			return nil, "", errors.Wrap(err, "failed to read mask")
		}
	}

	fields := [][2]string{
		{"prompt", req.Prompt},
		{"model", req.Model},
		{"n", strconv.Itoa(req.N)},
		{"size", req.Size},
	}
	if req.Quality != "" {
		fields = append(fields, [2]string{"quality", req.Quality})
	}
	if format := responseFormat(req.Model); format != "" {
		fields = append(fields, [2]string{"response_format", format})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", errors.Wrapf(err, "failed to write %s", f[0])
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish edit form")
	}
	return &buf, w.FormDataContentType(), nil
}

// addImagePart attaches a file with its sniffed content type; the API rejects
// application/octet-stream for gpt-image-1.
func addImagePart(w *multipart.Writer, field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filepath.Base(path)))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		return errors.Errorf("status %d: %s", resp.StatusCode, errResp.Error.Message)
	}
	return errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

func (c *Client) collect(ctx context.Context, req Request, resp openai.ImageResponse) (*imagegen.Result, error) {
	result := &imagegen.Result{Model: req.Model, Size: req.Size, Quality: req.Quality}

	for i, item := range resp.Data {
		var data []byte
		switch {
		case item.B64JSON != "":
			decoded, err := base64.StdEncoding.DecodeString(item.B64JSON)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to decode image %d", i+1)
			}
			data = decoded
		case item.URL != "":
			downloaded, err := c.download(ctx, item.URL)
			if err != nil {
				return nil, err
			}
			data = downloaded
		default:
			continue
		}
		if item.RevisedPrompt != "" {
			result.RevisedPrompt = item.RevisedPrompt
		}
		result.Images = append(result.Images, imagegen.Image{Data: data, MIMEType: http.DetectContentType(data)})
	}

	if len(result.Images) == 0 {
		return nil, errors.New("openai returned no images")
	}

	price, known := CostPerImage(req.Model, req.Size, req.Quality)
	if !known {
		logger.G(ctx).WithField("model", req.Model).WithField("size", req.Size).WithField("quality", req.Quality).
			Warn("no price known, cost recorded as 0")
	}
	result.Cost = price * float64(len(result.Images))
	return result, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build download request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("image download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	return data, errors.Wrap(err, "failed to read image")
}

// prices maps model, then size, then quality to USD per image.
var prices = map[string]map[string]map[string]float64{
	"gpt-image-1": {
		"1024x1024": {"low": 0.011, "medium": 0.042, "high": 0.167},
		"1024x1536": {"low": 0.016, "medium": 0.063, "high": 0.25},
		"1536x1024": {"low": 0.016, "medium": 0.063, "high": 0.25},
	},
	"dall-e-3": {
		"1024x1024": {"standard": 0.04, "hd": 0.08},
		"1024x1792": {"standard": 0.08, "hd": 0.12},
		"1792x1024": {"standard": 0.08, "hd": 0.12},
	},
	"dall-e-2": {
		"256x256":   {"": 0.016},
		"512x512":   {"": 0.018},
		"1024x1024": {"": 0.02},
	},
}

// CostPerImage estimates the price of one image. "auto" size and quality are
// priced as 1024x1024 and medium.
func CostPerImage(model, size, quality string) (float64, bool) {
	if size == "auto" || size == "" {
		size = DefaultSize
	}
	if quality == "auto" {
		quality = DefaultQuality
	}
	if model == "dall-e-2" {
		quality = ""
	}

	bySize, ok := prices[model]
	if !ok {
		return 0, false
	}
	byQuality, ok := bySize[size]
	if !ok {
		return 0, false
	}
	p, ok := byQuality[quality]
	return p, ok
}

// Describe summarizes a request for log and ledger output.
func Describe(r *imagegen.Result) string {
	if r.Quality == "" {
		return fmt.Sprintf("%s %s", r.Model, r.Size)
	}
	return fmt.Sprintf("%s %s %s", r.Model, r.Size, r.Quality)
}
