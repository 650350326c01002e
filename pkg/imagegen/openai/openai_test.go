package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillbox/pkg/imagegen"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGenerate_Base64(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		b64 := base64.StdEncoding.EncodeToString(pngBytes)
		io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+b64+`"},{"b64_json":"`+b64+`"}]}`)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	result, err := client.Generate(context.Background(), Request{Prompt: "a red fox", N: 2, Quality: "high"})
	require.NoError(t, err)

	require.Len(t, result.Images, 2)
	assert.Equal(t, pngBytes, result.Images[0].Data)
	assert.Equal(t, "image/png", result.Images[0].MIMEType)
	assert.InDelta(t, 2*0.167, result.Cost, 1e-9)

	assert.Equal(t, "gpt-image-1", payload["model"])
	assert.Equal(t, "1024x1024", payload["size"])
	assert.NotContains(t, payload, "response_format")
}

func TestGenerate_URLDownload(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"created":1,"data":[{"url":"`+srvURL+`/files/img.png","revised_prompt":"a red fox in snow"}]}`)
	})
	mux.HandleFunc("/files/img.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(pngBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	result, err := client.Generate(context.Background(), Request{Prompt: "a red fox", Model: "dall-e-3"})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, pngBytes, result.Images[0].Data)
	assert.Equal(t, "a red fox in snow", result.RevisedPrompt)
	assert.Equal(t, "standard", result.Quality)
	assert.InDelta(t, 0.04, result.Cost, 1e-9)
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"Your request was rejected by the safety system.","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}).Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "safety system")
}

func writeEditInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	image := filepath.Join(dir, "cat.png")
	mask := filepath.Join(dir, "mask.png")
	require.NoError(t, os.WriteFile(image, pngBytes, 0o644))
	require.NoError(t, os.WriteFile(mask, pngBytes, 0o644))
	return image, mask
}

func TestEdit(t *testing.T) {
	var form *multipart.Form
	var maskType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images/edits", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm

		_, imageHeader, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "cat.png", imageHeader.Filename)
		assert.Equal(t, "image/png", imageHeader.Header.Get("Content-Type"))

		_, maskHeader, err := r.FormFile("mask")
		require.NoError(t, err)
		maskType = maskHeader.Header.Get("Content-Type")

		io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+base64.StdEncoding.EncodeToString(pngBytes)+`"}]}`)
	}))
	defer srv.Close()

	image, mask := writeEditInputs(t)
	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	result, err := client.Edit(context.Background(), Request{Prompt: "add a hat", Quality: "high", Image: image, Mask: mask})
	require.NoError(t, err)

	require.NotNil(t, form)
	assert.Equal(t, []string{"add a hat"}, form.Value["prompt"])
	assert.Equal(t, []string{"gpt-image-1"}, form.Value["model"])
	assert.Equal(t, []string{"high"}, form.Value["quality"])
	assert.Equal(t, []string{"1"}, form.Value["n"])
	assert.Equal(t, []string{"1024x1024"}, form.Value["size"])
	assert.NotContains(t, form.Value, "response_format")
	assert.Equal(t, "image/png", maskType)

	require.Len(t, result.Images, 1)
	assert.Equal(t, pngBytes, result.Images[0].Data)
	assert.Equal(t, "gpt-image-1", result.Model)
	assert.Equal(t, "high", result.Quality)
	assert.InDelta(t, 0.167, result.Cost, 1e-9)
}

func TestEdit_DallE2(t *testing.T) {
	var values map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		values = r.MultipartForm.Value
		_, _, err := r.FormFile("mask")
		assert.ErrorIs(t, err, http.ErrMissingFile)

		io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+base64.StdEncoding.EncodeToString(pngBytes)+`"}]}`)
	}))
	defer srv.Close()

	image, _ := writeEditInputs(t)
	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	result, err := client.Edit(context.Background(), Request{Prompt: "add a hat", Model: "dall-e-2", Size: "512x512", Image: image})
	require.NoError(t, err)

	assert.Equal(t, []string{"dall-e-2"}, values["model"])
	assert.Equal(t, []string{"b64_json"}, values["response_format"])
	assert.NotContains(t, values, "quality")
	assert.InDelta(t, 0.018, result.Cost, 1e-9)
}

func TestEdit_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"Invalid image file or mode.","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := client.Edit(context.Background(), Request{Prompt: "add a hat"})
	assert.ErrorContains(t, err, "image to edit is required")

	_, err = client.Edit(context.Background(), Request{Prompt: "add a hat", Image: filepath.Join(t.TempDir(), "missing.png")})
	assert.ErrorContains(t, err, "failed to read image")

	image, _ := writeEditInputs(t)
	_, err = client.Edit(context.Background(), Request{Prompt: "add a hat", Image: image})
	assert.ErrorContains(t, err, "Invalid image file or mode.")
	assert.ErrorContains(t, err, "status 400")
}

func TestApplyDefaults(t *testing.T) {
	r := Request{Prompt: "p"}
	require.NoError(t, r.applyDefaults())
	assert.Equal(t, Request{Prompt: "p", Model: "gpt-image-1", Size: "1024x1024", Quality: "medium", N: 1}, r)

	assert.Error(t, (&Request{}).applyDefaults())
	assert.Error(t, (&Request{Prompt: "p", N: 11}).applyDefaults())
	assert.Error(t, (&Request{Prompt: "p", Model: "dall-e-3", N: 2}).applyDefaults())
}

func TestCostPerImage(t *testing.T) {
	tests := []struct {
		model, size, quality string
		want                 float64
		known                bool
	}{
		{"gpt-image-1", "1024x1024", "low", 0.011, true},
		{"gpt-image-1", "1536x1024", "medium", 0.063, true},
		{"gpt-image-1", "auto", "auto", 0.042, true},
		{"dall-e-3", "1792x1024", "hd", 0.12, true},
		{"dall-e-2", "512x512", "", 0.018, true},
		{"dall-e-2", "256x256", "standard", 0.016, true},
		{"gpt-image-1", "640x480", "low", 0, false},
		{"midjourney", "1024x1024", "high", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.model+"/"+tt.size+"/"+tt.quality, func(t *testing.T) {
			got, known := CostPerImage(tt.model, tt.size, tt.quality)
			assert.Equal(t, tt.known, known)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "gpt-image-1 1024x1024 high", Describe(&imagegen.Result{Model: "gpt-image-1", Size: "1024x1024", Quality: "high"}))
	assert.Equal(t, "dall-e-2 512x512", Describe(&imagegen.Result{Model: "dall-e-2", Size: "512x512"}))
}
