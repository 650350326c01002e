package gemini

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jingkaihe/skillbox/pkg/imagegen"
)

func newGeminiServer(t *testing.T, reply string, captured *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nimage-bytes")
	reply := `{"candidates":[{"content":{"role":"model","parts":[
		{"text":"Here is your lighthouse."},
		{"inlineData":{"mimeType":"image/png","data":"` + base64.StdEncoding.EncodeToString(png) + `"}}
	]}}]}`

	var body []byte
	srv := newGeminiServer(t, reply, &body)

	client, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	result, err := client.Generate(context.Background(), Request{
		Prompt:     "a lighthouse at dusk",
		Aspect:     "16:9",
		References: []imagegen.Image{{Data: []byte("ref"), MIMEType: "image/jpeg"}},
	})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, png, result.Images[0].Data)
	assert.Equal(t, "image/png", result.Images[0].MIMEType)
	assert.Equal(t, "Here is your lighthouse.", result.Text)
	assert.Equal(t, DefaultModel, result.Model)
	assert.InDelta(t, 0.039, result.Cost, 1e-9)

	assert.Equal(t, "a lighthouse at dusk\n\nAspect ratio: 16:9.", gjson.GetBytes(body, "contents.0.parts.0.text").String())
	assert.Equal(t, "image/jpeg", gjson.GetBytes(body, "contents.0.parts.1.inlineData.mimeType").String())
	assert.Contains(t, gjson.GetBytes(body, "generationConfig.responseModalities").Raw, "IMAGE")
}

func TestGenerate_TextOnly(t *testing.T) {
	srv := newGeminiServer(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I can't draw that."}]}}]}`, nil)

	client, err := New(context.Background(), Config{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Prompt: "something"})
	assert.ErrorContains(t, err, "no image: I can't draw that.")
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	client, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Prompt: "  "})
	assert.ErrorContains(t, err, "prompt is empty")
}

func TestCostPerImage(t *testing.T) {
	p, ok := CostPerImage("gemini-2.5-flash-image")
	assert.True(t, ok)
	assert.InDelta(t, 0.039, p, 1e-9)

	p, ok = CostPerImage("imagen-9")
	assert.False(t, ok)
	assert.Zero(t, p)
}
