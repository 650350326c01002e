package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillbox/pkg/ledger"
)

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"IMAGE/JPG":  ".jpg",
		"image/webp": ".webp",
		"image/gif":  ".gif",
		"":           ".png",
	}
	for mime, want := range tests {
		assert.Equal(t, want, Extension(mime), mime)
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

	a := FileName("gemini", now, "image/jpeg")
	b := FileName("gemini", now, "image/jpeg")

	assert.Regexp(t, `^gemini-20250102-150405-[0-9a-f]{8}\.jpg$`, a)
	assert.NotEqual(t, a, b)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	images := []Image{
		{Data: []byte("one"), MIMEType: "image/png"},
		{Data: []byte("two"), MIMEType: "image/webp"},
	}

	paths, err := Save(dir, "openai", images)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.True(t, strings.HasSuffix(paths[0], ".png"))
	assert.True(t, strings.HasSuffix(paths[1], ".webp"))

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestLoadReferenceUnderBudget(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "ref.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ref, err := LoadReference(context.Background(), path, 900)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.MIMEType)
	assert.Equal(t, buf.Bytes(), ref.Data)
}

func TestLoadReferenceMissingFile(t *testing.T) {
	_, err := LoadReference(context.Background(), filepath.Join(t.TempDir(), "missing.png"), 900)
	assert.ErrorContains(t, err, "failed to load reference image")
}

func TestRecord(t *testing.T) {
	l := ledger.New(t.TempDir(), "test")

	data, err := Record(l, "a lighthouse at dusk", &Result{
		Images:  []Image{{}, {}},
		Model:   "gpt-image-1",
		Size:    "1024x1024",
		Quality: "medium",
		Cost:    0.084,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.084, data.TotalCost, 1e-9)
	assert.Equal(t, 2, data.ImageCount)
	require.Len(t, data.History, 1)
	assert.Equal(t, "a lighthouse at dusk", data.History[0].Prompt)
	assert.Equal(t, "medium", data.History[0].Quality)
	assert.Equal(t, 2, data.History[0].Images)
}
