// Package imagegen holds what the image generation providers share: the
// generated image type, output file naming, reference image loading and the
// cost recording.
package imagegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillbox/pkg/imagefit"
	"github.com/jingkaihe/skillbox/pkg/ledger"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

// Image is a generated or reference image.
type Image struct {
	Data     []byte
	MIMEType string
}

// Result is the outcome of one generation call.
type Result struct {
	Images []Image
	// Text is any prose the model returned alongside the images.
	Text          string
	RevisedPrompt string
	Model         string
	Size          string
	Quality       string
	// Cost is the estimated spend in USD for all returned images.
	Cost float64
}

// Extension returns the file extension for an image MIME type.
func Extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// FileName builds a unique output name such as
// gemini-20250102-150405-1a2b3c4d.png.
func FileName(prefix string, now time.Time, mimeType string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return prefix + "-" + now.Format("20060102-150405") + "-" + id + Extension(mimeType)
}

// Save writes images into dir and returns their paths.
func Save(dir, prefix string, images []Image) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}

	now := time.Now()
	paths := make([]string, 0, len(images))
	for _, img := range images {
		path := filepath.Join(dir, FileName(prefix, now, img.MIMEType))
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return paths, errors.Wrapf(err, "failed to write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// LoadReference reads a reference image, compressing it when it is larger
// than targetKB.
func LoadReference(ctx context.Context, path string, targetKB int) (Image, error) {
	result, err := imagefit.Fit(ctx, path, imagefit.Options{TargetKB: targetKB})
	if err != nil {
		return Image{}, errors.Wrapf(err, "failed to load reference image %s", path)
	}
	if result.Attempts > 0 {
		logger.G(ctx).WithField("path", path).
			WithField("original_bytes", result.OriginalSize).
			WithField("bytes", len(result.Data)).
			Info("compressed reference image")
	}
	return Image{Data: result.Data, MIMEType: result.MIMEType}, nil
}

// Record adds a generation to the ledger and returns the updated totals.
func Record(l *ledger.Ledger, prompt string, r *Result) (*ledger.Data, error) {
	return l.Record(ledger.Entry{
		Prompt:  prompt,
		Model:   r.Model,
		Size:    r.Size,
		Quality: r.Quality,
		Images:  len(r.Images),
		Cost:    r.Cost,
	})
}
