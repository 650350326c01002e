// Package imagefit shrinks local images until their encoded form fits a byte
// budget, so they can be inlined as data URIs in text fields such as issue
// descriptions or model prompts.
//
// The reduction is a best-effort heuristic. It re-encodes at progressively
// smaller widths and lower quality for a fixed number of attempts and returns
// the smallest buffer it produced when the budget cannot be met.
package imagefit

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/avast/retry-go/v4"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode

	"github.com/jingkaihe/skillbox/pkg/logger"
)

const (
	// DefaultTargetKB is the default byte budget in kilobytes.
	DefaultTargetKB = 90
	// MaxAttempts bounds the number of re-encodes.
	MaxAttempts = 8

	startWidth   = 800
	startQuality = 80
	minQuality   = 30
	// attempts after this one shrink width by 10% and drop quality instead of shrinking by 20%
	coarseSteps = 4
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ErrNoImageProcessor is returned when the input cannot be decoded, meaning no
// image-processing capability is available for its format.
var ErrNoImageProcessor = errors.New("no image processor available for this file")

var errOverBudget = errors.New("encoded image exceeds target size")

// webpEncode is swapped in tests.
var webpEncode = func(w io.Writer, img image.Image) error {
	return nativewebp.Encode(w, img, nil)
}

// Result is the outcome of fitting an image into a byte budget.
type Result struct {
	Data     []byte
	MIMEType string
	// Width and Quality are the parameters of the returned buffer; both are
	// zero when the original file was returned untouched.
	Width   int
	Quality int
	// Attempts is the number of re-encodes performed.
	Attempts int
	// OriginalSize is the size of the input file in bytes.
	OriginalSize int64
	// TargetKB is the budget that was applied, after defaulting.
	TargetKB int
	// Fits reports whether Data is within the requested budget.
	Fits bool
}

// Options tunes Fit.
type Options struct {
	TargetKB int
}

// MIMETypeForExtension maps a file extension to the MIME type used for data
// URIs. Unknown extensions map to image/jpeg because such files are re-encoded
// as JPEG.
func MIMETypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// FormatForExtension returns the re-encoding format for an input extension.
func FormatForExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWebP
	default:
		return FormatJPEG
	}
}

func (f Format) mimeType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Step returns the width and quality used for the given 1-based attempt.
func Step(attempt int) (width, quality int) {
	w := float64(startWidth)
	quality = startQuality
	for i := 1; i < attempt; i++ {
		if i <= coarseSteps {
			w *= 0.8
			continue
		}
		w *= 0.9
		quality -= 15
		if quality < minQuality {
			quality = minQuality
		}
	}
	return int(w), quality
}

// Fit reads the image at path and returns a buffer at or under the target
// size when possible.
func Fit(ctx context.Context, path string, opts Options) (*Result, error) {
	targetKB := opts.TargetKB
	if targetKB <= 0 {
		targetKB = DefaultTargetKB
	}
	target := int64(targetKB) * 1024

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %s", path)
	}

	ext := filepath.Ext(path)
	if int64(len(data)) <= target {
		return &Result{
			Data:         data,
			MIMEType:     MIMETypeForExtension(ext),
			OriginalSize: int64(len(data)),
			TargetKB:     targetKB,
			Fits:         true,
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrNoImageProcessor,
			"cannot decode %s (%v); resize it manually below %dKB, e.g. `magick %s -resize 800x -quality 80 out.jpg`",
			path, err, targetKB, path)
	}

	result, err := fitDecoded(ctx, img, FormatForExtension(ext), target, int64(len(data)))
	if err != nil {
		return nil, err
	}
	result.TargetKB = targetKB
	return result, nil
}

func fitDecoded(ctx context.Context, img image.Image, format Format, target, originalSize int64) (*Result, error) {
	log := logger.G(ctx)
	srcWidth := img.Bounds().Dx()

	var best *Result
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++
			width, quality := Step(attempt)

			buf, usedWidth, used, err := encode(ctx, img, srcWidth, width, quality, format)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			log.WithFields(map[string]interface{}{
				"attempt": attempt,
				"width":   usedWidth,
				"quality": quality,
				"bytes":   len(buf),
				"target":  target,
			}).Debug("re-encoded image")

			if best == nil || len(buf) < len(best.Data) {
				best = &Result{
					Data:         buf,
					MIMEType:     used.mimeType(),
					Width:        usedWidth,
					Quality:      quality,
					OriginalSize: originalSize,
				}
			}
			if int64(len(buf)) > target {
				return errOverBudget
			}
			best.Fits = true
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(MaxAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errOverBudget) }),
	)

	if err != nil && !errors.Is(err, errOverBudget) {
		return nil, errors.Wrap(err, "failed to re-encode image")
	}

	best.Attempts = attempt
	if !best.Fits {
		log.WithField("bytes", len(best.Data)).Warn("image still exceeds target size, returning smallest encoding")
	}
	return best, nil
}

// encode resizes img to width (never enlarging) and encodes it. It returns the
// format actually written, which is JPEG when the WebP encoder gives up.
func encode(ctx context.Context, img image.Image, srcWidth, width, quality int, format Format) ([]byte, int, Format, error) {
	resized := img
	usedWidth := srcWidth
	if srcWidth > width {
		resized = imaging.Resize(img, width, 0, imaging.Lanczos)
		usedWidth = width
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(&buf, resized, imaging.PNG)
	case FormatWebP:
		if err = encodeWebP(&buf, resized); err != nil {
			logger.G(ctx).WithError(err).Debug("webp encoding failed, falling back to jpeg")
			buf.Reset()
			format = FormatJPEG
			err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality))
		}
	default:
		err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, 0, format, errors.Wrapf(err, "failed to encode %s", format)
	}
	return buf.Bytes(), usedWidth, format, nil
}

// encodeWebP turns a panic inside the encoder into an error.
func encodeWebP(w io.Writer, img image.Image) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("webp encoder panicked: %v", r)
		}
	}()
	return webpEncode(w, img)
}

// DataURI returns the result as a base64 data URI.
func DataURI(r *Result) string {
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// MarkdownImage returns a markdown image tag embedding the result inline.
func MarkdownImage(alt string, r *Result) string {
	return fmt.Sprintf("![%s](%s)", alt, DataURI(r))
}
