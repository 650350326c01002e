package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillbox/pkg/imagefit"
	"github.com/jingkaihe/skillbox/pkg/logger"
)

// UploadFile is the signed upload target returned by fileUpload.
type UploadFile struct {
	UploadURL string `json:"uploadUrl"`
	AssetURL  string `json:"assetUrl"`
	Headers   []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"headers"`
}

// FileUpload requests a signed URL for a file of the given size.
func (c *Client) FileUpload(ctx context.Context, contentType, filename string, size int) (*UploadFile, error) {
	var resp struct {
		FileUpload struct {
			Success    bool        `json:"success"`
			UploadFile *UploadFile `json:"uploadFile"`
		} `json:"fileUpload"`
	}
	vars := map[string]any{"contentType": contentType, "filename": filename, "size": size}
	if err := c.Do(ctx, fileUploadMutation, vars, &resp); err != nil {
		return nil, err
	}
	if !resp.FileUpload.Success || resp.FileUpload.UploadFile == nil {
		return nil, errors.Errorf("linear refused the upload of %s", filename)
	}
	return resp.FileUpload.UploadFile, nil
}

// Upload PUTs data to a signed upload URL.
func (c *Client) Upload(ctx context.Context, target *UploadFile, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to build upload request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "public, max-age=31536000")
	for _, h := range target.Headers {
		req.Header.Set(h.Key, h.Value)
	}

	// The signed URL carries its own credentials.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// CreateAttachment links url to an issue.
func (c *Client) CreateAttachment(ctx context.Context, issueID, title, url string) (*Attachment, error) {
	var resp struct {
		AttachmentCreate struct {
			Success    bool        `json:"success"`
			Attachment *Attachment `json:"attachment"`
		} `json:"attachmentCreate"`
	}
	vars := map[string]any{"input": map[string]any{"issueId": issueID, "title": title, "url": url}}
	if err := c.Do(ctx, attachmentCreateMutation, vars, &resp); err != nil {
		return nil, err
	}
	if !resp.AttachmentCreate.Success || resp.AttachmentCreate.Attachment == nil {
		return nil, errors.Errorf("linear did not create the attachment %s", title)
	}
	return resp.AttachmentCreate.Attachment, nil
}

// AttachResult records the outcome of attaching one file.
type AttachResult struct {
	Path       string
	Step       string
	Attachment *Attachment
	Err        error
}

// OK reports whether every step succeeded.
func (r AttachResult) OK() bool { return r.Err == nil }

// AttachFiles uploads each file and links it to the issue. Every file is
// attempted; failures are returned together and the issue is left in place.
func (c *Client) AttachFiles(ctx context.Context, issueID string, paths []string) ([]AttachResult, error) {
	var errs *multierror.Error
	results := make([]AttachResult, 0, len(paths))

	for _, path := range paths {
		res := c.attachFile(ctx, issueID, path)
		if res.Err != nil {
			logger.G(ctx).WithError(res.Err).WithField("file", path).WithField("step", res.Step).Warn("attachment failed")
			errs = multierror.Append(errs, errors.Wrapf(res.Err, "%s (%s)", path, res.Step))
		}
		results = append(results, res)
	}
	return results, errs.ErrorOrNil()
}

func (c *Client) attachFile(ctx context.Context, issueID, path string) AttachResult {
	res := AttachResult{Path: path, Step: "read"}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	name := filepath.Base(path)
	contentType := contentTypeFor(name, data)

	res.Step = "fileUpload"
	target, err := c.FileUpload(ctx, contentType, name, len(data))
	if err != nil {
		res.Err = err
		return res
	}

	res.Step = "upload"
	if err := c.Upload(ctx, target, contentType, data); err != nil {
		res.Err = err
		return res
	}

	res.Step = "attachmentCreate"
	attachment, err := c.CreateAttachment(ctx, issueID, name, target.AssetURL)
	if err != nil {
		res.Err = err
		return res
	}
	res.Step = "done"
	res.Attachment = attachment
	return res
}

func contentTypeFor(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return imagefit.MIMETypeForExtension(ext)
	}
	return http.DetectContentType(data)
}

// EmbedImages compresses each image to fit targetKB and appends it to
// description as an inline markdown image. Images that stay over budget are
// still embedded and reported in the returned warnings.
func EmbedImages(ctx context.Context, description string, paths []string, targetKB int) (string, []string, error) {
	if len(paths) == 0 {
		return description, nil, nil
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(description, "\n"))
	var warnings []string

	for _, path := range paths {
		result, err := imagefit.Fit(ctx, path, imagefit.Options{TargetKB: targetKB})
		if err != nil {
			return "", warnings, errors.Wrapf(err, "failed to prepare %s", path)
		}
		if !result.Fits {
			warnings = append(warnings, fmt.Sprintf("%s is still %dKB after %d attempts, over %dKB", path, len(result.Data)/1024, result.Attempts, result.TargetKB))
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(imagefit.MarkdownImage(filepath.Base(path), result))
	}
	return sb.String(), warnings, nil
}
