// Package imagehost uploads artwork bytes to anonymous image hosts so the
// presence payload can reference them by public URL.
package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	uploadTimeout   = 10 * time.Second
	uploadFileName  = "cover.jpg"
	maxResponseSize = 64 << 10
)

// ErrAllFailed is returned by Chain.Upload when no host accepted the image.
var ErrAllFailed = errors.New("all image hosts failed")

// Uploader stores image bytes somewhere public and returns the URL.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, data []byte) (string, error)
}

// Chain tries each uploader in order and stops at the first success.
type Chain struct {
	uploaders   []Uploader
	logger      *slog.Logger
	hostTimeout time.Duration
}

// NewChain creates a chain over uploaders, tried in the given order.
func NewChain(logger *slog.Logger, uploaders ...Uploader) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{uploaders: uploaders, logger: logger, hostTimeout: uploadTimeout}
}

// Default returns the catbox, 0x0.st, file.io chain.
func Default(logger *slog.Logger) *Chain {
	hc := &http.Client{Timeout: uploadTimeout}
	return NewChain(logger, NewCatbox(hc), NewZeroXZero(hc), NewFileIO(hc))
}

// Upload returns the URL from the first host that accepted data. Each host
// gets its own deadline.
func (c *Chain) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	var errs []error
	for _, u := range c.uploaders {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		hostCtx, cancel := context.WithTimeout(ctx, c.hostTimeout)
		url, err := u.Upload(hostCtx, data)
		cancel()
		if err != nil {
			c.logger.Debug("artwork upload failed", "host", u.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", u.Name(), err))
			continue
		}
		c.logger.Info("artwork uploaded", "host", u.Name(), "url", url)
		return url, nil
	}
	if len(errs) == 0 {
		return "", ErrAllFailed
	}
	return "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

// postMultipart sends data as a multipart file field plus any extra fields
// and returns the response body.
func postMultipart(
	ctx context.Context,
	hc *http.Client,
	endpoint string,
	fields map[string]string,
	fileField string,
	data []byte,
) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field: %w", err)
		}
	}
	fw, err := w.CreateFormFile(fileField, uploadFileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", "ListenBridge/0.1")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return out, nil
}
