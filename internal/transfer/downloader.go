package transfer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ProgressFunc receives the number of bytes written so far and the expected total.
type ProgressFunc func(written, total int64)

// HTTPDownloader downloads files over HTTP
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader(client *http.Client, userAgent string) *HTTPDownloader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDownloader{client: client, userAgent: userAgent}
}

// Fetch returns the body of a small document, such as a control file.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(io.LimitReader(resp.Body, 64<<20))
}

// Download writes the body at url to dst, reporting progress against expected
// bytes (or the Content-Length when expected is zero). A partial file is
// removed on failure.
func (d *HTTPDownloader) Download(ctx context.Context, url, dst string, expected int64, progress ProgressFunc) error {
	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	total := expected
	if total == 0 {
		total = resp.ContentLength
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	w := &progressWriter{total: total, progress: progress}
	_, copyErr := io.Copy(io.MultiWriter(out, w), resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("download interrupted: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, closeErr)
	}

	return nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return resp, nil
}

type progressWriter struct {
	written  int64
	total    int64
	progress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.progress != nil {
		w.progress(w.written, w.total)
	}
	return len(p), nil
}

// calculateSHA1 returns the hex SHA-1 of a file, the hash zsync control files carry.
func calculateSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hash := sha1.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
