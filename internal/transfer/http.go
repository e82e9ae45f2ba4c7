package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// HTTPClient brings a file up to date by downloading the complete new
// version named in a zsync control file. It reuses no local blocks.
type HTTPClient struct {
	controlURL string
	targetPath string
	keepBackup bool
	downloader *HTTPDownloader
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	written  atomic.Int64
	total    atomic.Int64
	finished atomic.Bool

	mu       sync.Mutex
	messages []string
	err      error

	closeOnce sync.Once
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithKeepBackup keeps the previous version as <target>.zs-old.
func WithKeepBackup(keep bool) Option {
	return func(c *HTTPClient) {
		c.keepBackup = keep
	}
}

// WithDownloader sets the downloader used for the control file and payload.
func WithDownloader(d *HTTPDownloader) Option {
	return func(c *HTTPClient) {
		c.downloader = d
	}
}

// WithLogger sets the logger for transfer diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client that updates targetPath from the control file at controlURL.
func NewHTTPClient(controlURL, targetPath string, opts ...Option) *HTTPClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &HTTPClient{
		controlURL: controlURL,
		targetPath: targetPath,
		keepBackup: true,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.downloader == nil {
		c.downloader = NewHTTPDownloader(&http.Client{}, "")
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// NewHTTPFactory returns a Factory creating HTTPClients with the given options.
func NewHTTPFactory(opts ...Option) Factory {
	return func(url, targetPath string) (Client, error) {
		if url == "" {
			return nil, fmt.Errorf("%w: empty control file URL", ErrTransfer)
		}
		return NewHTTPClient(url, targetPath, opts...), nil
	}
}

// Run performs the transfer. The outcome's cause is available from Err.
func (c *HTTPClient) Run() bool {
	defer c.finished.Store(true)

	if err := c.run(); err != nil {
		c.mu.Lock()
		c.err = fmt.Errorf("%w: %w", ErrTransfer, err)
		c.mu.Unlock()

		c.logger.Error("transfer failed", "target", c.targetPath, "error", err)
		c.status("Transfer failed: %v", err)
		return false
	}
	return true
}

func (c *HTTPClient) run() error {
	c.status("Fetching control file %s", c.controlURL)
	data, err := c.downloader.Fetch(c.ctx, c.controlURL)
	if err != nil {
		return fmt.Errorf("failed to fetch control file: %w", err)
	}

	cf, err := ParseControlFile(data)
	if err != nil {
		return fmt.Errorf("invalid control file: %w", err)
	}

	fileURL, err := cf.FileURL(c.controlURL)
	if err != nil {
		return err
	}

	localSum, err := calculateSHA1(c.targetPath)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", c.targetPath, err)
	}
	if localSum == cf.SHA1 {
		c.total.Store(cf.Length)
		c.written.Store(cf.Length)
		c.status("%s is already up to date", c.targetPath)
		return nil
	}

	c.total.Store(cf.Length)
	c.status("Downloading %s (%d bytes)", fileURL, cf.Length)

	part := c.targetPath + ".part"
	err = c.downloader.Download(c.ctx, fileURL, part, cf.Length, func(written, total int64) {
		c.written.Store(written)
		if total > 0 {
			c.total.Store(total)
		}
	})
	if err != nil {
		return err
	}

	if err := verify(part, cf); err != nil {
		_ = os.Remove(part)
		return err
	}
	c.status("Checksum verified")

	replacer := NewReplacer(c.targetPath, c.keepBackup)
	if err := replacer.Replace(part); err != nil {
		_ = os.Remove(part)
		return err
	}
	if !cf.MTime.IsZero() {
		_ = os.Chtimes(c.targetPath, cf.MTime, cf.MTime)
	}

	if c.keepBackup {
		c.status("Previous version kept at %s", replacer.BackupPath())
	}
	c.status("Updated %s to %s", c.targetPath, cf.Filename)
	return nil
}

func verify(path string, cf *ControlFile) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if cf.Length > 0 && info.Size() != cf.Length {
		return fmt.Errorf("size mismatch: got %d bytes, want %d", info.Size(), cf.Length)
	}

	sum, err := calculateSHA1(path)
	if err != nil {
		return fmt.Errorf("failed to hash download: %w", err)
	}
	if sum != cf.SHA1 {
		return fmt.Errorf("SHA-1 mismatch: got %s, want %s", sum, cf.SHA1)
	}
	return nil
}

// Progress returns the downloaded fraction of the new file.
func (c *HTTPClient) Progress() float64 {
	total := c.total.Load()
	if total <= 0 {
		if c.finished.Load() {
			return 1
		}
		return 0
	}

	p := float64(c.written.Load()) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// NextStatusMessage pops the oldest queued status message.
func (c *HTTPClient) NextStatusMessage() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) == 0 {
		return "", false
	}
	msg := c.messages[0]
	c.messages = c.messages[1:]
	return msg, true
}

// Err returns the cause of a failed Run.
func (c *HTTPClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close cancels outstanding requests. It is safe to call more than once.
func (c *HTTPClient) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

func (c *HTTPClient) status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Debug(msg)

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}
