// Package job drives a single AppImage update on a background goroutine.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/adamancini/appimageupdate/internal/appimage"
	"github.com/adamancini/appimageupdate/internal/transfer"
	"github.com/adamancini/appimageupdate/internal/update"
)

// transferMessagePrefix marks status messages forwarded from the transfer client.
const transferMessagePrefix = "zsync: "

var (
	// ErrInvalidPath is returned by New when the file to update does not exist.
	ErrInvalidPath = errors.New("no such file")

	// ErrAlreadyStarted is returned by Start on every call after the first.
	ErrAlreadyStarted = errors.New("update already started")
)

// Extractor reads update metadata from a file.
type Extractor interface {
	Extract(path string) (*appimage.Metadata, error)
}

// Resolver turns update information into a transfer source.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (update.Source, error)
}

// Job updates one file. It is safe for concurrent use.
type Job struct {
	path      string
	extractor Extractor
	resolver  Resolver
	factory   transfer.Factory
	logger    *log.Logger

	mu       sync.Mutex
	state    State
	done     chan struct{}
	client   transfer.Client
	messages []string
	err      error
}

// Option configures a Job.
type Option func(*Job)

// WithExtractor sets how update metadata is read.
func WithExtractor(e Extractor) Option {
	return func(j *Job) {
		j.extractor = e
	}
}

// WithResolver sets how update information is resolved.
func WithResolver(r Resolver) Option {
	return func(j *Job) {
		j.resolver = r
	}
}

// WithTransferFactory sets how the transfer client is created.
func WithTransferFactory(f transfer.Factory) Option {
	return func(j *Job) {
		j.factory = f
	}
}

// WithLogger sets the logger for job diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(j *Job) {
		j.logger = l
	}
}

// New creates a job for the file at path, which must exist.
func New(path string, opts ...Option) (*Job, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPath, path, err)
	}

	j := &Job{
		path:  path,
		state: StateInitialized,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.extractor == nil {
		j.extractor = appimage.NewExtractor(appimage.NewObjdumpLister(""))
	}
	if j.resolver == nil {
		j.resolver = update.NewResolver()
	}
	if j.factory == nil {
		j.factory = transfer.NewHTTPFactory()
	}
	if j.logger == nil {
		j.logger = log.New(io.Discard)
	}
	return j, nil
}

// Path returns the file being updated.
func (j *Job) Path() string {
	return j.path
}

// Start launches the update in the background and returns immediately.
// A job runs at most once; later calls return ErrAlreadyStarted.
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != StateInitialized || j.done != nil {
		return ErrAlreadyStarted
	}

	j.done = make(chan struct{})
	go j.run()

	return nil
}

// run is the worker body. The lock is held only around state changes;
// extraction, resolution and the transfer itself run without it.
func (j *Job) run() {
	defer close(j.done)

	source, err := j.resolve()
	if err != nil {
		j.fail(err)
		return
	}

	j.mu.Lock()
	client, err := j.factory(source.TransferURL, j.path)
	if err != nil {
		j.mu.Unlock()
		j.fail(fmt.Errorf("failed to create transfer client: %w", err))
		return
	}
	j.client = client
	j.state = StateRunning
	j.mu.Unlock()

	j.logger.Info("starting transfer", "path", j.path, "url", source.TransferURL)
	ok := client.Run()

	j.mu.Lock()
	defer j.mu.Unlock()

	if !ok {
		j.state = StateError
		j.err = transfer.ErrTransfer
		if e, isErrer := client.(interface{ Err() error }); isErrer && e.Err() != nil {
			j.err = e.Err()
		}
		j.logger.Error("update failed", "path", j.path, "error", j.err)
		return
	}

	j.state = StateSuccess
	j.logger.Info("update finished", "path", j.path)
}

func (j *Job) resolve() (update.Source, error) {
	meta, err := j.extractor.Extract(j.path)
	if err != nil {
		return update.Source{}, err
	}
	j.queue(fmt.Sprintf("Read update information from type %d AppImage: %q", meta.Version, meta.UpdateInformation))

	source, err := j.resolver.Resolve(context.Background(), meta.UpdateInformation)
	if err != nil {
		return update.Source{}, err
	}
	if !source.Valid() {
		return update.Source{}, fmt.Errorf("%w: no transfer URL", update.ErrResolution)
	}
	j.queue(fmt.Sprintf("Resolved %s update source: %s", source.Kind, source.TransferURL))

	return source, nil
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.state = StateError
	j.err = err
	j.messages = append(j.messages, "Update failed: "+err.Error())
	j.logger.Error("update failed", "path", j.path, "error", err)
}

func (j *Job) queue(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.messages = append(j.messages, msg)
}

// Wait blocks until the worker has exited. It returns immediately if the
// job was never started.
func (j *Job) Wait() {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()

	if done != nil {
		<-done
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// IsDone reports whether the job reached a terminal state.
func (j *Job) IsDone() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Terminal()
}

// HasError reports whether the job ended in StateError.
func (j *Job) HasError() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == StateError
}

// Err returns the cause of a failed job, or nil.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Progress returns the completed fraction and whether further progress can
// be expected. Once the job is done it returns (1, false) and releases the
// transfer client.
func (j *Job) Progress() (float64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.state == StateInitialized:
		return 0, true
	case j.state.Terminal():
		j.releaseClient()
		return 1, false
	case j.client != nil:
		return j.client.Progress(), true
	default:
		return 0, false
	}
}

// releaseClient closes the transfer client once, keeping its unread status
// messages. Callers hold j.mu.
func (j *Job) releaseClient() {
	if j.client == nil {
		return
	}
	for {
		msg, ok := j.client.NextStatusMessage()
		if !ok {
			break
		}
		j.messages = append(j.messages, transferMessagePrefix+msg)
	}
	if err := j.client.Close(); err != nil {
		j.logger.Warn("failed to release transfer client", "error", err)
	}
	j.client = nil
}

// NextStatusMessage returns the next queued status message. The job's own
// messages come first, then those of the transfer client.
func (j *Job) NextStatusMessage() (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.messages) > 0 {
		msg := j.messages[0]
		j.messages = j.messages[1:]
		return msg, true
	}

	if j.client != nil {
		if msg, ok := j.client.NextStatusMessage(); ok {
			return transferMessagePrefix + msg, true
		}
	}

	return "", false
}

// Stop is not supported: a running transfer cannot be cancelled.
func (j *Job) Stop() error {
	return fmt.Errorf("stopping an update: %w", errors.ErrUnsupported)
}
