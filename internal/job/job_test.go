package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamancini/appimageupdate/internal/appimage"
	"github.com/adamancini/appimageupdate/internal/transfer"
	"github.com/adamancini/appimageupdate/internal/update"
)

type fakeExtractor struct {
	info string
	err  error
}

func (f fakeExtractor) Extract(path string) (*appimage.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &appimage.Metadata{Path: path, Version: appimage.LayoutV2, UpdateInformation: f.info}, nil
}

// fakeClient blocks in Run until release is closed.
type fakeClient struct {
	release  chan struct{}
	result   bool
	progress float64

	mu       sync.Mutex
	messages []string

	runs   atomic.Int32
	closes atomic.Int32
}

func newFakeClient(result bool) *fakeClient {
	return &fakeClient{release: make(chan struct{}), result: result, progress: 0.5}
}

func (c *fakeClient) Run() bool {
	c.runs.Add(1)
	<-c.release
	return c.result
}

func (c *fakeClient) Progress() float64 { return c.progress }

func (c *fakeClient) NextStatusMessage() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return "", false
	}
	msg := c.messages[0]
	c.messages = c.messages[1:]
	return msg, true
}

func (c *fakeClient) Close() error {
	c.closes.Add(1)
	return nil
}

func factoryFor(client *fakeClient, gotURL *string) transfer.Factory {
	return func(url, targetPath string) (transfer.Client, error) {
		if gotURL != nil {
			*gotURL = url
		}
		return client, nil
	}
}

func writeFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.AppImage")
	if err := os.WriteFile(path, []byte("appimage"), 0755); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

// waitForState polls until the job reaches want or the test times out.
func waitForState(t *testing.T, j *Job, want State) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("State = %v, want %v", j.State(), want)
}

func newTestJob(t *testing.T, client *fakeClient, opts ...Option) *Job {
	t.Helper()

	base := []Option{
		WithExtractor(fakeExtractor{info: "zsync|http://example.com/x.zsync"}),
		WithResolver(update.NewResolver()),
		WithTransferFactory(factoryFor(client, nil)),
	}
	j, err := New(writeFile(t), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

func TestNewMissingFile(t *testing.T) {
	_, err := New("/path/that/does/not/exist")
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("New() error = %v, want ErrInvalidPath", err)
	}
}

func TestJobInitialState(t *testing.T) {
	j := newTestJob(t, newFakeClient(true))

	if j.State() != StateInitialized {
		t.Errorf("State = %v, want initialized", j.State())
	}
	if j.IsDone() {
		t.Error("IsDone() should be false before Start")
	}
	if j.HasError() {
		t.Error("HasError() should be false before Start")
	}

	p, ok := j.Progress()
	if p != 0 || !ok {
		t.Errorf("Progress() = (%v, %v), want (0, true)", p, ok)
	}

	if _, ok := j.NextStatusMessage(); ok {
		t.Error("No status messages expected before Start")
	}

	// Waiting on a job that never started must not block.
	j.Wait()
}

func TestJobSuccess(t *testing.T) {
	client := newFakeClient(true)
	client.messages = []string{"downloading"}

	var gotURL string
	j := newTestJob(t, client, WithTransferFactory(factoryFor(client, &gotURL)))

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitForState(t, j, StateRunning)

	if gotURL != "http://example.com/x.zsync" {
		t.Errorf("Transfer URL = %s, want http://example.com/x.zsync", gotURL)
	}
	if j.IsDone() {
		t.Error("IsDone() should be false while running")
	}

	p, ok := j.Progress()
	if p != 0.5 || !ok {
		t.Errorf("Progress() while running = (%v, %v), want (0.5, true)", p, ok)
	}

	var msgs []string
	for {
		msg, ok := j.NextStatusMessage()
		if !ok {
			break
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) < 3 {
		t.Fatalf("Expected job and transfer messages, got %v", msgs)
	}
	if last := msgs[len(msgs)-1]; last != "zsync: downloading" {
		t.Errorf("Last message = %q, want forwarded transfer message", last)
	}
	for _, msg := range msgs[:len(msgs)-1] {
		if strings.HasPrefix(msg, "zsync: ") {
			t.Errorf("Job message %q should come before transfer messages", msg)
		}
	}

	close(client.release)
	j.Wait()

	if j.State() != StateSuccess {
		t.Errorf("State = %v, want success", j.State())
	}
	if !j.IsDone() || j.HasError() {
		t.Errorf("IsDone() = %v, HasError() = %v, want true, false", j.IsDone(), j.HasError())
	}
	if j.Err() != nil {
		t.Errorf("Err() = %v, want nil", j.Err())
	}
}

func TestJobStartTwice(t *testing.T) {
	client := newFakeClient(true)
	j := newTestJob(t, client)

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := j.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	close(client.release)
	j.Wait()

	if err := j.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() after completion error = %v, want ErrAlreadyStarted", err)
	}
	if runs := client.runs.Load(); runs != 1 {
		t.Errorf("Transfer ran %d times, want 1", runs)
	}
}

func TestJobConcurrentStart(t *testing.T) {
	client := newFakeClient(true)
	j := newTestJob(t, client)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if j.Start() == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	close(client.release)
	j.Wait()

	if started.Load() != 1 {
		t.Errorf("Start() succeeded %d times, want 1", started.Load())
	}
	if client.runs.Load() != 1 {
		t.Errorf("Transfer ran %d times, want 1", client.runs.Load())
	}
}

func TestJobProgressAfterTerminalReleasesOnce(t *testing.T) {
	client := newFakeClient(true)
	j := newTestJob(t, client)

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(client.release)
	j.Wait()

	for i := 0; i < 5; i++ {
		p, ok := j.Progress()
		if p != 1 || ok {
			t.Errorf("Progress() call %d = (%v, %v), want (1, false)", i, p, ok)
		}
	}

	if closes := client.closes.Load(); closes != 1 {
		t.Errorf("Client closed %d times, want 1", closes)
	}
}

func TestJobTransferFailure(t *testing.T) {
	client := newFakeClient(false)
	j := newTestJob(t, client)

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(client.release)
	j.Wait()

	if !j.HasError() || !j.IsDone() {
		t.Errorf("HasError() = %v, IsDone() = %v, want true, true", j.HasError(), j.IsDone())
	}
	if !errors.Is(j.Err(), transfer.ErrTransfer) {
		t.Errorf("Err() = %v, want ErrTransfer", j.Err())
	}

	p, ok := j.Progress()
	if p != 1 || ok {
		t.Errorf("Progress() = (%v, %v), want (1, false)", p, ok)
	}
}

func TestJobResolutionFailures(t *testing.T) {
	tests := []struct {
		name      string
		extractor Extractor
		wantErr   error
	}{
		{
			name:      "extraction fails",
			extractor: fakeExtractor{err: appimage.ErrInvalidSignature},
			wantErr:   appimage.ErrExtraction,
		},
		{
			name:      "empty update information",
			extractor: fakeExtractor{info: ""},
			wantErr:   update.ErrResolution,
		},
		{
			name:      "unknown update information",
			extractor: fakeExtractor{info: "ftp|x"},
			wantErr:   update.ErrResolution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(true)
			close(client.release)
			j := newTestJob(t, client, WithExtractor(tt.extractor))

			if err := j.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			j.Wait()

			if j.State() != StateError {
				t.Errorf("State = %v, want error", j.State())
			}
			if !errors.Is(j.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", j.Err(), tt.wantErr)
			}
			if client.runs.Load() != 0 {
				t.Error("Transfer should not run after a resolution failure")
			}

			var msgs []string
			for {
				msg, ok := j.NextStatusMessage()
				if !ok {
					break
				}
				msgs = append(msgs, msg)
			}
			if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], "Update failed") {
				t.Errorf("Status messages = %q, want failure message last", msgs)
			}
		})
	}
}

func TestJobFactoryFailure(t *testing.T) {
	failing := func(url, targetPath string) (transfer.Client, error) {
		return nil, errors.New("no client")
	}
	j := newTestJob(t, newFakeClient(true), WithTransferFactory(failing))

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	j.Wait()

	if !j.HasError() {
		t.Error("HasError() should be true when the client cannot be created")
	}
	p, ok := j.Progress()
	if p != 1 || ok {
		t.Errorf("Progress() = (%v, %v), want (1, false)", p, ok)
	}
}

// blockingResolver blocks until released so tests can observe the job mid-resolution.
type blockingResolver struct {
	release chan struct{}
}

func (r blockingResolver) Resolve(ctx context.Context, raw string) (update.Source, error) {
	<-r.release
	return update.Source{Kind: update.KindGeneric, TransferURL: "http://example.com/x.zsync"}, nil
}

func TestJobPollingDuringResolution(t *testing.T) {
	resolver := blockingResolver{release: make(chan struct{})}
	client := newFakeClient(true)
	close(client.release)
	j := newTestJob(t, client, WithResolver(resolver))

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Resolution is in progress; polling must not block and the job stays initialized.
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		_, _ = j.Progress()
		_ = j.IsDone()
		_, _ = j.NextStatusMessage()
	}()

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("Polling blocked during resolution")
	}

	if j.State() != StateInitialized {
		t.Errorf("State = %v, want initialized during resolution", j.State())
	}

	close(resolver.release)
	j.Wait()

	if j.State() != StateSuccess {
		t.Errorf("State = %v, want success", j.State())
	}
}

func TestJobStopUnsupported(t *testing.T) {
	j := newTestJob(t, newFakeClient(true))

	if err := j.Stop(); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Stop() error = %v, want ErrUnsupported", err)
	}
	if j.State() != StateInitialized {
		t.Errorf("Stop() changed state to %v", j.State())
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateInitialized, false},
		{StateRunning, false},
		{StateStopping, false},
		{StateSuccess, true},
		{StateError, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobKeepsTransferMessagesAfterRelease(t *testing.T) {
	client := newFakeClient(true)
	client.messages = []string{"done"}
	close(client.release)
	j := newTestJob(t, client)

	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	j.Wait()

	// Releases the client.
	_, _ = j.Progress()

	var last string
	for {
		msg, ok := j.NextStatusMessage()
		if !ok {
			break
		}
		last = msg
	}
	if last != "zsync: done" {
		t.Errorf("Last message = %q, want transfer message kept after release", last)
	}
}

// sectionLister reports a fixed section table.
type sectionLister []appimage.Section

func (l sectionLister) Sections(path string) ([]appimage.Section, error) {
	return l, nil
}

func TestJobCorruptSectionEndsInError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.AppImage")
	content := append(make([]byte, 8), []byte("AI\x02zsync|x")...)
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	client := newFakeClient(true)
	close(client.release)
	lister := sectionLister{{Name: appimage.UpdateInfoSection, Size: 1 << 62, Offset: 16}}

	j, err := New(path,
		WithExtractor(appimage.NewExtractor(lister)),
		WithTransferFactory(factoryFor(client, nil)),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	j.Wait()

	if j.State() != StateError {
		t.Errorf("State = %v, want error", j.State())
	}
	if !errors.Is(j.Err(), appimage.ErrExtraction) {
		t.Errorf("Err() = %v, want ErrExtraction", j.Err())
	}
	if client.runs.Load() != 0 {
		t.Error("Transfer should not run after an extraction failure")
	}
}
