// package testing contains shared testing utilities and test doubles
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wavecrawl/internal/browser"
)

// FakeSession is an in-memory [browser.Session]. Selectors resolve against the Texts and Attrs maps.
//
// Visible lists selectors WaitFor succeeds on; any selector with text or attributes is visible too.
// OnClick runs after a successful click so a test can reveal content, e.g. an expanded comment.
type FakeSession struct {
	mu sync.Mutex

	Texts       map[string]string
	Attrs       map[string]map[string]string
	Visible     map[string]bool
	NavigateErr error
	OnNavigate  func(s *FakeSession, url string)
	OnClick     func(s *FakeSession, selector string)

	Navigations []string
	Clicks      []string
	Scrolls     []float64
	Closed      int
}

// NewFakeSession returns an empty session.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Texts:   map[string]string{},
		Attrs:   map[string]map[string]string{},
		Visible: map[string]bool{},
	}
}

// SetAttr records an attribute value for selector.
func (f *FakeSession) SetAttr(selector, attr, value string) *FakeSession {
	if f.Attrs[selector] == nil {
		f.Attrs[selector] = map[string]string{}
	}
	f.Attrs[selector][attr] = value
	return f
}

func (f *FakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.Navigations = append(f.Navigations, url)
	hook := f.OnNavigate
	err := f.NavigateErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(f, url)
	}
	return ctx.Err()
}

func (f *FakeSession) FindText(_ context.Context, selector string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Texts[selector]
	return v, ok
}

func (f *FakeSession) FindAttribute(_ context.Context, selector, attr string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Attrs[selector][attr]
	return v, ok
}

func (f *FakeSession) WaitFor(_ context.Context, selector string, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible(selector)
}

func (f *FakeSession) visible(selector string) bool {
	if f.Visible[selector] {
		return true
	}
	if _, ok := f.Texts[selector]; ok {
		return true
	}
	_, ok := f.Attrs[selector]
	return ok
}

func (f *FakeSession) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	if !f.visible(selector) {
		f.mu.Unlock()
		return fmt.Errorf("no element for %s", selector)
	}
	f.Clicks = append(f.Clicks, selector)
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		hook(f, selector)
	}
	return nil
}

func (f *FakeSession) ScrollToFraction(_ context.Context, fraction float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scrolls = append(f.Scrolls, fraction)
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed++
	return nil
}

// FakeRenderer hands out the same [FakeSession] on every Open, or OpenErr.
type FakeRenderer struct {
	Session *FakeSession
	OpenErr error
	Opened  int
}

func (r *FakeRenderer) Open(context.Context) (browser.Session, error) {
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	r.Opened++
	return r.Session, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
