// Package browser owns the single shared headless browser. Callers never
// hold the browser directly: they ask the Manager for pages, and the
// Manager launches, tracks and relaunches the process as needed.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/dealscout/extractor"
	"github.com/use-agent/dealscout/models"
)

// State is the lifecycle state of the shared browser.
type State int32

const (
	StateAbsent State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Acquire and NewPage after Close.
var ErrClosed = errors.New("browser: manager closed")

// Conn is a connected browser.
type Conn interface {
	// NewPage opens a fresh, exclusively owned page.
	NewPage(ctx context.Context) (extractor.Page, error)

	// Disconnected is closed once the browser connection is gone.
	Disconnected() <-chan struct{}

	Close() error
}

// Launcher starts a browser and connects to it. ctx bounds the launch.
type Launcher func(ctx context.Context) (Conn, error)

// launchCall is one in-flight launch shared by every waiter.
type launchCall struct {
	done chan struct{}
	conn Conn
	err  error
}

// Manager is the state machine around the shared browser:
//
//	ABSENT --acquire--> INITIALIZING --ok--> READY --disconnect--> ABSENT
//	                         \--fail--> ABSENT
//
// At most one launch is in flight. It is safe for concurrent use.
type Manager struct {
	launch        Launcher
	launchTimeout time.Duration

	mu      sync.Mutex
	state   State
	conn    Conn
	pending *launchCall
	closed  bool

	launches    atomic.Int64
	activePages atomic.Int32
}

// NewManager returns a Manager in the ABSENT state. Nothing is launched
// until the first Acquire.
func NewManager(launch Launcher, launchTimeout time.Duration) *Manager {
	if launchTimeout <= 0 {
		launchTimeout = time.Minute
	}
	return &Manager{launch: launch, launchTimeout: launchTimeout}
}

// Name identifies the manager as a page source.
func (m *Manager) Name() string { return "browser" }

// Acquire returns the live browser, launching it if needed. Callers that
// arrive while a launch is in flight wait for it and all receive the same
// connection or the same BROWSER_LAUNCH_FAILED error. A caller whose ctx
// ends stops waiting; the launch itself continues for the others.
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state == StateReady {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	call := m.pending
	if call == nil {
		call = &launchCall{done: make(chan struct{})}
		m.pending = call
		m.state = StateInitializing
		go m.doLaunch(call)
	}
	m.mu.Unlock()

	select {
	case <-call.done:
		return call.conn, call.err
	case <-ctx.Done():
		return nil, models.NewSearchError(models.ErrCodeTimeout, "gave up waiting for browser launch", ctx.Err())
	}
}

func (m *Manager) doLaunch(call *launchCall) {
	ctx, cancel := context.WithTimeout(context.Background(), m.launchTimeout)
	defer cancel()

	n := m.launches.Add(1)
	start := time.Now()
	slog.Info("launching browser", "attempt", n)

	conn, err := m.launch(ctx)

	m.mu.Lock()
	m.pending = nil
	switch {
	case err != nil:
		m.state = StateAbsent
		call.err = models.NewSearchError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
		slog.Error("browser launch failed", "error", err, "elapsed", time.Since(start))
	case m.closed:
		m.state = StateAbsent
		call.err = ErrClosed
	default:
		m.state = StateReady
		m.conn = conn
		call.conn = conn
		slog.Info("browser ready", "elapsed", time.Since(start))
	}
	closed := m.closed
	m.mu.Unlock()

	if err == nil {
		if closed {
			_ = conn.Close()
		} else {
			go m.watch(conn)
		}
	}
	close(call.done)
}

// watch invalidates conn once it disconnects, unless it was already
// replaced.
func (m *Manager) watch(conn Conn) {
	<-conn.Disconnected()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		return
	}
	m.conn = nil
	m.state = StateAbsent
	if !m.closed {
		slog.Warn("browser disconnected, will relaunch on next request")
	}
}

// NewPage opens a page on the shared browser. The caller must Close it.
func (m *Manager) NewPage(ctx context.Context) (extractor.Page, error) {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	page, err := conn.NewPage(ctx)
	if err != nil {
		return nil, models.NewSearchError(models.ErrCodeInternal, "failed to open browser page", err)
	}
	m.activePages.Add(1)
	return &trackedPage{Page: page, m: m}, nil
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot for the health endpoint.
func (m *Manager) Stats() models.BrowserStats {
	return models.BrowserStats{
		State:       m.State().String(),
		Launches:    m.launches.Load(),
		ActivePages: int(m.activePages.Load()),
	}
}

// Close shuts the browser down and refuses further acquisition. A launch
// still in flight is closed as soon as it completes.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.state = StateAbsent
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	slog.Info("closing browser")
	return conn.Close()
}

// trackedPage keeps the active page count honest however many times Close
// is called.
type trackedPage struct {
	extractor.Page
	m    *Manager
	once sync.Once
}

func (p *trackedPage) Close() error {
	var err error
	p.once.Do(func() {
		p.m.activePages.Add(-1)
		err = p.Page.Close()
	})
	return err
}
