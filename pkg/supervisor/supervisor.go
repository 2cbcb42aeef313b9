package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// State is the lifecycle state of the screensaver.
type State int

const (
	// Idle means no screensaver process is recorded.
	Idle State = iota
	// Active means a server, browser or profile directory is recorded.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}

	return "idle"
}

// Hook runs after every activation. Its error is logged and discarded.
type Hook func(ctx context.Context) error

// Supervisor owns the file server, the browser and the browser profile directory.
//
// It is not safe for concurrent use; feed it events from a single goroutine, usually with Run.
type Supervisor struct {
	opts      Options
	launcher  Launcher
	ports     PortFreer
	readiness Readiness
	fs        afero.Fs
	logger    *slog.Logger
	hooks     []Hook

	server     Process
	browser    Process
	profileDir string
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithLauncher replaces the ExecLauncher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithPortFreer replaces the /proc based port freer.
func WithPortFreer(p PortFreer) Option {
	return func(s *Supervisor) { s.ports = p }
}

// WithReadiness replaces the default one second delay.
func WithReadiness(r Readiness) Option {
	return func(s *Supervisor) { s.readiness = r }
}

// WithFs sets the filesystem profile directories are created on.
func WithFs(filesystem afero.Fs) Option {
	return func(s *Supervisor) { s.fs = filesystem }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithActivateHook registers a hook that runs after the screensaver has been started.
func WithActivateHook(h Hook) Option {
	return func(s *Supervisor) { s.hooks = append(s.hooks, h) }
}

// DefaultReadiness is the time given to the file server before the browser connects.
const DefaultReadiness = Delay(time.Second)

// New creates an idle Supervisor.
func New(opts Options, options ...Option) (*Supervisor, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid supervisor options: %w", err)
	}

	s := &Supervisor{
		opts:      opts,
		launcher:  ExecLauncher{},
		ports:     NewProcPortFreer(),
		readiness: DefaultReadiness,
		fs:        afero.NewOsFs(),
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(s)
	}

	return s, nil
}

func (s *Supervisor) State() State {
	if s.server != nil || s.browser != nil || s.profileDir != "" {
		return Active
	}

	return Idle
}

// ProfileDir returns the browser profile directory of the current activation, if any.
func (s *Supervisor) ProfileDir() string {
	return s.profileDir
}

// Handle applies a single event. Ignored events do nothing.
func (s *Supervisor) Handle(ctx context.Context, e screensaver.Event) {
	switch e {
	case screensaver.Locked:
		s.activate(ctx)
	case screensaver.Unlocked:
		if s.State() == Idle {
			return
		}
		s.logger.Info("Screen unlocked, stopping screensaver")
		s.teardown()
	}
}

// Run feeds the events of src to Handle until src ends or ctx is done.
// The screensaver is always torn down before Run returns.
func (s *Supervisor) Run(ctx context.Context, src screensaver.Source) error {
	defer s.teardown()

	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ctx, e)
		}
	}
}

// Close tears down the screensaver. It is safe to call in any state and more than once.
func (s *Supervisor) Close() error {
	s.teardown()
	return nil
}

func (s *Supervisor) activate(ctx context.Context) {
	// Only the server is consulted. A lone surviving browser is replaced below.
	if s.server != nil && s.server.Alive() {
		s.logger.Debug("Screensaver already running, ignoring duplicate lock", "pid", s.server.Pid())
		return
	}

	if s.State() == Active {
		s.logger.Info("File server of previous activation is gone, restarting screensaver")
		s.teardown()
	}

	s.logger.Info("Screen locked, starting screensaver", "port", s.opts.Port)

	killed, err := s.ports.FreePort(s.opts.Port)
	bestEffort(s.logger, "free port", err, "port", s.opts.Port)
	if len(killed) > 0 {
		s.logger.Info("Killed stale processes bound to port", "port", s.opts.Port, "pids", killed)
	}

	name, args := s.opts.serverCommand()
	if server, err := s.launcher.Start(name, args...); err != nil {
		s.logger.Warn("Failed to start file server", "command", name, "error", err)
	} else {
		s.server = server
		s.logger.Debug("Started file server", "pid", server.Pid(), "dir", s.opts.ContentDir)
	}

	if err := s.readiness.Wait(ctx, s.opts.addr()); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("File server readiness check failed", "addr", s.opts.addr(), "error", err)
	}

	dir, err := afero.TempDir(s.fs, s.opts.ProfileParent, profilePrefix)
	if err != nil {
		s.logger.Warn("Failed to create browser profile directory, not starting browser", "error", err)
		return
	}
	s.profileDir = dir

	if browser, err := s.launcher.Start(s.opts.BrowserCommand, s.opts.browserArgs(dir)...); err != nil {
		s.logger.Warn("Failed to start browser", "command", s.opts.BrowserCommand, "error", err)
	} else {
		s.browser = browser
		s.logger.Debug("Started browser", "pid", browser.Pid(), "profile", dir)
	}

	for _, hook := range s.hooks {
		bestEffort(s.logger, "activation hook", hook(ctx))
	}
}

// teardown kills the browser, then the server, then removes the profile directory.
func (s *Supervisor) teardown() {
	if s.browser != nil {
		bestEffort(s.logger, "kill browser", s.browser.Kill(), "pid", s.browser.Pid())
		s.browser = nil
	}

	if s.server != nil {
		bestEffort(s.logger, "kill file server", s.server.Kill(), "pid", s.server.Pid())
		s.server = nil
	}

	if s.profileDir != "" {
		bestEffort(s.logger, "remove browser profile", s.fs.RemoveAll(s.profileDir), "path", s.profileDir)
		s.profileDir = ""
	}
}

// bestEffort logs a failed action and discards the error. Targets that are already gone count
// as success.
func bestEffort(logger *slog.Logger, action string, err error, attrs ...any) {
	if err == nil || absent(err) {
		return
	}

	logger.Warn("Ignoring failed "+action, append([]any{"error", err}, attrs...)...)
}

func absent(err error) bool {
	return errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, unix.ESRCH) ||
		errors.Is(err, fs.ErrNotExist)
}
