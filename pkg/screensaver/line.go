package screensaver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// MonitorCommand is the default dbus-monitor invocation used by NewMonitorSource.
var MonitorCommand = []string{
	"dbus-monitor",
	"--session",
	"type='signal',interface='org.gnome.ScreenSaver'",
}

const maxLineLength = 1024 * 1024

type lineSource struct {
	events    chan Event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	stop      func() error
	err       error
}

// NewLineSource decodes r line by line.
// Ignored lines are dropped. The events channel is closed when r reaches EOF or fails.
func NewLineSource(r io.Reader) Source {
	return newLineSource(r, nil)
}

func newLineSource(r io.Reader, stop func() error) *lineSource {
	s := &lineSource{
		events:  make(chan Event),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		stop:    stop,
	}

	go s.read(r)

	return s
}

func (s *lineSource) read(r io.Reader) {
	defer close(s.stopped)
	defer close(s.events)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		e := Decode(scanner.Text())
		if e == Ignored {
			continue
		}

		select {
		case s.events <- e:
		case <-s.done:
			return
		}
	}

	s.err = scanner.Err()
}

func (s *lineSource) Events() <-chan Event {
	return s.events
}

// Close stops delivering events. For command sources, the command is killed and reaped.
// A plain reader source does not wait for a pending read on its reader to return.
func (s *lineSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.stop == nil {
			return
		}

		err = s.stop()
		<-s.stopped
		if s.err != nil {
			err = errors.Join(err, fmt.Errorf("failed reading lock notifications: %w", s.err))
		}
	})

	return err
}

// NewMonitorSource starts the given command, usually [MonitorCommand], and decodes its standard
// output. The command is killed when ctx is done or when the source is closed.
func NewMonitorSource(ctx context.Context, command []string) (Source, error) {
	if len(command) == 0 {
		return nil, errors.New("monitor command is empty")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stdout: %w", command[0], err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command[0], err)
	}

	var src *lineSource
	src = newLineSource(stdout, func() error {
		if cmd.Process != nil {
			// Killing closes stdout which ends the reader.
			_ = cmd.Process.Kill()
		}
		<-src.stopped
		// The exit status after a kill carries no information.
		_ = cmd.Wait()
		return nil
	})

	return src, nil
}
