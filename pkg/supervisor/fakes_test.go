package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
)

type fakeProcess struct {
	name    string
	pid     int
	alive   bool
	kills   int
	killErr error
}

func (p *fakeProcess) Pid() int    { return p.pid }
func (p *fakeProcess) Alive() bool { return p.alive }

func (p *fakeProcess) Kill() error {
	p.kills++
	p.alive = false
	return p.killErr
}

type startCall struct {
	name string
	args []string
}

type fakeLauncher struct {
	journal *[]string
	nextPid int
	fail    map[string]error
	starts  []startCall
	procs   []*fakeProcess
}

func (l *fakeLauncher) Start(name string, args ...string) (Process, error) {
	*l.journal = append(*l.journal, "start "+name)
	if err := l.fail[name]; err != nil {
		return nil, err
	}

	l.nextPid++
	l.starts = append(l.starts, startCall{name: name, args: args})
	p := &fakeProcess{name: name, pid: 1000 + l.nextPid, alive: true}
	l.procs = append(l.procs, p)
	return p, nil
}

type fakePorts struct {
	journal *[]string
	calls   []int
	err     error
}

func (f *fakePorts) FreePort(port int) ([]int, error) {
	*f.journal = append(*f.journal, "free port")
	f.calls = append(f.calls, port)
	return nil, f.err
}

type harness struct {
	sup      *Supervisor
	launcher *fakeLauncher
	ports    *fakePorts
	fs       afero.Fs
	journal  *[]string
	ready    int
}

func testOptions() Options {
	return Options{
		Port:           8080,
		ContentDir:     "/srv/screensaver",
		ServerCommand:  DefaultServerCommand,
		BrowserCommand: "chromium-browser",
		Page:           "index.html",
		ProfileParent:  "/tmp",
	}
}

func newHarness(t *testing.T, options ...Option) *harness {
	t.Helper()

	journal := &[]string{}
	h := &harness{
		launcher: &fakeLauncher{journal: journal, fail: map[string]error{}},
		ports:    &fakePorts{journal: journal},
		fs:       afero.NewMemMapFs(),
		journal:  journal,
	}

	if err := h.fs.MkdirAll("/tmp", 0o755); err != nil {
		t.Fatal(err)
	}

	base := []Option{
		WithLauncher(h.launcher),
		WithPortFreer(h.ports),
		WithFs(h.fs),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithReadiness(ReadinessFunc(func(context.Context, string) error {
			*journal = append(*journal, "ready")
			h.ready++
			return nil
		})),
	}

	sup, err := New(testOptions(), append(base, options...)...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	h.sup = sup

	return h
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()

	ok, err := afero.DirExists(h.fs, path)
	if err != nil {
		t.Fatalf("DirExists(%s) = %v", path, err)
	}
	return ok
}

var errSpawn = errors.New("executable file not found in $PATH")
