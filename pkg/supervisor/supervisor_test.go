package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "port zero", modify: func(o *Options) { o.Port = 0 }},
		{name: "port too large", modify: func(o *Options) { o.Port = 70000 }},
		{name: "no server command", modify: func(o *Options) { o.ServerCommand = nil }},
		{name: "empty server executable", modify: func(o *Options) { o.ServerCommand = []string{""} }},
		{name: "no browser", modify: func(o *Options) { o.BrowserCommand = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			if _, err := New(opts); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestIgnoredEventChangesNothing(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Ignored)

	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	if len(*h.journal) != 0 {
		t.Errorf("journal = %v, want no actions", *h.journal)
	}
}

func TestLockActivates(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)

	if got := h.sup.State(); got != Active {
		t.Fatalf("State() = %v, want %v", got, Active)
	}
	if h.sup.server == nil || h.sup.browser == nil {
		t.Fatalf("server = %v, browser = %v, want both recorded", h.sup.server, h.sup.browser)
	}
	if dir := h.sup.ProfileDir(); dir == "" || !h.exists(t, dir) {
		t.Fatalf("profile dir %q does not exist", dir)
	}
	if !strings.HasPrefix(h.sup.ProfileDir(), "/tmp/"+profilePrefix) {
		t.Errorf("profile dir = %q, want prefix %q", h.sup.ProfileDir(), "/tmp/"+profilePrefix)
	}

	wantOrder := []string{"free port", "start python3", "ready", "start chromium-browser"}
	if diff := cmp.Diff(wantOrder, *h.journal); diff != "" {
		t.Errorf("action order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{8080}, h.ports.calls); diff != "" {
		t.Errorf("freed ports mismatch (-want +got):\n%s", diff)
	}
}

func TestLockLaunchArguments(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)

	want := []startCall{
		{
			name: "python3",
			args: []string{"-m", "http.server", "8080", "--directory", "/srv/screensaver"},
		},
		{
			name: "chromium-browser",
			args: []string{
				"--app=http://localhost:8080/index.html",
				"--kiosk",
				"--incognito",
				"--user-data-dir=" + h.sup.ProfileDir(),
				"--new-window",
			},
		},
	}
	if diff := cmp.Diff(want, h.launcher.starts, cmp.AllowUnexported(startCall{})); diff != "" {
		t.Errorf("launches mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateLockIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	server, browser, dir := h.sup.server, h.sup.browser, h.sup.profileDir
	actions := len(*h.journal)

	h.sup.Handle(testContext(t), screensaver.Locked)

	if len(*h.journal) != actions {
		t.Errorf("duplicate lock performed actions: %v", (*h.journal)[actions:])
	}
	if h.sup.server != server || h.sup.browser != browser || h.sup.profileDir != dir {
		t.Error("duplicate lock replaced the recorded handles")
	}
	if len(h.launcher.starts) != 2 {
		t.Errorf("started %d processes, want 2", len(h.launcher.starts))
	}
}

func TestUnlockTearsDown(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	dir := h.sup.ProfileDir()

	h.sup.Handle(testContext(t), screensaver.Unlocked)

	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	for _, p := range h.launcher.procs {
		if p.Alive() {
			t.Errorf("%s (pid %d) is still running", p.name, p.pid)
		}
		if p.kills != 1 {
			t.Errorf("%s killed %d times, want 1", p.name, p.kills)
		}
	}
	if h.exists(t, dir) {
		t.Errorf("profile dir %s still exists", dir)
	}
}

func TestUnlockWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Unlocked)

	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	if len(*h.journal) != 0 {
		t.Errorf("journal = %v, want no actions", *h.journal)
	}
}

func TestCleanupErrorsAreSwallowed(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	for _, p := range h.launcher.procs {
		p.killErr = errors.New("operation not permitted")
	}
	dir := h.sup.ProfileDir()
	if err := h.fs.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	h.sup.Handle(testContext(t), screensaver.Unlocked)

	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}

	// The loop keeps working after a failed teardown.
	h.sup.Handle(testContext(t), screensaver.Locked)
	if got := h.sup.State(); got != Active {
		t.Errorf("State() after relock = %v, want %v", got, Active)
	}
}

func TestPortFreeFailureDoesNotStopActivation(t *testing.T) {
	h := newHarness(t)
	h.ports.err = errors.New("permission denied")

	h.sup.Handle(testContext(t), screensaver.Locked)

	if h.sup.server == nil || h.sup.browser == nil {
		t.Error("activation stopped after port freeing failed")
	}
}

func TestServerSpawnFailure(t *testing.T) {
	h := newHarness(t)
	h.launcher.fail["python3"] = errSpawn

	h.sup.Handle(testContext(t), screensaver.Locked)

	if h.sup.server != nil {
		t.Errorf("server = %v, want unset", h.sup.server)
	}
	if h.sup.browser == nil {
		t.Fatal("browser was not started")
	}

	h.sup.Handle(testContext(t), screensaver.Unlocked)
	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
}

func TestBrowserSpawnFailure(t *testing.T) {
	h := newHarness(t)
	h.launcher.fail["chromium-browser"] = errSpawn

	h.sup.Handle(testContext(t), screensaver.Locked)

	if h.sup.browser != nil {
		t.Errorf("browser = %v, want unset", h.sup.browser)
	}
	dir := h.sup.ProfileDir()

	h.sup.Handle(testContext(t), screensaver.Unlocked)
	if h.exists(t, dir) {
		t.Errorf("profile dir %s still exists", dir)
	}
	if p := h.launcher.procs[0]; p.Alive() {
		t.Error("server is still running")
	}
}

func TestLockRestartsWhenServerDied(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	oldServer, oldBrowser := h.launcher.procs[0], h.launcher.procs[1]
	oldDir := h.sup.ProfileDir()
	oldServer.alive = false

	h.sup.Handle(testContext(t), screensaver.Locked)

	if oldBrowser.Alive() {
		t.Error("browser of the previous activation is still running")
	}
	if h.exists(t, oldDir) {
		t.Errorf("previous profile dir %s still exists", oldDir)
	}
	if len(h.launcher.starts) != 4 {
		t.Errorf("started %d processes, want 4", len(h.launcher.starts))
	}
	if h.sup.ProfileDir() == oldDir || !h.exists(t, h.sup.ProfileDir()) {
		t.Errorf("profile dir = %q, want a new existing directory", h.sup.ProfileDir())
	}
}

func TestLockIgnoresBrowserLiveness(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	h.launcher.procs[1].alive = false

	h.sup.Handle(testContext(t), screensaver.Locked)

	if len(h.launcher.starts) != 2 {
		t.Errorf("started %d processes, want 2", len(h.launcher.starts))
	}
}

func TestActivateHooks(t *testing.T) {
	var calls int
	h := newHarness(t,
		WithActivateHook(func(context.Context) error {
			calls++
			return errors.New("collection is already locked")
		}),
	)

	h.sup.Handle(testContext(t), screensaver.Locked)
	h.sup.Handle(testContext(t), screensaver.Locked)

	if calls != 1 {
		t.Errorf("hook called %d times, want 1", calls)
	}
	if got := h.sup.State(); got != Active {
		t.Errorf("State() = %v, want %v", got, Active)
	}
}

func TestCloseTearsDown(t *testing.T) {
	h := newHarness(t)

	h.sup.Handle(testContext(t), screensaver.Locked)
	dir := h.sup.ProfileDir()

	if err := h.sup.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := h.sup.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	if h.exists(t, dir) {
		t.Errorf("profile dir %s still exists", dir)
	}
	for _, p := range h.launcher.procs {
		if p.kills != 1 {
			t.Errorf("%s killed %d times, want 1", p.name, p.kills)
		}
	}
}

type chanSource chan screensaver.Event

func (c chanSource) Events() <-chan screensaver.Event { return c }
func (c chanSource) Close() error                     { return nil }

func TestRunCancellationTearsDown(t *testing.T) {
	h := newHarness(t)
	src := make(chanSource)
	ctx, cancel := context.WithCancel(testContext(t))

	done := make(chan error, 1)
	go func() {
		done <- h.sup.Run(ctx, src)
	}()

	src <- screensaver.Locked
	// The loop only receives the next event once the lock was handled.
	src <- screensaver.Ignored
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	if len(h.launcher.procs) != 2 {
		t.Fatalf("started %d processes, want 2", len(h.launcher.procs))
	}
	for _, p := range h.launcher.procs {
		if p.Alive() {
			t.Errorf("%s is still running", p.name)
		}
	}
}

func TestRunScenario(t *testing.T) {
	h := newHarness(t)
	src := screensaver.NewLineSource(strings.NewReader(strings.Join([]string{
		"irrelevant line",
		"   boolean true",
		"   boolean true",
		"   boolean false",
	}, "\n")))

	if err := h.sup.Run(testContext(t), src); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	want := []string{
		"free port",
		"start python3",
		"ready",
		"start chromium-browser",
	}
	if diff := cmp.Diff(want, *h.journal); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	for _, p := range h.launcher.procs {
		if p.kills != 1 {
			t.Errorf("%s killed %d times, want 1", p.name, p.kills)
		}
	}
	if got := h.sup.State(); got != Idle {
		t.Errorf("State() = %v, want %v", got, Idle)
	}
	entries, err := afero.ReadDir(h.fs, "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("/tmp has %d entries left, want 0", len(entries))
	}
}

func TestReadinessCancellationAbortsActivation(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	h := newHarness(t, WithReadiness(ReadinessFunc(func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	})))

	h.sup.Handle(ctx, screensaver.Locked)

	if h.sup.browser != nil {
		t.Error("browser started after the context was cancelled")
	}
	if h.sup.server == nil {
		t.Error("server handle was dropped, it would not be cleaned up")
	}
}
