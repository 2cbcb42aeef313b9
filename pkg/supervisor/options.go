package supervisor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Placeholders replaced in Options.ServerCommand.
const (
	PlaceholderPort = "{port}"
	PlaceholderDir  = "{dir}"
)

// DefaultServerCommand serves the content directory with Python's http.server.
var DefaultServerCommand = []string{
	"python3", "-m", "http.server", PlaceholderPort, "--directory", PlaceholderDir,
}

const profilePrefix = "screensaver-profile-"

// Options configure what the supervisor launches.
type Options struct {
	// Port is the TCP port the file server binds and the browser targets.
	Port int

	// ContentDir is served as the screensaver content root.
	ContentDir string

	// ServerCommand is the file server invocation. {port} and {dir} are substituted.
	ServerCommand []string

	// BrowserCommand is the browser executable, e.g. chromium-browser.
	BrowserCommand string

	// BrowserArgs are appended after the kiosk flags.
	BrowserArgs []string

	// Page is the path, and optionally query, opened on the server.
	Page string

	// ProfileParent is where profile directories are created. Empty means the OS temp dir.
	ProfileParent string
}

func (o Options) validate() error {
	var err error
	if o.Port < 1 || o.Port > 65535 {
		err = errors.Join(err, fmt.Errorf("port %d is out of range", o.Port))
	}
	if len(o.ServerCommand) == 0 || o.ServerCommand[0] == "" {
		err = errors.Join(err, errors.New("server command is empty"))
	}
	if o.BrowserCommand == "" {
		err = errors.Join(err, errors.New("browser command is empty"))
	}

	return err
}

func (o Options) serverCommand() (string, []string) {
	r := strings.NewReplacer(
		PlaceholderPort, strconv.Itoa(o.Port),
		PlaceholderDir, o.ContentDir,
	)

	expanded := make([]string, len(o.ServerCommand))
	for i, arg := range o.ServerCommand {
		expanded[i] = r.Replace(arg)
	}

	return expanded[0], expanded[1:]
}

func (o Options) url() string {
	return fmt.Sprintf("http://localhost:%d/%s", o.Port, strings.TrimPrefix(o.Page, "/"))
}

func (o Options) addr() string {
	return "localhost:" + strconv.Itoa(o.Port)
}

// browserArgs opens the page as a full screen app window in a fresh incognito session that
// cannot attach to an already running browser.
func (o Options) browserArgs(profileDir string) []string {
	args := []string{
		"--app=" + o.url(),
		"--kiosk",
		"--incognito",
		"--user-data-dir=" + profileDir,
		"--new-window",
	}

	return append(args, o.BrowserArgs...)
}
