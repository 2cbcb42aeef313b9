package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// PortFreer terminates every process listening on a TCP port.
type PortFreer interface {
	// FreePort returns the pids that were killed. Finding no listener is not an error.
	FreePort(port int) ([]int, error)
}

// tcpListen is the kernel's hex encoding of TCP_LISTEN in /proc/net/tcp.
const tcpListen = "0A"

// ProcPortFreer finds listeners through the proc filesystem.
type ProcPortFreer struct {
	// Proc is the proc filesystem. It must implement afero.LinkReader.
	Proc afero.Fs

	// Kill sends the kill signal to pid.
	Kill func(pid int) error

	// Self is excluded from the kill list.
	Self int
}

// NewProcPortFreer returns a ProcPortFreer operating on /proc that kills with SIGKILL.
func NewProcPortFreer() *ProcPortFreer {
	return &ProcPortFreer{
		Proc: afero.NewBasePathFs(afero.NewOsFs(), "/proc"),
		Kill: func(pid int) error {
			return unix.Kill(pid, unix.SIGKILL)
		},
		Self: os.Getpid(),
	}
}

func (f *ProcPortFreer) FreePort(port int) ([]int, error) {
	inodes, err := f.listeningInodes(port)
	if err != nil {
		return nil, err
	}
	if len(inodes) == 0 {
		return nil, nil
	}

	pids, err := f.socketOwners(inodes)
	if err != nil {
		return nil, err
	}

	var killed []int
	var killErr error
	for _, pid := range pids {
		if pid == f.Self {
			continue
		}

		err := f.Kill(pid)
		switch {
		case err == nil:
			killed = append(killed, pid)
		case errors.Is(err, unix.ESRCH):
			// Exited in the meantime.
		default:
			killErr = errors.Join(killErr, fmt.Errorf("failed to kill pid %d: %w", pid, err))
		}
	}

	return killed, killErr
}

// listeningInodes returns the socket inodes listening on port over IPv4 and IPv6.
func (f *ProcPortFreer) listeningInodes(port int) (map[string]struct{}, error) {
	inodes := make(map[string]struct{})
	var found bool
	for _, table := range []string{"/net/tcp", "/net/tcp6"} {
		file, err := f.Proc.Open(table)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", table, err)
		}
		found = true

		err = scanSocketTable(file, port, inodes)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}
	}

	if !found {
		return nil, errors.New("no TCP socket table found in proc filesystem")
	}

	return inodes, nil
}

// scanSocketTable parses the format of /proc/net/tcp:
//
//	sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
//	 0: 00000000:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 41234
func scanSocketTable(r afero.File, port int, inodes map[string]struct{}) error {
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 || fields[3] != tcpListen {
			continue
		}

		_, portHex, ok := strings.Cut(fields[1], ":")
		if !ok {
			continue
		}

		localPort, err := strconv.ParseUint(portHex, 16, 16)
		if err != nil || int(localPort) != port {
			continue
		}

		if fields[9] != "0" {
			inodes[fields[9]] = struct{}{}
		}
	}

	return scanner.Err()
}

// socketOwners returns the pids holding a file descriptor to one of the socket inodes.
// Processes that cannot be inspected, e.g. those of other users, are skipped.
func (f *ProcPortFreer) socketOwners(inodes map[string]struct{}) ([]int, error) {
	linkReader, ok := f.Proc.(afero.LinkReader)
	if !ok {
		return nil, errors.New("proc filesystem does not support reading links")
	}

	entries, err := afero.ReadDir(f.Proc, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}

		fdDir := path.Join("/", entry.Name(), "fd")
		fds, err := afero.ReadDir(f.Proc, fdDir)
		if err != nil {
			continue
		}

		for _, fd := range fds {
			target, err := linkReader.ReadlinkIfPossible(path.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}

			inode, ok := strings.CutPrefix(target, "socket:[")
			if !ok {
				continue
			}

			if _, match := inodes[strings.TrimSuffix(inode, "]")]; match {
				pids = append(pids, pid)
				break
			}
		}
	}

	slices.Sort(pids)
	return pids, nil
}
