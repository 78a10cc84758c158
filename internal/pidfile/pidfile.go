// Package pidfile records the server's PID on disk so init scripts and
// operators can find the running daemon.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Pidfile manages one PID file.
type Pidfile struct {
	path string
}

// New returns a Pidfile for path. Nothing is written until Write.
func New(path string) *Pidfile {
	return &Pidfile{path: path}
}

// Path returns the PID file location.
func (p *Pidfile) Path() string {
	return p.path
}

// Write records the current process's PID, creating parent directories.
// An existing file from a live process is an error; a stale file is
// overwritten.
func (p *Pidfile) Write() error {
	if pid, err := p.Read(); err == nil && processAlive(pid) {
		return fmt.Errorf("pidfile %s held by running process %d", p.path, pid)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create pidfile directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Read returns the PID stored in the file.
func (p *Pidfile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", p.path, err)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *Pidfile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// processAlive reports whether a process with pid exists. On Unix,
// signal 0 probes without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
