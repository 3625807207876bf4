package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

var (
	// ErrPIDFileNotFound is returned when no PID file exists.
	ErrPIDFileNotFound = errors.New("PID file not found")
	// ErrAlreadyRunning is returned by Claim when a live server owns the file.
	ErrAlreadyRunning = errors.New("server already running")
)

// PIDRecord is what a running server leaves behind for status and stop.
type PIDRecord struct {
	PID  int
	Addr string
}

// PIDFile records the process ID and listen address of a running server.
// The file holds two lines: the PID, then the address.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Claim writes a record for the current process listening on addr. A file
// left by a dead process is replaced; one owned by a live process is not.
//
// The check and the write happen under a lock on path+".lock", so two
// servers starting together cannot both claim the file.
func (p *PIDFile) Claim(addr string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	lock := flock.New(p.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock PID file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if rec, err := p.Read(); err == nil && rec.PID != os.Getpid() && processExists(rec.PID) {
		return fmt.Errorf("%w: pid %d on %s", ErrAlreadyRunning, rec.PID, rec.Addr)
	}
	return p.Write(PIDRecord{PID: os.Getpid(), Addr: addr})
}

// Write stores rec, creating the directory if needed. The file is
// replaced atomically.
func (p *PIDFile) Write(rec PIDRecord) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := fmt.Fprintf(tmp, "%d\n%s\n", rec.PID, rec.Addr); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read parses the stored record.
func (p *PIDFile) Read() (PIDRecord, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return PIDRecord{}, ErrPIDFileNotFound
		}
		return PIDRecord{}, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidLine, addr, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil || pid <= 0 {
		return PIDRecord{}, fmt.Errorf("invalid PID in file %s", p.path)
	}
	return PIDRecord{PID: pid, Addr: strings.TrimSpace(addr)}, nil
}

// Remove deletes the PID file if it still belongs to this process.
func (p *PIDFile) Remove() error {
	rec, err := p.Read()
	if errors.Is(err, ErrPIDFileNotFound) {
		return nil
	}
	if err == nil && rec.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive.
func (p *PIDFile) IsRunning() bool {
	rec, err := p.Read()
	if err != nil {
		return false
	}
	return processExists(rec.PID)
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	rec, err := p.Read()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(rec.PID)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", rec.PID, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", rec.PID, err)
	}
	return nil
}

// processExists probes pid with signal 0; FindProcess alone always
// succeeds on Unix.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
