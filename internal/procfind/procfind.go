// Package procfind locates running processes to attach to.
package procfind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrNotFound is returned when no process matches.
var ErrNotFound = errors.New("process not found")

// Process identifies a running process.
type Process struct {
	PID  int
	Name string
	Exe  string
}

// ByPID looks up the process with the given pid.
func ByPID(ctx context.Context, pid int) (*Process, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
		}
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}
	return describe(ctx, proc)
}

// ByName returns every running process whose command name is name.
func ByName(ctx context.Context, name string) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var found []Process
	for _, proc := range procs {
		procName, err := proc.NameWithContext(ctx)
		if err != nil || procName != name {
			continue
		}
		p, err := describe(ctx, proc)
		if err != nil {
			// exited while we looked
			continue
		}
		found = append(found, *p)
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return found, nil
}

// Alive reports whether pid still exists.
func Alive(ctx context.Context, pid int) bool {
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && exists
}

// WaitExit polls every interval until pid is gone or ctx ends.
func WaitExit(ctx context.Context, pid int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !Alive(ctx, pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func describe(ctx context.Context, proc *process.Process) (*Process, error) {
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("pid %d name: %w", proc.Pid, err)
	}
	exe, err := proc.ExeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("pid %d executable: %w", proc.Pid, err)
	}
	return &Process{PID: int(proc.Pid), Name: name, Exe: exe}, nil
}
