// Package syscalls turns syscall numbers of the running architecture into
// names.
package syscalls

import (
	"fmt"
	"io"
	"sort"

	seccomp "github.com/seccomp/libseccomp-golang"
)

// Lookup resolves id to its name on the native architecture.
func Lookup(id uint32) (string, error) {
	name, err := seccomp.ScmpSyscall(id).GetName()
	if err != nil {
		return "", fmt.Errorf("resolve syscall %d: %w", id, err)
	}
	return name, nil
}

// Name is Lookup with unknown numbers rendered as syscall_<id>.
func Name(id uint32) string {
	name, err := Lookup(id)
	if err != nil {
		return fmt.Sprintf("syscall_%d", id)
	}
	return name
}

// IsValid reports whether name is a syscall known to libseccomp.
func IsValid(name string) bool {
	_, err := seccomp.GetSyscallFromName(name)
	return err == nil
}

// Print writes the name of each syscall in ids on its own line.
func Print(w io.Writer, ids []uint32) error {
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, Name(id)); err != nil {
			return err
		}
	}
	return nil
}

// Summarize counts the occurrences of each syscall by name.
func Summarize(ids []uint32) map[string]int {
	counts := make(map[string]int)
	for _, id := range ids {
		counts[Name(id)]++
	}
	return counts
}

// Unique returns the distinct names in ids, sorted.
func Unique(ids []uint32) []string {
	counts := Summarize(ids)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
