package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Names of the predefined syscall sets.
const (
	SetDynamic = "dynamic"
	SetStatic  = "static"
	SetDocker  = "docker"
)

// Syscalls a Go program needs before main runs, or a container runtime
// needs to start it. Function traces never see these.
var sets = map[string][]string{
	SetDynamic: {
		"access", "arch_prctl", "brk", "clone3", "close", "execve",
		"exit_group", "fcntl", "fstat", "futex", "getrandom", "getrlimit",
		"gettid", "madvise", "mmap", "mprotect", "munmap", "openat",
		"pread64", "prlimit64", "read", "rseq", "rt_sigaction",
		"rt_sigprocmask", "rt_sigreturn", "sched_getaffinity", "setrlimit",
		"set_robust_list", "set_tid_address", "sigaltstack",
	},
	SetStatic: {
		"arch_prctl", "clone", "close", "execve", "exit_group", "fcntl",
		"futex", "getrlimit", "gettid", "madvise", "mmap", "openat", "read",
		"rt_sigaction", "rt_sigprocmask", "rt_sigreturn",
		"sched_getaffinity", "setrlimit", "sigaltstack",
	},
	SetDocker: {
		"capget", "capset", "chdir", "epoll_pwait", "eventfd", "eventfd2",
		"fchown", "futex", "fstatfs", "getcwd", "getdents64", "geteuid",
		"getpgrp", "getpid", "getppid", "ioctl", "lstat", "lseek",
		"newfstatat", "openat", "prctl", "setgid", "setgroups", "setsid",
		"setuid", "stat",
	},
}

// SetNames lists the predefined set names, sorted.
func SetNames() []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set returns the syscalls of the named set.
func Set(name string) ([]string, error) {
	set, ok := sets[name]
	if !ok {
		return nil, fmt.Errorf("unknown syscall set %q (available: %s)", name, strings.Join(SetNames(), ", "))
	}
	return set, nil
}

// ValidateSets fails on the first name that is not a predefined set.
func ValidateSets(names []string) error {
	for _, name := range names {
		if _, err := Set(name); err != nil {
			return err
		}
	}
	return nil
}

var versionSuffix = regexp.MustCompile(`[0-9]+$`)

// Syscalls that differ only by a numeric suffix or a flags argument.
var variantGroups = map[string][]string{
	"accept":          {"accept", "accept4"},
	"clone":           {"clone", "clone2", "clone3"},
	"dup":             {"dup", "dup2", "dup3"},
	"epoll_create":    {"epoll_create", "epoll_create1"},
	"epoll_pwait":     {"epoll_pwait", "epoll_pwait2"},
	"eventfd":         {"eventfd", "eventfd2"},
	"faccessat":       {"faccessat", "faccessat2"},
	"inotify_init":    {"inotify_init", "inotify_init1"},
	"mlock":           {"mlock", "mlock2"},
	"mmap":            {"mmap", "mmap2"},
	"openat":          {"openat", "openat2"},
	"pipe":            {"pipe", "pipe2"},
	"preadv":          {"preadv", "preadv2"},
	"pwritev":         {"pwritev", "pwritev2"},
	"renameat":        {"renameat", "renameat2"},
	"signalfd":        {"signalfd", "signalfd4"},
	"sync_file_range": {"sync_file_range", "sync_file_range2"},
	"umount":          {"umount", "umount2"},
}

// Variants returns every syscall of the group name belongs to, or nil when
// name has no variants.
func Variants(name string) []string {
	if name == "" {
		return nil
	}
	return variantGroups[versionSuffix.ReplaceAllString(name, "")]
}
