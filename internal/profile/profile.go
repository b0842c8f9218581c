// Package profile turns saved capture reports into a seccomp profile that
// allows exactly the syscalls observed.
package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	seccomp "github.com/seccomp/libseccomp-golang"
	"go.uber.org/zap"

	"sctrace/internal/report"
	"sctrace/internal/syscalls"
)

// Seccomp actions used by the generated profile.
const (
	ActionDeny  = "SCMP_ACT_ERRNO"
	ActionAllow = "SCMP_ACT_ALLOW"
)

var archNames = map[seccomp.ScmpArch]string{
	seccomp.ArchX86:     "SCMP_ARCH_X86",
	seccomp.ArchAMD64:   "SCMP_ARCH_X86_64",
	seccomp.ArchX32:     "SCMP_ARCH_X32",
	seccomp.ArchARM:     "SCMP_ARCH_ARM",
	seccomp.ArchARM64:   "SCMP_ARCH_AARCH64",
	seccomp.ArchPPC64LE: "SCMP_ARCH_PPC64LE",
	seccomp.ArchS390X:   "SCMP_ARCH_S390X",
	seccomp.ArchRISCV64: "SCMP_ARCH_RISCV64",
}

// Profile is a seccomp profile in the JSON layout container runtimes read.
type Profile struct {
	DefaultAction string   `json:"defaultAction"`
	Architectures []string `json:"architectures,omitempty"`
	Syscalls      []Rule   `json:"syscalls"`
}

// Rule applies Action to every syscall in Names.
type Rule struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

// Builder accumulates syscall names for a profile. Names libseccomp does
// not know are dropped.
type Builder struct {
	variants bool
	names    map[string]struct{}
	logger   *zap.Logger
}

// NewBuilder returns an empty builder. With variants set, every syscall is
// added together with the other members of its variant group.
func NewBuilder(variants bool, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		variants: variants,
		names:    make(map[string]struct{}),
		logger:   logger,
	}
}

// Add records name and reports whether it was a valid syscall.
func (b *Builder) Add(name string) bool {
	name = strings.TrimSpace(name)
	if !syscalls.IsValid(name) {
		b.logger.Debug("skipping unknown syscall", zap.String("name", name))
		return false
	}

	if b.variants {
		if group := Variants(name); len(group) > 0 {
			for _, v := range group {
				if syscalls.IsValid(v) {
					b.names[v] = struct{}{}
				}
			}
			return true
		}
	}
	b.names[name] = struct{}{}
	return true
}

// AddSet records every syscall of the named predefined set.
func (b *Builder) AddSet(name string) error {
	set, err := Set(name)
	if err != nil {
		return err
	}
	for _, sc := range set {
		b.Add(sc)
	}
	return nil
}

// AddReport records the syscalls of a capture report.
func (b *Builder) AddReport(r *report.Report) {
	for _, sc := range r.Syscalls {
		b.Add(sc)
	}
}

// LoadDir adds every YAML report found directly in dir and returns how many
// were read.
func (b *Builder) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}

		r, err := report.Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, err
		}
		b.AddReport(r)
		loaded++
		b.logger.Debug("report loaded",
			zap.String("file", entry.Name()),
			zap.Int("syscalls", len(r.Syscalls)),
		)
	}
	return loaded, nil
}

// Names returns the recorded syscalls, sorted.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.names))
	for name := range b.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile denies everything except the recorded syscalls on the native
// architecture.
func (b *Builder) Profile() *Profile {
	p := &Profile{
		DefaultAction: ActionDeny,
		Syscalls:      []Rule{},
	}
	if arch, err := seccomp.GetNativeArch(); err == nil {
		if name, ok := archNames[arch]; ok {
			p.Architectures = []string{name}
		}
	}
	if names := b.Names(); len(names) > 0 {
		p.Syscalls = append(p.Syscalls, Rule{Names: names, Action: ActionAllow})
	}
	return p
}

// Write encodes the profile as indented JSON.
func (p *Profile) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(p); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return nil
}

// Save writes the profile to path with mode 0644.
func (p *Profile) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := p.Write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
