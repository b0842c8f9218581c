// Package report records the outcome of a capture as YAML.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sctrace/internal/syscalls"
)

// Report summarizes the syscalls observed while the traced functions ran.
type Report struct {
	Command   []string       `yaml:"command,omitempty"`
	Functions []string       `yaml:"functions,omitempty"`
	Target    string         `yaml:"target"`
	Syscalls  []string       `yaml:"syscalls"`
	Counts    map[string]int `yaml:"counts"`
	Total     int            `yaml:"total"`
	Dropped   uint64         `yaml:"dropped"`
}

// New builds a report from the syscall ids collected in arrival order.
func New(target string, command, functions []string, ids []uint32, dropped uint64) *Report {
	return &Report{
		Command:   command,
		Functions: functions,
		Target:    target,
		Syscalls:  syscalls.Unique(ids),
		Counts:    syscalls.Summarize(ids),
		Total:     len(ids),
		Dropped:   dropped,
	}
}

// FileName turns a function symbol into a file name.
func FileName(symbol string) string {
	return strings.NewReplacer("/", "_", ".", "_").Replace(symbol)
}

// Write encodes the report as YAML.
func (r *Report) Write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return encoder.Close()
}

// Save writes the report into dir, naming the file after name, and returns
// the path written.
func (r *Report) Save(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName(name)+".yaml")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := r.Write(f); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Load reads a report previously written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &r, nil
}
