package analyzer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNoBinaries is returned when an analysis has nothing to trace.
var ErrNoBinaries = errors.New("analysis lists no test binaries")

// Analysis maps test binaries to the module functions their tests call.
type Analysis struct {
	Module   string       `yaml:"module"`
	Binaries []TestBinary `yaml:"testBinaries"`
}

// TestBinary is the compiled tests of one package.
type TestBinary struct {
	Package string   `yaml:"package"`
	Path    string   `yaml:"path"`
	Symbols []string `yaml:"symbols"`
}

// Write encodes the analysis as YAML.
func (a *Analysis) Write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return encoder.Close()
}

// Save writes the analysis to path.
func (a *Analysis) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := a.Write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Load reads an analysis written by Save. An analysis without binaries
// returns ErrNoBinaries.
func Load(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Analysis
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(a.Binaries) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoBinaries)
	}
	return &a, nil
}
