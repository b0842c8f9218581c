// Package elfsym reads function symbols out of ELF executables.
package elfsym

import (
	"debug/elf"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrSymbolNotFound is returned when the binary has no such function.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrNoReturn is returned when a function contains no RET instruction.
	ErrNoReturn = errors.New("no RET instructions found")
)

var (
	closureSuffix = regexp.MustCompile(`\.func\d+$`)
	testFunction  = regexp.MustCompile(`\.Test[\w.]*$`)
)

// IsGoBinary reports whether the executable at path was built by the Go
// toolchain.
func IsGoBinary(path string) (bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	for _, name := range []string{".go.buildinfo", ".gopclntab", ".note.go.buildid"} {
		if f.Section(name) != nil {
			return true, nil
		}
	}
	return false, nil
}

// FunctionSymbols lists the function symbols of the executable whose name
// contains pattern. Test functions, closures and type symbols are skipped.
func FunctionSymbols(path, pattern string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}

	var names []string
	for _, sym := range symbols {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		if !strings.Contains(sym.Name, pattern) {
			continue
		}
		if skipSymbol(sym.Name) {
			continue
		}
		names = append(names, sym.Name)
	}
	return names, nil
}

func skipSymbol(name string) bool {
	return strings.HasPrefix(name, "type:") ||
		closureSuffix.MatchString(name) ||
		testFunction.MatchString(name)
}

// ReturnOffsets returns the offsets, relative to the start of symbol, of
// every RET instruction in the function's body.
func ReturnOffsets(path, symbol string) ([]uint64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body, err := functionBody(f, symbol)
	if err != nil {
		return nil, err
	}

	offsets, err := decodeReturns(body, f.Machine)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", symbol, err)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoReturn)
	}
	return offsets, nil
}

func functionBody(f *elf.File, symbol string) ([]byte, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}

	for _, sym := range symbols {
		if sym.Name != symbol {
			continue
		}
		if int(sym.Section) >= len(f.Sections) {
			return nil, fmt.Errorf("%s: section index %d out of range", symbol, sym.Section)
		}
		section := f.Sections[sym.Section]
		text, err := section.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", section.Name, err)
		}
		start := sym.Value - section.Addr
		end := start + sym.Size
		if end > uint64(len(text)) {
			return nil, fmt.Errorf("%s: body exceeds section %s", symbol, section.Name)
		}
		return text[start:end], nil
	}
	return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
}
