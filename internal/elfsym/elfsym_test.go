package elfsym

import (
	"debug/elf"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipSymbol(t *testing.T) {
	tests := []struct {
		name string
		sym  string
		want bool
	}{
		{"plain function", "example.com/app/internal/store.Convert", false},
		{"method", "debug/dwarf.(*Data).readType", false},
		{"closure", "debug/dwarf.(*Data).readType.func1", true},
		{"nested closure", "example.com/app/pkg/api.Spec.Match.func21", true},
		{"test function", "example.com/app/api/v1.TestOwnerList_Find", true},
		{"name mentioning tests", "net/http.http2got1xxFuncForTests", false},
		{"type symbol", "type:.eq.main.config", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, skipSymbol(tt.sym))
		})
	}
}

func TestDecodeReturns(t *testing.T) {
	tests := []struct {
		name    string
		machine elf.Machine
		code    []byte
		want    []uint64
	}{
		{
			name:    "amd64",
			machine: elf.EM_X86_64,
			// push rbp; mov rbp, rsp; ret; nop; ret
			code: []byte{0x55, 0x48, 0x89, 0xe5, 0xc3, 0x90, 0xc3},
			want: []uint64{4, 6},
		},
		{
			name:    "arm64 with padding",
			machine: elf.EM_AARCH64,
			// nop; ret; padding; ret
			code: []byte{
				0x1f, 0x20, 0x03, 0xd5,
				0xc0, 0x03, 0x5f, 0xd6,
				0x00, 0x00, 0x00, 0x00,
				0xc0, 0x03, 0x5f, 0xd6,
			},
			want: []uint64{4, 12},
		},
		{
			name:    "amd64 without return",
			machine: elf.EM_X86_64,
			code:    []byte{0x90, 0x90},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReturns(tt.code, tt.machine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeReturns_UnsupportedArch(t *testing.T) {
	_, err := decodeReturns([]byte{0x00}, elf.EM_MIPS)
	assert.ErrorContains(t, err, "unsupported architecture")
}

//go:noinline
func sampleFunction(n int) int {
	if n > 10 {
		return n * 2
	}
	return n + 1
}

func testBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("ELF test binaries are only produced on linux")
	}
	path, err := os.Executable()
	require.NoError(t, err)
	return path
}

func TestIsGoBinary(t *testing.T) {
	isGo, err := IsGoBinary(testBinary(t))
	require.NoError(t, err)
	assert.True(t, isGo)
}

func TestIsGoBinary_NotELF(t *testing.T) {
	path := t.TempDir() + "/script.sh"
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	_, err := IsGoBinary(path)
	assert.Error(t, err)
}

func TestFunctionSymbols(t *testing.T) {
	const sym = "sctrace/internal/elfsym.sampleFunction"
	assert.Equal(t, 15, sampleFunction(5)+sampleFunction(4))

	names, err := FunctionSymbols(testBinary(t), "internal/elfsym.")
	require.NoError(t, err)
	assert.Contains(t, names, sym)
	for _, name := range names {
		assert.False(t, strings.Contains(name, ".Test"), name)
	}
}

func TestReturnOffsets(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("no decoder for %s", runtime.GOARCH)
	}
	assert.Equal(t, 24, sampleFunction(12))

	offsets, err := ReturnOffsets(testBinary(t), "sctrace/internal/elfsym.sampleFunction")
	require.NoError(t, err)
	assert.NotEmpty(t, offsets)
	for _, off := range offsets {
		assert.Greater(t, off, uint64(0))
	}
}

func TestReturnOffsets_UnknownSymbol(t *testing.T) {
	_, err := ReturnOffsets(testBinary(t), "sctrace/internal/elfsym.doesNotExist")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}
