package elfsym

import (
	"debug/elf"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

func decodeReturns(code []byte, machine elf.Machine) ([]uint64, error) {
	switch machine {
	case elf.EM_X86_64:
		return returnsAMD64(code)
	case elf.EM_AARCH64:
		return returnsARM64(code)
	default:
		return nil, fmt.Errorf("unsupported architecture %s", machine)
	}
}

func returnsAMD64(code []byte) ([]uint64, error) {
	var offsets []uint64
	for i := 0; i < len(code); {
		inst, err := x86asm.Decode(code[i:], 64)
		if err != nil {
			return nil, fmt.Errorf("at %#x: %w", i, err)
		}
		if inst.Op == x86asm.RET {
			offsets = append(offsets, uint64(i))
		}
		i += inst.Len
	}
	return offsets, nil
}

// returnsARM64 skips zero padding words, which decode as UDF.
func returnsARM64(code []byte) ([]uint64, error) {
	var offsets []uint64
	for i := 0; i+4 <= len(code); i += 4 {
		inst, err := arm64asm.Decode(code[i : i+4])
		if err != nil {
			if isZero(code[i : i+4]) {
				continue
			}
			return nil, fmt.Errorf("at %#x: %w", i, err)
		}
		if inst.Op == arm64asm.RET {
			offsets = append(offsets, uint64(i))
		}
	}
	return offsets, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
