package bpfprog

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"

	"sctrace/internal/tracing"
)

const (
	FilterProgramName = "sct_filter"
	EnterProgramName  = "sct_enter"
	ExitProgramName   = "sct_exit"

	// offset of the syscall id in the raw_syscalls/sys_enter context
	sysEnterIDOffset = 8

	// stack layout, relative to the frame pointer
	keyOffset   = -8
	commOffset  = -24
	eventOffset = -32

	labelOut   = "out"
	labelMatch = "match"
)

// FDs are the descriptors of the maps a program refers to.
type FDs struct {
	Config int
	State  int
	Events int
	Drops  int
}

// FDsOf returns the descriptors of m.
func FDsOf(m *Maps) FDs {
	return FDs{
		Config: m.Config.FD(),
		State:  m.State.FD(),
		Events: m.Events.FD(),
		Drops:  m.Drops.FD(),
	}
}

// lookupSlotZero looks up key 0 of the map behind fd, leaving the value
// pointer in R0. The key lives at keyOffset.
func lookupSlotZero(fd int) asm.Instructions {
	return asm.Instructions{
		asm.LoadMapPtr(asm.R1, fd),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, keyOffset),
		asm.FnMapLookupElem.Call(),
	}
}

// FilterInstructions assembles the per-syscall filter. It is attached to
// raw_syscalls/sys_enter and emits the syscall id of every call made by the
// target task while the session is active.
func FilterInstructions(fds FDs) asm.Instructions {
	insns := asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1).WithSymbol(FilterProgramName),
		asm.StoreImm(asm.RFP, keyOffset, 0, asm.Word),
	}

	// inactive sessions stop here, before the target slot is touched
	insns = append(insns, lookupSlotZero(fds.State)...)
	insns = append(insns,
		asm.JEq.Imm(asm.R0, 0, labelOut),
		asm.LoadMem(asm.R1, asm.R0, 0, asm.Word),
		asm.JNE.Imm(asm.R1, int32(tracing.Active), labelOut),
	)

	insns = append(insns, lookupSlotZero(fds.Config)...)
	insns = append(insns,
		asm.JEq.Imm(asm.R0, 0, labelOut),
		asm.Mov.Reg(asm.R7, asm.R0),

		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, commOffset),
		asm.Mov.Imm(asm.R2, tracing.NameCapacity),
		asm.FnGetCurrentComm.Call(),
	)

	// unrolled tracing.CommEqual
	for i := 0; i < tracing.NameCapacity; i++ {
		insns = append(insns,
			asm.LoadMem(asm.R1, asm.RFP, int16(commOffset+i), asm.Byte),
			asm.LoadMem(asm.R2, asm.R7, int16(i), asm.Byte),
			asm.JNE.Reg(asm.R1, asm.R2, labelOut),
			asm.JEq.Imm(asm.R1, 0, labelMatch),
		)
	}

	insns = append(insns,
		asm.LoadMem(asm.R1, asm.R6, sysEnterIDOffset, asm.DWord).WithSymbol(labelMatch),
		asm.StoreMem(asm.RFP, eventOffset, asm.R1, asm.Word),
		asm.LoadMapPtr(asm.R1, fds.Events),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, eventOffset),
		asm.Mov.Imm(asm.R3, tracing.EventSize),
		asm.Mov.Imm(asm.R4, 0),
		asm.FnRingbufOutput.Call(),
		asm.JEq.Imm(asm.R0, 0, labelOut),
	)

	// ring buffer full: count the drop on this CPU
	insns = append(insns, lookupSlotZero(fds.Drops)...)
	insns = append(insns,
		asm.JEq.Imm(asm.R0, 0, labelOut),
		asm.LoadMem(asm.R1, asm.R0, 0, asm.DWord),
		asm.Add.Imm(asm.R1, 1),
		asm.StoreMem(asm.R0, 0, asm.R1, asm.DWord),

		asm.Mov.Imm(asm.R0, 0).WithSymbol(labelOut),
		asm.Return(),
	)
	return insns
}

// TriggerInstructions assembles a trigger that stores st into the state map.
// name becomes the program's entry symbol.
func TriggerInstructions(name string, stateFD int, st tracing.State) asm.Instructions {
	insns := asm.Instructions{
		asm.StoreImm(asm.RFP, keyOffset, 0, asm.Word).WithSymbol(name),
	}
	insns = append(insns, lookupSlotZero(stateFD)...)
	insns = append(insns,
		asm.JEq.Imm(asm.R0, 0, labelOut),
		asm.StoreImm(asm.R0, 0, int64(st), asm.Word),
		asm.Mov.Imm(asm.R0, 0).WithSymbol(labelOut),
		asm.Return(),
	)
	return insns
}

// ProgramSpecs describes the filter and trigger programs bound to fds.
func ProgramSpecs(fds FDs) map[string]*ebpf.ProgramSpec {
	return map[string]*ebpf.ProgramSpec{
		FilterProgramName: {
			Name:         FilterProgramName,
			Type:         ebpf.TracePoint,
			Instructions: FilterInstructions(fds),
			License:      "GPL",
		},
		EnterProgramName: {
			Name:         EnterProgramName,
			Type:         ebpf.Kprobe,
			Instructions: TriggerInstructions(EnterProgramName, fds.State, tracing.Active),
			License:      "GPL",
		},
		ExitProgramName: {
			Name:         ExitProgramName,
			Type:         ebpf.Kprobe,
			Instructions: TriggerInstructions(ExitProgramName, fds.State, tracing.Inactive),
			License:      "GPL",
		},
	}
}

// Programs holds the loaded programs of a session.
type Programs struct {
	Filter *ebpf.Program
	Enter  *ebpf.Program
	Exit   *ebpf.Program
}

// LoadPrograms verifies and loads the programs against m.
func LoadPrograms(m *Maps) (*Programs, error) {
	specs := ProgramSpecs(FDsOf(m))
	p := &Programs{}
	targets := []struct {
		name string
		dst  **ebpf.Program
	}{
		{FilterProgramName, &p.Filter},
		{EnterProgramName, &p.Enter},
		{ExitProgramName, &p.Exit},
	}
	for _, t := range targets {
		prog, err := ebpf.NewProgram(specs[t.name])
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("load program %s: %w", t.name, err)
		}
		*t.dst = prog
	}
	return p, nil
}

// Close releases every loaded program.
func (p *Programs) Close() error {
	var errs []error
	for _, prog := range []*ebpf.Program{p.Filter, p.Enter, p.Exit} {
		if prog == nil {
			continue
		}
		if err := prog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
