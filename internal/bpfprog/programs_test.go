package bpfprog

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sctrace/internal/tracing"
)

var testFDs = FDs{Config: 11, State: 12, Events: 13, Drops: 14}

func mapLoads(insns asm.Instructions) []int {
	var fds []int
	for _, ins := range insns {
		if ins.IsLoadFromMap() {
			fds = append(fds, int(int32(ins.Constant)))
		}
	}
	return fds
}

func helperCalls(insns asm.Instructions) []asm.BuiltinFunc {
	var calls []asm.BuiltinFunc
	for _, ins := range insns {
		if ins.IsBuiltinCall() {
			calls = append(calls, asm.BuiltinFunc(ins.Constant))
		}
	}
	return calls
}

func TestFilterInstructions_ChecksStateFirst(t *testing.T) {
	insns := FilterInstructions(testFDs)

	loads := mapLoads(insns)
	require.NotEmpty(t, loads)
	assert.Equal(t, testFDs.State, loads[0], "state must be read before anything else")
	assert.Equal(t, []int{testFDs.State, testFDs.Config, testFDs.Events, testFDs.Drops}, loads)
}

func TestFilterInstructions_Helpers(t *testing.T) {
	calls := helperCalls(FilterInstructions(testFDs))
	assert.Equal(t, []asm.BuiltinFunc{
		asm.FnMapLookupElem,
		asm.FnMapLookupElem,
		asm.FnGetCurrentComm,
		asm.FnRingbufOutput,
		asm.FnMapLookupElem,
	}, calls)
}

func TestFilterInstructions_BoundedComparison(t *testing.T) {
	insns := FilterInstructions(testFDs)

	var targetLoads int
	for _, ins := range insns {
		if ins.OpCode == asm.LoadMemOp(asm.Byte) && ins.Src == asm.R7 {
			targetLoads++
		}
	}
	assert.Equal(t, tracing.NameCapacity, targetLoads)

	for _, ins := range insns {
		if ins.OpCode.Class().IsJump() && ins.OpCode.JumpOp() != asm.Exit && ins.OpCode.JumpOp() != asm.Call {
			assert.NotEmpty(t, ins.Reference(), "jumps go forward to named labels only")
		}
	}
}

func TestFilterInstructions_EndsWithExit(t *testing.T) {
	insns := FilterInstructions(testFDs)
	last := insns[len(insns)-1]
	assert.Equal(t, asm.Exit, last.OpCode.JumpOp())
	assert.Equal(t, FilterProgramName, insns[0].Symbol())
}

func TestFilterInstructions_Marshal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FilterInstructions(testFDs).Marshal(&buf, binary.LittleEndian))
	assert.NotZero(t, buf.Len())
}

func TestTriggerInstructions(t *testing.T) {
	tests := []struct {
		name  string
		state tracing.State
	}{
		{EnterProgramName, tracing.Active},
		{ExitProgramName, tracing.Inactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insns := TriggerInstructions(tt.name, testFDs.State, tt.state)

			assert.Equal(t, []int{testFDs.State}, mapLoads(insns))
			assert.Equal(t, []asm.BuiltinFunc{asm.FnMapLookupElem}, helperCalls(insns))

			var stores []int64
			for _, ins := range insns {
				if ins.OpCode.Class() == asm.StClass && ins.Dst == asm.R0 {
					stores = append(stores, ins.Constant)
				}
			}
			assert.Equal(t, []int64{int64(tt.state)}, stores)

			var buf bytes.Buffer
			require.NoError(t, insns.Marshal(&buf, binary.LittleEndian))
		})
	}
}

func TestProgramSpecs(t *testing.T) {
	specs := ProgramSpecs(testFDs)
	require.Len(t, specs, 3)
	for name, spec := range specs {
		assert.Equal(t, name, spec.Name)
		assert.LessOrEqual(t, len(spec.Name), 15)
		assert.Equal(t, "GPL", spec.License)
	}
}
