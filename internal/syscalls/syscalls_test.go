package syscalls

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unknownID = 99999

func requireAMD64(t *testing.T) {
	t.Helper()
	if runtime.GOARCH != "amd64" {
		t.Skip("syscall numbers below are for amd64")
	}
}

func TestName(t *testing.T) {
	requireAMD64(t)

	tests := []struct {
		id   uint32
		want string
	}{
		{0, "read"},
		{1, "write"},
		{2, "open"},
		{3, "close"},
		{unknownID, "syscall_99999"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.id))
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup(unknownID)
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	requireAMD64(t)

	tests := []struct {
		name string
		ids  []uint32
		want string
	}{
		{
			name: "known syscalls",
			ids:  []uint32{0, 1, 2, 3},
			want: "read\nwrite\nopen\nclose\n",
		},
		{
			name: "unknown syscall keeps its number",
			ids:  []uint32{0, unknownID},
			want: "read\nsyscall_99999\n",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Print(&buf, tt.ids))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSummarize(t *testing.T) {
	requireAMD64(t)

	got := Summarize([]uint32{1, 0, 1, 1, unknownID})
	assert.Equal(t, map[string]int{"write": 3, "read": 1, "syscall_99999": 1}, got)
	assert.Equal(t, []string{"read", "syscall_99999", "write"}, Unique([]uint32{1, 0, 1, 1, unknownID}))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("read"))
	assert.True(t, IsValid("write"))
	assert.False(t, IsValid("not_a_syscall"))
}
