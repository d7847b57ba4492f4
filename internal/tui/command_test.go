package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
	}{
		{"open 5511999990000", "open", []string{"5511999990000"}},
		{"  OPEN  5511 c-1 ", "open", []string{"5511", "c-1"}},
		{"refresh", "refresh", []string{}},
		{"", "", nil},
	}
	for _, tt := range tests {
		cmd := ParseCommand(tt.in)
		assert.Equal(t, tt.name, cmd.Name, tt.in)
		if len(tt.args) == 0 {
			assert.Empty(t, cmd.Args, tt.in)
		} else {
			assert.Equal(t, tt.args, cmd.Args, tt.in)
		}
	}
	assert.Equal(t, "c-1", ParseCommand("open 5511 c-1").Arg(1))
	assert.Equal(t, "", ParseCommand("open").Arg(0))
}
