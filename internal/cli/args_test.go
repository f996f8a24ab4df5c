package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCmd  string
		wantRest []string
	}{
		{name: "empty", args: nil, wantCmd: "", wantRest: nil},
		{name: "flags only", args: []string{"-a", "https://c.example.com", "-t", "30"}, wantCmd: "", wantRest: nil},
		{name: "bare command", args: []string{"sync"}, wantCmd: "sync", wantRest: nil},
		{name: "command before flags", args: []string{"sync", "-a", "https://c.example.com"}, wantCmd: "sync", wantRest: nil},
		{name: "command after flags", args: []string{"-u", "alice", "import", "m.json", "payload.bin"},
			wantCmd: "import", wantRest: []string{"m.json", "payload.bin"}},
		{name: "equals form", args: []string{"-config=cfg.json", "sync"}, wantCmd: "sync", wantRest: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rest := SplitCommand(tt.args)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}
