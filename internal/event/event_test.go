package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Known(t *testing.T) {
	t.Parallel()

	assert.True(t, PreToolUse.Known())
	assert.True(t, SessionEnd.Known())
	assert.False(t, Unknown.Known())
	assert.False(t, Type("CustomEvent").Known())
}

func TestEvent_WithFallback(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ev        Event
		tool      string
		eventType string
		wantType  Type
		wantTool  string
	}{
		"fills unknown event": {
			ev:        New(Unknown, ""),
			tool:      "Bash",
			eventType: "PostToolUse",
			wantType:  PostToolUse,
			wantTool:  "Bash",
		},
		"decoded fields win": {
			ev:        New(Stop, "Edit"),
			tool:      "Bash",
			eventType: "PostToolUse",
			wantType:  Stop,
			wantTool:  "Edit",
		},
		"empty fallbacks keep unknown": {
			ev:       New(Unknown, ""),
			wantType: Unknown,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := tt.ev.WithFallback(tt.tool, tt.eventType)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantTool, got.ToolName)
		})
	}
}

func TestNew_DefaultsToUnknown(t *testing.T) {
	t.Parallel()

	ev := New("", "Bash")
	assert.Equal(t, Unknown, ev.Type)
	assert.True(t, ev.HasTool())
	assert.Empty(t, ev.Payload())
}
