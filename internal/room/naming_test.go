package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAIRoomName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ai", true},
		{"AI", true},
		{"Ai", true},
		{"ai math", true},
		{"AI helpers", true},
		{"math ai", true},
		{"room with ai inside", true},
		{"general", false},
		{"aircraft", false},
		{"maintenance", false},
		{"air traffic", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAIRoomName(tt.name), "name %q", tt.name)
		})
	}
}

func TestDefaultPromptMatchesTopicKeywords(t *testing.T) {
	tests := []struct {
		roomName string
		want     string
	}{
		{"ai programming", "programming assistant"},
		{"ai code review", "programming assistant"},
		{"ai math", "mathematics tutor"},
		{"ai science", "science assistant"},
		{"ai language", "language assistant"},
		{"ai translation help", "language assistant"},
		{"ai anything else", "helpful AI assistant"},
	}

	for _, tt := range tests {
		t.Run(tt.roomName, func(t *testing.T) {
			prompt := DefaultPrompt(tt.roomName)
			assert.Contains(t, prompt, tt.want)
			assert.Contains(t, prompt, tt.roomName)
		})
	}
}
