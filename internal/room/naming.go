package room

import "strings"

// IsAIRoomName classifies a room name as AI-intended: it starts with
// "ai ", contains " ai" as a token, or equals "ai", case-insensitively.
func IsAIRoomName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "ai ") ||
		strings.Contains(lower, " ai") ||
		lower == "ai"
}

// DefaultPrompt derives a system prompt from the topic keywords in an
// AI-intended room name.
func DefaultPrompt(roomName string) string {
	lower := strings.ToLower(roomName)

	switch {
	case strings.Contains(lower, "programming") || strings.Contains(lower, "code"):
		return "You are a programming assistant in the chat room '" + roomName +
			"'. Help users with coding questions, debug issues, and provide programming best practices. " +
			"Be concise but thorough in your explanations."
	case strings.Contains(lower, "math"):
		return "You are a mathematics tutor in the chat room '" + roomName +
			"'. Help users solve mathematical problems and explain concepts clearly. " +
			"Use step-by-step explanations when helpful."
	case strings.Contains(lower, "science"):
		return "You are a science assistant in the chat room '" + roomName +
			"'. Help users understand scientific concepts and answer their questions " +
			"across various scientific fields."
	case strings.Contains(lower, "language") || strings.Contains(lower, "translation"):
		return "You are a language assistant in the chat room '" + roomName +
			"'. Help users with language learning, translations, and linguistic questions."
	default:
		return "You are a helpful AI assistant in the chat room '" + roomName +
			"'. Engage in meaningful conversation and help users with their questions. " +
			"Adapt your responses to the context of the conversation."
	}
}
