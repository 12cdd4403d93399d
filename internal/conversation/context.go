package conversation

import "github.com/Napakamol/ThailandChatbot/internal/ollama"

// Message is a model-facing message. Timestamps are not part of it.
type Message = ollama.Message

// BuildContext converts history into model messages.
//
// The returned slice contains:
//  1. systemPrompt (if not empty) as the first message
//  2. every turn in order, with RoleSystem turns sent as assistant messages
//
// The system prompt is not stored in the history. It is prepended fresh on
// every request so it cannot be pushed out or edited by the conversation.
func BuildContext(systemPrompt string, history []Turn) []Message {
	capacity := len(history)
	if systemPrompt != "" {
		capacity++
	}

	messages := make([]Message, 0, capacity)
	if systemPrompt != "" {
		messages = append(messages, Message{
			Role:    ollama.RoleSystem,
			Content: systemPrompt,
		})
	}

	for _, turn := range history {
		role := ollama.RoleUser
		if turn.Role == RoleSystem {
			role = ollama.RoleAssistant
		}
		messages = append(messages, Message{
			Role:    role,
			Content: turn.Text,
		})
	}

	return messages
}
