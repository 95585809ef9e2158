package usecase

import (
	"deploy-chat/internal/domain"
)

// AssemblePrompt builds the upstream message sequence: the system
// instruction, one message per history turn in order, then the new user
// message. The output depends only on the inputs.
func AssemblePrompt(instruction string, history []domain.ChatTurn, message string) []domain.PromptMessage {
	messages := make([]domain.PromptMessage, 0, len(history)+2)
	messages = append(messages, domain.PromptMessage{Role: domain.RoleSystem, Content: instruction})

	for _, turn := range history {
		messages = append(messages, turnToPromptMessage(turn))
	}

	return append(messages, domain.PromptMessage{
		Role:    domain.RoleUser,
		Content: message,
	})
}

func turnToPromptMessage(turn domain.ChatTurn) domain.PromptMessage {
	role := domain.RoleAssistant
	if turn.IsUser {
		role = domain.RoleUser
	}
	return domain.PromptMessage{Role: role, Content: turn.Text}
}
