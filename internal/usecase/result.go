package usecase

import (
	"encoding/json"
	"fmt"

	"deploy-chat/internal/integrations/openai"
)

type completionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// MapUpstreamResult turns an upstream status and body into the reply text.
// A successful response without usable content yields FallbackReply.
func MapUpstreamResult(status int, body []byte) (string, error) {
	if status < 200 || status >= 300 {
		return "", newError(ErrorUpstream, "upstream_status", MsgUpstreamFailed, openai.NewHTTPStatusError(status, body))
	}

	var payload completionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", Internal("upstream_decode", fmt.Errorf("usecase: decode completion: %w", err))
	}
	if len(payload.Choices) == 0 {
		return FallbackReply, nil
	}
	msg := payload.Choices[0].Message
	if msg == nil || msg.Content == nil || *msg.Content == "" {
		return FallbackReply, nil
	}
	return *msg.Content, nil
}
