package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"deploy-chat/internal/domain"
)

// HistoryMode selects how history entries are validated.
type HistoryMode string

const (
	// HistoryStrict rejects the request when any entry is malformed.
	HistoryStrict HistoryMode = "strict"
	// HistoryPermissive maps malformed entries leniently, the way the
	// browser-facing functions this service replaced did.
	HistoryPermissive HistoryMode = "permissive"
)

// ParseHistoryMode accepts "strict", "permissive", or empty (strict).
func ParseHistoryMode(s string) (HistoryMode, error) {
	switch HistoryMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HistoryStrict:
		return HistoryStrict, nil
	case HistoryPermissive:
		return HistoryPermissive, nil
	default:
		return "", fmt.Errorf("usecase: unknown history mode %q", s)
	}
}

type wireRequest struct {
	Message json.RawMessage `json:"message"`
	History json.RawMessage `json:"history"`
}

// DecodeChatRequest validates a raw request body. The message is returned
// verbatim; only its emptiness is judged after trimming.
func DecodeChatRequest(body []byte, mode HistoryMode) (domain.ChatRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.ChatRequest{}, InvalidBody(nil)
	}
	var wire wireRequest
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return domain.ChatRequest{}, InvalidBody(err)
	}

	message, ok := decodeString(wire.Message)
	if !ok || strings.TrimSpace(message) == "" {
		return domain.ChatRequest{}, newError(ErrorInvalidRequest, "message_required", MsgMessageRequired, nil)
	}

	history, err := decodeHistory(wire.History, mode)
	if err != nil {
		return domain.ChatRequest{}, err
	}
	return domain.ChatRequest{Message: message, History: history}, nil
}

func decodeHistory(raw json.RawMessage, mode HistoryMode) ([]domain.ChatTurn, error) {
	if isNull(raw) {
		return []domain.ChatTurn{}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, newError(ErrorInvalidRequest, "history_not_array", MsgInvalidHistory, err)
	}

	turns := make([]domain.ChatTurn, 0, len(entries))
	for i, entry := range entries {
		var turn domain.ChatTurn
		var err error
		if mode == HistoryPermissive {
			turn = lenientTurn(entry)
		} else {
			turn, err = strictTurn(entry)
		}
		if err != nil {
			return nil, newError(ErrorInvalidRequest, "history_entry_"+strconv.Itoa(i), MsgInvalidHistory, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func strictTurn(raw json.RawMessage) (domain.ChatTurn, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.ChatTurn{}, fmt.Errorf("entry is not an object")
	}
	text, ok := decodeString(fields["text"])
	if !ok || text == "" {
		return domain.ChatTurn{}, fmt.Errorf("text must be a non-empty string")
	}
	isUser := false
	if v := fields["isUser"]; !isNull(v) {
		if err := json.Unmarshal(v, &isUser); err != nil {
			return domain.ChatTurn{}, fmt.Errorf("isUser must be a boolean")
		}
	}
	return domain.ChatTurn{Text: text, IsUser: isUser}, nil
}

func lenientTurn(raw json.RawMessage) domain.ChatTurn {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ChatTurn{}
	}
	text, _ := decodeString(fields["text"])
	return domain.ChatTurn{Text: text, IsUser: truthy(fields["isUser"])}
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// truthy reports JSON truthiness: false, null, 0, and "" are falsy;
// objects and arrays are truthy even when empty.
func truthy(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return false
	}
	switch t[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		var s string
		return json.Unmarshal(t, &s) == nil && s != ""
	default:
		n, err := strconv.ParseFloat(string(t), 64)
		return err == nil && n != 0
	}
}
