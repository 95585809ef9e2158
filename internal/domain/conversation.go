package domain

// ChatTurn is one prior line of a conversation as held by the client.
// The server never stores turns; the caller resends the full history on
// every request.
type ChatTurn struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

// ChatRequest is a validated relay request. History is in chronological order.
type ChatRequest struct {
	Message string
	History []ChatTurn
}
