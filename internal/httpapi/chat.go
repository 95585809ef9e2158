package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"

	"deploy-chat/internal/logging"
	"deploy-chat/internal/usecase"
)

// ChatHandler is satisfied by *usecase.RelayService.
type ChatHandler interface {
	HandleChat(ctx context.Context, call usecase.ChatCall) usecase.ChatResult
}

type chatHandler struct {
	chat    ChatHandler
	maxBody int64
}

func newChatHandler(chat ChatHandler, maxBody int64) *chatHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &chatHandler{chat: chat, maxBody: maxBody}
}

// ServeHTTP reads the body only for POST; every other method goes straight
// to the relay so it answers with the shared 405 body.
func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "chat request rejected", "reason", "body_read", "err", err)
			status, errBody := usecase.ErrorBody(usecase.InvalidBody(err))
			writeJSON(w, status, errBody)
			return
		}
	}

	res := h.chat.HandleChat(ctx, usecase.ChatCall{
		Method:   r.Method,
		Body:     body,
		ClientID: clientIP(r.RemoteAddr),
	})
	writeJSON(w, res.Status, res.Body)
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
