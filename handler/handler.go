// Package handler adapts API Gateway proxy events to the chat relay.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"deploy-chat/internal/logging"
	"deploy-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatHandler interface {
	HandleChat(ctx context.Context, call usecase.ChatCall) usecase.ChatResult
}

type Handler struct {
	chat  ChatHandler
	newID func() string
}

func NewHandler(chat ChatHandler) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat handler must not be nil")
	}
	return &Handler{chat: chat, newID: uuid.NewString}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = h.newID()
	}
	logger := logging.FromContext(ctx).With(
		"correlation_id", correlationID,
		"method", req.HTTPMethod,
		"path", req.Path,
	)
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "lambda handler panicked", "panic", r)
			status, body := usecase.ErrorBody(usecase.Internal("panic", nil))
			resp, err = respond(status, body, correlationID), nil
		}
	}()

	method := strings.ToUpper(req.HTTPMethod)
	body := []byte(req.Body)
	if req.IsBase64Encoded && method == http.MethodPost {
		decoded, decErr := base64.StdEncoding.DecodeString(req.Body)
		if decErr != nil {
			logger.WarnContext(ctx, "chat request rejected", "reason", "invalid_base64", "err", decErr)
			status, errBody := usecase.ErrorBody(usecase.InvalidBody(decErr))
			return respond(status, errBody, correlationID), nil
		}
		body = decoded
	}

	result := h.chat.HandleChat(ctx, usecase.ChatCall{
		Method:   method,
		Body:     body,
		ClientID: req.RequestContext.Identity.SourceIP,
	})
	return respond(result.Status, result.Body, correlationID), nil
}

func respond(status int, body []byte, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks up a header case-insensitively; API Gateway passes
// headers through with whatever casing the client used.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
