package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
	"hirepal/internal/wire"
)

const (
	correlationHeader = "X-Correlation-Id"
	sessionPathPrefix = "/session/"
)

// Service is the part of usecase.AskService the Lambda adapter drives.
type Service interface {
	NewSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, in usecase.AskInput) (domain.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Handler adapts API Gateway proxy events to the recruiter pipeline.
type Handler struct {
	svc Service
	log *zap.Logger
}

func NewHandler(svc Service, log *zap.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.Named("lambda")}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	log := h.log.With(zap.String("correlation_id", corrID), zap.String("method", req.HTTPMethod), zap.String("path", req.Path))

	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && path == "/health":
		return jsonResponse(http.StatusOK, corrID, wire.HealthResponse{Status: "ok"}), nil

	case req.HTTPMethod == http.MethodGet && path == "/new_session":
		id, err := h.svc.NewSession(ctx)
		if err != nil {
			return h.errorResponse(log, corrID, err), nil
		}
		return jsonResponse(http.StatusOK, corrID, wire.NewSessionResponse{SessionID: id, Message: wire.NewSessionMessage}), nil

	case req.HTTPMethod == http.MethodPost && path == "/ask":
		var in wire.AskRequest
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
			return h.errorResponse(log, corrID, wire.InvalidBody(err)), nil
		}
		answer, err := h.svc.Ask(ctx, usecase.AskInput{SessionID: in.SessionID, Question: in.Question})
		if err != nil {
			return h.errorResponse(log, corrID, err), nil
		}
		out, err := wire.Render(answer)
		if err != nil {
			log.Error("answer failed wire validation", zap.String("kind", string(answer.Kind)), zap.Error(err))
		}
		return jsonResponse(http.StatusOK, corrID, out), nil

	case req.HTTPMethod == http.MethodDelete && strings.HasPrefix(path, sessionPathPrefix):
		id := req.PathParameters["session_id"]
		if id == "" {
			id = strings.TrimPrefix(path, sessionPathPrefix)
		}
		if err := h.svc.EndSession(ctx, id); err != nil {
			return h.errorResponse(log, corrID, err), nil
		}
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusNoContent,
			Headers:    map[string]string{correlationHeader: corrID},
		}, nil
	}

	return jsonResponse(http.StatusNotFound, corrID, wire.ErrorBody{Error: "NOT_FOUND", Message: "Route not found."}), nil
}

func (h *Handler) errorResponse(log *zap.Logger, corrID string, err error) events.APIGatewayProxyResponse {
	status, body := wire.StatusFor(err)
	fields := []zap.Field{zap.Int("status", status), zap.String("code", body.Error), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Info("request rejected", fields...)
	}
	return jsonResponse(status, corrID, body)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","message":"Internal server error."}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}
