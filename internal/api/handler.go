package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
	"hirepal/internal/wire"
)

// Service is the pipeline surface exposed over HTTP.
type Service interface {
	NewSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, in usecase.AskInput) (domain.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
}

type Handler struct {
	svc Service
	log *zap.Logger
}

func NewHandler(svc Service, log *zap.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("api: service must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}, nil
}

// Health handles GET /health.
func (h *Handler) Health(_ *restful.Request, resp *restful.Response) {
	_ = resp.WriteHeaderAndEntity(http.StatusOK, wire.HealthResponse{Status: "ok"})
}

// NewSession handles GET /new_session.
func (h *Handler) NewSession(req *restful.Request, resp *restful.Response) {
	id, err := h.svc.NewSession(req.Request.Context())
	if err != nil {
		h.writeError(req, resp, err)
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, wire.NewSessionResponse{SessionID: id, Message: wire.NewSessionMessage})
}

// Ask handles POST /ask. Pipeline failures are answered with 200 and an
// error-typed body.
func (h *Handler) Ask(req *restful.Request, resp *restful.Response) {
	var in wire.AskRequest
	if err := req.ReadEntity(&in); err != nil {
		h.writeError(req, resp, wire.InvalidBody(err))
		return
	}
	answer, err := h.svc.Ask(req.Request.Context(), usecase.AskInput{SessionID: in.SessionID, Question: in.Question})
	if err != nil {
		h.writeError(req, resp, err)
		return
	}
	out, err := wire.Render(answer)
	if err != nil {
		requestLogger(req, h.log).Error("answer failed wire validation", zap.String("kind", string(answer.Kind)), zap.Error(err))
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, out)
}

// EndSession handles DELETE /session/{session_id}.
func (h *Handler) EndSession(req *restful.Request, resp *restful.Response) {
	if err := h.svc.EndSession(req.Request.Context(), req.PathParameter("session_id")); err != nil {
		h.writeError(req, resp, err)
		return
	}
	resp.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(req *restful.Request, resp *restful.Response, err error) {
	status, body := wire.StatusFor(err)
	log := requestLogger(req, h.log)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.String("code", body.Error), zap.Error(err))
	}
	_ = resp.WriteHeaderAndEntity(status, body)
}
