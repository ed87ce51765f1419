package api

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hirepal/internal/wire"
)

const (
	CorrelationHeader = "X-Correlation-Id"
	attrCorrelationID = "correlation_id"
)

// Correlation propagates or assigns a request correlation id.
func Correlation(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	id := strings.TrimSpace(req.HeaderParameter(CorrelationHeader))
	if id == "" {
		id = uuid.NewString()
	}
	req.SetAttribute(attrCorrelationID, id)
	resp.AddHeader(CorrelationHeader, id)
	chain.ProcessFilter(req, resp)
}

// AccessLog logs one line per request after it completes.
func AccessLog(log *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		start := time.Now()
		chain.ProcessFilter(req, resp)
		requestLogger(req, log).Info("http request",
			zap.String("method", req.Request.Method),
			zap.String("path", req.Request.URL.Path),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RecoverPanic turns a handler panic into a 500.
func RecoverPanic(log *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		defer func() {
			if r := recover(); r != nil {
				requestLogger(req, log).Error("handler panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				_ = resp.WriteHeaderAndEntity(http.StatusInternalServerError, wire.ErrorBody{Error: "INTERNAL_ERROR", Message: "Internal server error."})
			}
		}()
		chain.ProcessFilter(req, resp)
	}
}

func requestLogger(req *restful.Request, log *zap.Logger) *zap.Logger {
	if id, ok := req.Attribute(attrCorrelationID).(string); ok {
		return log.With(zap.String(attrCorrelationID, id))
	}
	return log
}
