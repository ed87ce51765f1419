// Package api serves the recruiter pipeline over HTTP.
package api

import (
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NewServer builds the HTTP handler: routes, OpenAPI document, filters and CORS.
func NewServer(svc Service, corsOrigins []string, log *zap.Logger) (http.Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	h, err := NewHandler(svc, log)
	if err != nil {
		return nil, err
	}

	container := restful.NewContainer()
	container.Filter(Correlation)
	container.Filter(AccessLog(log))
	container.Filter(RecoverPanic(log))
	RegisterRoutes(container, h)
	registerDocs(container)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{CorrelationHeader},
	})
	return corsHandler.Handler(container), nil
}
