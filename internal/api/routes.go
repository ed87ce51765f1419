package api

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"

	"hirepal/internal/wire"
)

const (
	tagSession = "session"
	tagAsk     = "ask"
	tagHealth  = "health"

	// DocsPath serves the generated OpenAPI document.
	DocsPath = "/apidocs.json"
)

func RegisterRoutes(container *restful.Container, h *Handler) {
	ws := new(restful.WebService)
	ws.
		Path("/").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.Route(ws.GET("/health").
		To(h.Health).
		Doc("Health check").
		Metadata(restfulspec.KeyOpenAPITags, []string{tagHealth}).
		Writes(wire.HealthResponse{}).
		Returns(http.StatusOK, "OK", wire.HealthResponse{}))

	ws.Route(ws.GET("/new_session").
		To(h.NewSession).
		Doc("Create a conversation session").
		Metadata(restfulspec.KeyOpenAPITags, []string{tagSession}).
		Writes(wire.NewSessionResponse{}).
		Returns(http.StatusOK, "OK", wire.NewSessionResponse{}).
		Returns(http.StatusInternalServerError, "Internal Server Error", wire.ErrorBody{}))

	ws.Route(ws.POST("/ask").
		To(h.Ask).
		Doc("Ask a recruiting question within a session").
		Metadata(restfulspec.KeyOpenAPITags, []string{tagAsk}).
		Reads(wire.AskRequest{}).
		Writes(wire.Response{}).
		Returns(http.StatusOK, "OK", wire.Response{}).
		Returns(http.StatusBadRequest, "Bad Request", wire.ErrorBody{}).
		Returns(http.StatusNotFound, "Session Not Found", wire.ErrorBody{}).
		Returns(http.StatusTooManyRequests, "Too Many Requests", wire.ErrorBody{}))

	ws.Route(ws.DELETE("/session/{session_id}").
		To(h.EndSession).
		Doc("End a session and drop its history").
		Metadata(restfulspec.KeyOpenAPITags, []string{tagSession}).
		Param(ws.PathParameter("session_id", "Session identifier returned by /new_session").DataType("string")).
		Returns(http.StatusNoContent, "No Content", nil).
		Returns(http.StatusNotFound, "Session Not Found", wire.ErrorBody{}))

	container.Add(ws)
}

func registerDocs(container *restful.Container) {
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       DocsPath,
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}))
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "HirePal API",
			Description: "Conversational search over candidate CVs",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: tagHealth, Description: "Health checks"}},
		{TagProps: spec.TagProps{Name: tagSession, Description: "Session lifecycle"}},
		{TagProps: spec.TagProps{Name: tagAsk, Description: "Recruiter questions"}},
	}
}
