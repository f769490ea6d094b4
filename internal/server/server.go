// Package server exposes the HTTP surface: a public, API-key-gated
// application serving schemas, logs, and the live event stream, and a
// separate admin application for credential management. The admin listener
// carries no key gate and is expected to be bound to a private interface.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/hub"
	"github.com/mesh-intelligence/schemalog/internal/service"
)

// Server holds the wired services behind both HTTP applications.
type Server struct {
	schemas *service.Schemas
	logs    *service.Logs
	keys    *service.APIKeys
	events  *hub.Hub
	log     *zap.Logger
}

// New bundles the services for router construction.
func New(schemas *service.Schemas, logs *service.Logs, keys *service.APIKeys, events *hub.Hub, log *zap.Logger) *Server {
	return &Server{
		schemas: schemas,
		logs:    logs,
		keys:    keys,
		events:  events,
		log:     log.Named("http"),
	}
}

// Router builds the public application. Everything except the health probe
// sits behind the API-key middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())

	r.GET("/", s.health)
	r.GET("/health", s.health)

	authed := r.Group("/", s.authenticate())
	{
		authed.POST("/schemas", s.createSchema)
		authed.GET("/schemas", s.listSchemas)
		authed.GET("/schemas/:id", s.getSchema)
		authed.PUT("/schemas/:id", s.updateSchema)
		authed.DELETE("/schemas/:id", s.deleteSchema)
		authed.GET("/schemas/by-name/:name/versions/:version", s.getSchemaByName)

		authed.POST("/logs", s.createLog)
		authed.GET("/logs/:id", s.getLog)
		authed.DELETE("/logs/:id", s.deleteLog)
		authed.GET("/logs/schemas/:schemaID", s.getLogs)
		authed.POST("/logs/schemas/:schemaID", s.queryLogs)
		authed.GET("/logs/by-name/:name/versions/:version", s.getLogsByName)
		authed.POST("/logs/by-name/:name/versions/:version", s.queryLogsByName)

		authed.GET("/ws/logs", s.streamLogs)
	}
	return r
}

// AdminRouter builds the credential-management application.
func (s *Server) AdminRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())

	r.GET("/", s.health)
	r.GET("/health", s.health)
	r.POST("/api-keys", s.createAPIKey)
	r.GET("/api-keys", s.listAPIKeys)
	r.GET("/api-keys/:id", s.getAPIKey)
	r.DELETE("/api-keys/:id", s.deleteAPIKey)
	r.POST("/api-keys/:id/rotate", s.rotateAPIKey)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
