package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// schemaRequest is the body for schema registration and replacement.
type schemaRequest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"schema_definition"`
}

func (s *Server) createSchema(c *gin.Context) {
	var req schemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	schema, err := s.schemas.Register(req.Name, req.Version, req.Description, req.Definition)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schema)
}

func (s *Server) getSchema(c *gin.Context) {
	schema, err := s.schemas.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) getSchemaByName(c *gin.Context) {
	schema, err := s.schemas.Resolve(c.Param("name"), c.Param("version"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) listSchemas(c *gin.Context) {
	filter := types.SchemaFilter{
		Name:    c.Query("name"),
		Version: c.Query("version"),
	}
	schemas, err := s.schemas.List(filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schemas": schemas})
}

func (s *Server) updateSchema(c *gin.Context) {
	var req schemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	schema, err := s.schemas.Update(c.Param("id"), req.Name, req.Version, req.Description, req.Definition)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) deleteSchema(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(c, fmt.Errorf("%w: force must be a boolean", types.ErrInvalidArgument))
			return
		}
		force = parsed
	}

	removed, err := s.schemas.Delete(c.Param("id"), force)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_logs": removed})
}
