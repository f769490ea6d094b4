package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// createdAPIKeyResponse is the only response that ever carries a plaintext
// secret. It is not recoverable afterwards.
type createdAPIKeyResponse struct {
	*types.APIKey
	Key string `json:"key"`
}

func (s *Server) createAPIKey(c *gin.Context) {
	var req types.CreateAPIKey
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	key, secret, err := s.keys.Create(req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdAPIKeyResponse{APIKey: key, Key: secret})
}

func (s *Server) listAPIKeys(c *gin.Context) {
	keys, err := s.keys.List()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

func (s *Server) getAPIKey(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	key, err := s.keys.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (s *Server) deleteAPIKey(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.keys.Delete(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) rotateAPIKey(c *gin.Context) {
	id, err := keyID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	key, secret, err := s.keys.Rotate(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, createdAPIKeyResponse{APIKey: key, Key: secret})
}

func keyID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key id must be an integer", types.ErrInvalidArgument)
	}
	return id, nil
}
