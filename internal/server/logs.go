package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// createLogRequest is the body for log ingestion. The schema is addressed
// either by id or by name plus optional version ("latest" when omitted).
type createLogRequest struct {
	SchemaID      string          `json:"schema_id"`
	SchemaName    string          `json:"schema_name"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"log_data"`
}

// queryLogsRequest is the POST-body form of a filtered log query.
type queryLogsRequest struct {
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	DateBegin *time.Time     `json:"date_begin"`
	DateEnd   *time.Time     `json:"date_end"`
	Filters   map[string]any `json:"filters"`
}

func (r queryLogsRequest) toQuery() types.LogQuery {
	return types.LogQuery{
		Filters:   r.Filters,
		DateBegin: r.DateBegin,
		DateEnd:   r.DateEnd,
		Page:      r.Page,
		Limit:     r.Limit,
	}
}

// logPageResponse is the paginated query envelope.
type logPageResponse struct {
	Logs       []types.LogEntry  `json:"logs"`
	TimeWindow *types.TimeWindow `json:"timewindow,omitempty"`
	Pagination types.Pagination  `json:"pagination"`
}

func toPageResponse(page *types.LogPage) logPageResponse {
	logs := page.Entries
	if logs == nil {
		logs = []types.LogEntry{}
	}
	return logPageResponse{Logs: logs, TimeWindow: page.TimeWindow, Pagination: page.Pagination}
}

func (s *Server) createLog(c *gin.Context) {
	var req createLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	var entry *types.LogEntry
	var err error
	switch {
	case req.SchemaID != "":
		entry, err = s.logs.Create(req.SchemaID, req.Data)
	case req.SchemaName != "":
		entry, err = s.logs.CreateByName(req.SchemaName, req.SchemaVersion, req.Data)
	default:
		s.writeError(c, fmt.Errorf("%w: schema_id or schema_name is required", types.ErrInvalidArgument))
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) getLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: log id must be an integer", types.ErrInvalidArgument))
		return
	}
	entry, err := s.logs.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) deleteLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: log id must be an integer", types.ErrInvalidArgument))
		return
	}
	if err := s.logs.Delete(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getLogs serves GET /logs/schemas/:schemaID with the query encoded as URL
// parameters. Every parameter other than the reserved paging and date keys
// is treated as a top-level equality filter.
func (s *Server) getLogs(c *gin.Context) {
	q, err := queryFromParams(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	page, err := s.logs.Query(c.Param("schemaID"), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

// queryLogs serves POST /logs/schemas/:schemaID with the query in the body,
// for filters too rich to encode in a URL.
func (s *Server) queryLogs(c *gin.Context) {
	var req queryLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	page, err := s.logs.Query(c.Param("schemaID"), req.toQuery())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func (s *Server) getLogsByName(c *gin.Context) {
	q, err := queryFromParams(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	page, err := s.logs.QueryByName(c.Param("name"), c.Param("version"), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func (s *Server) queryLogsByName(c *gin.Context) {
	var req queryLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %s", types.ErrInvalidArgument, err))
		return
	}
	page, err := s.logs.QueryByName(c.Param("name"), c.Param("version"), req.toQuery())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

// queryFromParams assembles a LogQuery from URL parameters. page and limit
// must be integers; date_begin/date_end RFC 3339 timestamps. Remaining
// parameters become string equality filters.
func queryFromParams(c *gin.Context) (types.LogQuery, error) {
	var q types.LogQuery
	for key, vals := range c.Request.URL.Query() {
		if len(vals) == 0 {
			continue
		}
		val := vals[0]
		switch key {
		case "page":
			n, err := strconv.Atoi(val)
			if err != nil {
				return q, fmt.Errorf("%w: page must be an integer", types.ErrInvalidArgument)
			}
			q.Page = n
		case "limit":
			n, err := strconv.Atoi(val)
			if err != nil {
				return q, fmt.Errorf("%w: limit must be an integer", types.ErrInvalidArgument)
			}
			q.Limit = n
		case "date_begin", "date_end":
			ts, err := time.Parse(time.RFC3339, val)
			if err != nil {
				return q, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", types.ErrInvalidArgument, key)
			}
			if key == "date_begin" {
				q.DateBegin = &ts
			} else {
				q.DateEnd = &ts
			}
		default:
			if q.Filters == nil {
				q.Filters = map[string]any{}
			}
			q.Filters[key] = val
		}
	}
	return q, nil
}
