package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/strandlabs/strand/internal/core"
	"github.com/strandlabs/strand/internal/domain"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Mode: string(s.mode)})
}

func (s *Server) validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report := s.manager.Validate(req.Definition)
	c.JSON(http.StatusOK, report)
}

func (s *Server) plan(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	plan, err := s.manager.Plan(req.Definition)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// run executes synchronously and returns the full result. Long workflows
// belong on /submit; this endpoint holds the connection open.
func (s *Server) run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.manager.Execute(c.Request.Context(), req.Definition, core.RunOptions{
		Input:     req.Input,
		Variables: req.Variables,
		Secrets:   req.Secrets,
		Mode:      domain.ExecutionMode(req.Mode),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) submit(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	runID, err := s.manager.Submit(c.Request.Context(), req.Definition, core.RunOptions{
		Input:     req.Input,
		Variables: req.Variables,
		Secrets:   req.Secrets,
		Mode:      domain.ExecutionMode(req.Mode),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, submitResponse{RunID: runID, Status: string(domain.RunStatusQueued)})
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	runs, err := s.manager.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	record, err := s.manager.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listResults(c *gin.Context) {
	results, err := s.manager.ListNodeResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) getDefinition(c *gin.Context) {
	def, err := s.manager.GetDefinition(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) cancelRun(c *gin.Context) {
	if err := s.manager.Cancel(c.Param("id")); err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) renderLookupError(c *gin.Context, err error) {
	if domain.IsNotFound(err) {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
