package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/browserbox/browserbox/internal/results"
	"github.com/browserbox/browserbox/internal/shared/id"
)

// Root handles the identity check.
func (s *Server) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "browserbox-orchestrator",
		"version": "1.0.0",
	})
}

// Health runs the tiered aggregate health check. 200 on pass, 503 on fail;
// the plain-text report rides along for humans.
func (s *Server) Health(c *gin.Context) {
	verdict := s.aggregator.Check(c.Request.Context())
	status := http.StatusOK
	if !verdict.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ok":       verdict.OK,
		"services": verdict.Statuses,
		"report":   verdict.Report,
	})
}

// Status exposes the supervisor's process table.
func (s *Server) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"processes": s.sup.Status(),
	})
}

// TaskResult returns the structured result and artifact URLs for a task.
func (s *Server) TaskResult(c *gin.Context) {
	taskID := c.Param("id")
	if !id.IsValid(taskID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid task id"})
		return
	}

	result, err := s.store.ReadResult(taskID)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   fmt.Sprintf("No results found for session ID: %s", taskID),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	base := fmt.Sprintf("%s://%s", scheme(c), c.Request.Host)
	fileURL := func(name string) string {
		return fmt.Sprintf("%s/files/agent_history/%s/%s", base, taskID, name)
	}

	resources := gin.H{
		"history_json": gin.H{
			"local_path": s.store.ResultPath(taskID),
			"url":        fileURL(taskID + ".json"),
		},
	}
	if s.store.HasGIF(taskID) {
		resources["recording_gif"] = gin.H{
			"local_path": s.store.GIFPath(taskID),
			"url":        fileURL(taskID + ".gif"),
		}
	}
	if shots, err := s.store.Screenshots(taskID); err == nil && len(shots) > 0 {
		list := make([]gin.H, 0, len(shots))
		for _, shot := range shots {
			list = append(list, gin.H{
				"step":       shot.Step,
				"local_path": shot.Path,
				"url":        fileURL(filepath.Base(shot.Path)),
			})
		}
		resources["screenshots"] = list
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": taskID,
		"result": gin.H{
			"text":             result.Text,
			"success":          result.Success,
			"duration_seconds": result.DurationSeconds,
			"steps_completed":  len(result.Steps),
			"errors":           result.Errors,
		},
		"steps":     result.Steps,
		"resources": resources,
	})
}

func scheme(c *gin.Context) string {
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
