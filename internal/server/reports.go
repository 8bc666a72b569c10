package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"issueboard/internal/analysis"
	"issueboard/internal/storage/sqlite"
)

const dateParamLayout = "2006-01-02"

func (s *Server) handleTopIssues(c *gin.Context) {
	q, msg := s.parseTopIssuesQuery(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	records, err := s.tickets.FetchAllRecords(c.Request.Context())
	if err != nil {
		badGateway(c, err)
		return
	}

	report := analysis.AnalyzeTopIssues(records, q)
	log.WithFields(log.Fields{
		"records":  len(records),
		"in_scope": report.TotalTicketsInScope,
		"issues":   len(report.TopIssues),
	}).Info("top-issues computed")
	c.JSON(http.StatusOK, report)
}

// parseTopIssuesQuery maps query parameters onto an analysis query. An
// absent productLine falls back to the configured default while an empty one
// disables the filter. The end date covers its whole day.
func (s *Server) parseTopIssuesQuery(c *gin.Context) (analysis.Query, string) {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	q := analysis.Query{Location: loc}

	if v := strings.TrimSpace(c.Query("startDate")); v != "" {
		start, err := time.ParseInLocation(dateParamLayout, v, loc)
		if err != nil {
			return q, "startDate must be YYYY-MM-DD"
		}
		q.StartDate = &start
	}
	if v := strings.TrimSpace(c.Query("endDate")); v != "" {
		end, err := time.ParseInLocation(dateParamLayout, v, loc)
		if err != nil {
			return q, "endDate must be YYYY-MM-DD"
		}
		end = end.AddDate(0, 0, 1).Add(-time.Millisecond)
		q.EndDate = &end
	}

	if v, ok := c.GetQuery("productLine"); ok {
		q.ProductLine = strings.TrimSpace(v)
	} else {
		q.ProductLine = s.cfg.ProductLine()
	}

	q.MinCount = s.cfg.DefaultMinCount
	if q.MinCount < 1 {
		q.MinCount = 2
	}
	if v, ok := c.GetQuery("minCount"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return q, "minCount must be a positive integer"
		}
		q.MinCount = n
	}
	return q, ""
}

func (s *Server) handleListReports(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []sqlite.Snapshot{}, "count": 0})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	snapshots, err := sqlite.ListSnapshots(s.db, limit)
	if err != nil {
		log.WithError(err).Error("list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": snapshots, "count": len(snapshots)})
}

func (s *Server) handleGetReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || s.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}
	snapshot, err := sqlite.GetSnapshot(s.db, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}
	if err != nil {
		log.WithError(err).Error("get snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleRunDigest(c *gin.Context) {
	if s.digest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Digest is not configured"})
		return
	}
	result, err := s.digest(c.Request.Context(), time.Now())
	if err != nil {
		badGateway(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        result.SnapshotID,
		"file":      result.FilePath,
		"narrative": result.Narrative,
		"report":    result.Report,
	})
}
