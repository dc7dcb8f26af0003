package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type postCountRequest struct {
	Platform  string `json:"platform"`
	MonthYear string `json:"month_year"`
	Count     int    `json:"count"`
}

func (s *Server) IncrementPostCount(c *gin.Context) {
	var req postCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.postledgerSvc.Increment(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Platform, req.MonthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DecrementPostCount(c *gin.Context) {
	var req postCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.postledgerSvc.Decrement(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Platform, req.MonthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetPostCount(c *gin.Context) {
	var req postCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.postledgerSvc.SetCount(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Platform, req.MonthYear, req.Count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPostCounts(c *gin.Context) {
	resp, err := s.postledgerSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Query("month_year")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PostAmountDue(c *gin.Context) {
	resp, err := s.postledgerSvc.AmountDue(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Query("month_year")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettlePostMonth(c *gin.Context) {
	var req struct {
		MonthYear string `json:"month_year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.postledgerSvc.Settle(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.MonthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
