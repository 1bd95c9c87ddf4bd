package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cabo/internal/models"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, err := s.deps.Admin.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *HTTPServer) me(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		writeError(c, http.StatusUnauthorized, "missing claims")
		return
	}
	user, err := s.deps.Admin.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) dashboard(c *gin.Context) {
	d, err := s.deps.Admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func leadFilter(c *gin.Context) (models.LeadFilter, bool) {
	f := models.LeadFilter{
		Status:   c.Query("status"),
		FormType: c.Query("form"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return f, false
		}
		f.Since = since
	}
	return f, true
}

func (s *HTTPServer) listLeads(c *gin.Context) {
	f, ok := leadFilter(c)
	if !ok {
		return
	}
	if f.Limit <= 0 || f.Limit > models.MaxPageSize {
		f.Limit = models.DefaultPageSize
	}
	leads, total, err := s.deps.Leads.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": leads, "total": total, "limit": f.Limit, "offset": f.Offset})
}

func (s *HTTPServer) exportLeads(c *gin.Context) {
	f, ok := leadFilter(c)
	if !ok {
		return
	}
	data, err := s.deps.Leads.Export(c.Request.Context(), f)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	name := fmt.Sprintf("leads_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *HTTPServer) resyncLeads(c *gin.Context) {
	if err := s.deps.Leads.ResyncSheets(c.Request.Context()); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *HTTPServer) updateLeadStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	if err := s.deps.Leads.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, s.log, err)
		return
	}
	lead, err := s.deps.Leads.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (s *HTTPServer) listGuideSubmissions(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.DefaultPageSize
	}
	offset := queryInt(c, "offset")
	subs, total, err := s.deps.Guides.List(c.Request.Context(), c.Query("guide"), limit, offset)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": subs, "total": total, "limit": limit, "offset": offset})
}

func (s *HTTPServer) listBookings(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.DefaultPageSize
	}
	offset := queryInt(c, "offset")
	bookings, total, err := s.deps.Bookings.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": bookings, "total": total, "limit": limit, "offset": offset})
}

func (s *HTTPServer) transitionBooking(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	by := "admin"
	if claims := currentClaims(c); claims != nil {
		by = claims.Email
	}
	b, err := s.deps.Bookings.Transition(c.Request.Context(), id, req.Status, by)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *HTTPServer) failedTasks(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	tasks, err := s.deps.Admin.FailedTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tasks})
}

func (s *HTTPServer) retryTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.deps.Admin.RetryTask(c.Request.Context(), id); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requeued"})
}
