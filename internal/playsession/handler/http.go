package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/platform/httpx"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
	"github.com/atqamz/kogase-engine/internal/playsession/service"
)

// EventCounter reports how many events were logged in a session.
type EventCounter interface {
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

// RegisterValidations installs the session_status binding tag.
func RegisterValidations() error {
	return httpx.RegisterValidation("session_status", httpx.OneOf(domain.ParseStatus))
}

// Handler serves /sessions.
type Handler struct {
	svc    *service.Service
	events EventCounter
	pages  page.Config
}

// NewHandler returns a session handler. events may be nil, in which case single-session
// responses report an event count of zero.
func NewHandler(svc *service.Service, events EventCounter, pages page.Config) *Handler {
	return &Handler{svc: svc, events: events, pages: pages}
}

// Register mounts the session routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/sessions")
	g.POST("/start", h.start)
	g.POST("/end/:id", h.end)
	g.PUT("/status/:id", h.updateStatus)
	g.GET("/:id", h.get)
	g.GET("/project/:projectId", h.listByProject)
	g.GET("/user/:userId", h.listByUser)
	g.GET("/device/:deviceId", h.listByDevice)
	g.GET("/active/:projectId", h.listActive)
	g.GET("/timerange/:projectId", h.listByTimeRange)
	g.GET("/count/project/:projectId", h.countByProject)
	g.GET("/average-duration/:projectId", h.averageDuration)
}

type startRequest struct {
	ProjectID         string        `json:"projectId" binding:"required,uuid"`
	UserID            *string       `json:"userId" binding:"omitempty,uuid"`
	DeviceID          *string       `json:"deviceId" binding:"omitempty,uuid"`
	GameVersion       string        `json:"gameVersion" binding:"max=64"`
	Platform          string        `json:"platform" binding:"max=64"`
	Country           string        `json:"country" binding:"max=64"`
	DeviceModel       string        `json:"deviceModel" binding:"max=128"`
	OSVersion         string        `json:"osVersion" binding:"max=64"`
	SessionProperties jsonblob.Blob `json:"sessionProperties"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,session_status"`
}

type sessionResponse struct {
	ID                string        `json:"id"`
	ProjectID         string        `json:"projectId"`
	UserID            *string       `json:"userId"`
	DeviceID          *string       `json:"deviceId"`
	GameVersion       string        `json:"gameVersion"`
	StartTime         time.Time     `json:"startTime"`
	EndTime           *time.Time    `json:"endTime"`
	DurationSeconds   *int          `json:"durationSeconds"`
	Platform          string        `json:"platform"`
	Country           string        `json:"country"`
	DeviceModel       string        `json:"deviceModel"`
	OSVersion         string        `json:"osVersion"`
	SessionProperties jsonblob.Blob `json:"sessionProperties"`
	Status            domain.Status `json:"status"`
	EventCount        *int64        `json:"eventCount,omitempty"`
}

func toResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:                s.ID,
		ProjectID:         s.ProjectID,
		UserID:            s.UserID,
		DeviceID:          s.DeviceID,
		GameVersion:       s.GameVersion,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		DurationSeconds:   s.DurationSeconds,
		Platform:          s.Platform,
		Country:           s.Country,
		DeviceModel:       s.DeviceModel,
		OSVersion:         s.OSVersion,
		SessionProperties: s.Properties,
		Status:            s.Status,
	}
}

func toResponses(ss []*domain.Session) []sessionResponse {
	out := make([]sessionResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, toResponse(s))
	}
	return out
}

func (h *Handler) start(c *gin.Context) {
	var req startRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	s, err := h.svc.Start(c.Request.Context(), service.StartInput{
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		DeviceID:    req.DeviceID,
		GameVersion: req.GameVersion,
		Platform:    req.Platform,
		Country:     req.Country,
		DeviceModel: req.DeviceModel,
		OSVersion:   req.OSVersion,
		Properties:  req.SessionProperties,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(s))
}

func (h *Handler) end(c *gin.Context) {
	s, err := h.svc.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(s))
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	status, _ := domain.ParseStatus(req.Status)
	s, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(s))
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	resp := toResponse(s)
	var n int64
	if h.events != nil {
		if n, err = h.events.CountBySession(ctx, s.ID); err != nil {
			httpx.Error(c, err)
			return
		}
	}
	resp.EventCount = &n
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listByProject(c *gin.Context) {
	ss, err := h.svc.ListByProject(c.Request.Context(), c.Param("projectId"), httpx.Page(c, h.pages))
	h.writeList(c, ss, err)
}

func (h *Handler) listByUser(c *gin.Context) {
	ss, err := h.svc.ListByUser(c.Request.Context(), c.Param("userId"), httpx.Page(c, h.pages))
	h.writeList(c, ss, err)
}

func (h *Handler) listByDevice(c *gin.Context) {
	ss, err := h.svc.ListByDevice(c.Request.Context(), c.Param("deviceId"), httpx.Page(c, h.pages))
	h.writeList(c, ss, err)
}

func (h *Handler) listActive(c *gin.Context) {
	ss, err := h.svc.ListActive(c.Request.Context(), c.Param("projectId"))
	h.writeList(c, ss, err)
}

func (h *Handler) listByTimeRange(c *gin.Context) {
	start, end, err := httpx.TimeRange(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	ss, err := h.svc.ListByTimeRange(c.Request.Context(), c.Param("projectId"), start, end, httpx.Page(c, h.pages))
	h.writeList(c, ss, err)
}

func (h *Handler) countByProject(c *gin.Context) {
	n, err := h.svc.CountByProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) averageDuration(c *gin.Context) {
	avg, err := h.svc.AverageDuration(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"averageDurationSeconds": avg})
}

func (h *Handler) writeList(c *gin.Context, ss []*domain.Session, err error) {
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(ss))
}
