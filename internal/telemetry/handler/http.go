package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/platform/httpx"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
	"github.com/atqamz/kogase-engine/internal/telemetry/service"
)

// Handler serves /events.
type Handler struct {
	svc   *service.Service
	pages page.Config
}

func NewHandler(svc *service.Service, pages page.Config) *Handler {
	return &Handler{svc: svc, pages: pages}
}

// Register mounts the event routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/events")
	g.POST("/log", h.log)
	g.POST("/batch", h.batch)
	g.GET("/:id", h.get)
	g.GET("/project/:projectId", h.listByProject)
	g.GET("/session/:sessionId", h.listBySession)
	g.GET("/user/:userId", h.listByUser)
	g.GET("/device/:deviceId", h.listByDevice)
	g.GET("/name/:projectId/:eventName", h.listByName)
	g.GET("/category/:projectId/:category", h.listByCategory)
	g.GET("/timerange/:projectId", h.listByTimeRange)
	g.GET("/count/project/:projectId", h.countByProject)
	g.GET("/count/session/:sessionId", h.countBySession)
}

type logRequest struct {
	ProjectID  string        `json:"projectId" binding:"required,uuid"`
	UserID     *string       `json:"userId" binding:"omitempty,uuid"`
	DeviceID   *string       `json:"deviceId" binding:"omitempty,uuid"`
	SessionID  *string       `json:"sessionId" binding:"omitempty,uuid"`
	EventName  string        `json:"eventName" binding:"required,max=128"`
	Category   string        `json:"category" binding:"max=64"`
	Payload    jsonblob.Blob `json:"payload"`
	Parameters jsonblob.Blob `json:"parameters"`
	ClientInfo jsonblob.Blob `json:"clientInfo"`
}

// batchMember is a logRequest whose projectId may be omitted. A projectId other than the
// batch's is rejected by the service as a mismatch, whatever its format.
type batchMember struct {
	ProjectID  string        `json:"projectId"`
	UserID     *string       `json:"userId" binding:"omitempty,uuid"`
	DeviceID   *string       `json:"deviceId" binding:"omitempty,uuid"`
	SessionID  *string       `json:"sessionId" binding:"omitempty,uuid"`
	EventName  string        `json:"eventName" binding:"required,max=128"`
	Category   string        `json:"category" binding:"max=64"`
	Payload    jsonblob.Blob `json:"payload"`
	Parameters jsonblob.Blob `json:"parameters"`
	ClientInfo jsonblob.Blob `json:"clientInfo"`
}

type batchRequest struct {
	ProjectID string        `json:"projectId" binding:"required,uuid"`
	Events    []batchMember `json:"events" binding:"required,dive"`
}

type eventResponse struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	UserID     *string       `json:"userId"`
	DeviceID   *string       `json:"deviceId"`
	SessionID  *string       `json:"sessionId"`
	EventName  string        `json:"eventName"`
	Category   string        `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	Payload    jsonblob.Blob `json:"payload"`
	Parameters jsonblob.Blob `json:"parameters"`
	ClientInfo jsonblob.Blob `json:"clientInfo"`
}

func toResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		ProjectID:  e.ProjectID,
		UserID:     e.UserID,
		DeviceID:   e.DeviceID,
		SessionID:  e.SessionID,
		EventName:  e.EventName,
		Category:   e.Category,
		Timestamp:  e.Timestamp,
		Payload:    e.Payload,
		Parameters: e.Parameters,
		ClientInfo: e.ClientInfo,
	}
}

func toResponses(es []*domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(es))
	for _, e := range es {
		out = append(out, toResponse(e))
	}
	return out
}

func (h *Handler) log(c *gin.Context) {
	var req logRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	e, err := h.svc.LogEvent(c.Request.Context(), service.EventInput{
		ProjectID:  req.ProjectID,
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		SessionID:  req.SessionID,
		EventName:  req.EventName,
		Category:   req.Category,
		Payload:    req.Payload,
		Parameters: req.Parameters,
		ClientInfo: req.ClientInfo,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(e))
}

func (h *Handler) batch(c *gin.Context) {
	var req batchRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	inputs := make([]service.EventInput, 0, len(req.Events))
	for _, m := range req.Events {
		inputs = append(inputs, service.EventInput{
			ProjectID:  m.ProjectID,
			UserID:     m.UserID,
			DeviceID:   m.DeviceID,
			SessionID:  m.SessionID,
			EventName:  m.EventName,
			Category:   m.Category,
			Payload:    m.Payload,
			Parameters: m.Parameters,
			ClientInfo: m.ClientInfo,
		})
	}
	es, err := h.svc.LogBatch(c.Request.Context(), req.ProjectID, inputs)
	h.writeList(c, es, err)
}

func (h *Handler) get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(e))
}

func (h *Handler) listByProject(c *gin.Context) {
	es, err := h.svc.ListByProject(c.Request.Context(), c.Param("projectId"), httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) listBySession(c *gin.Context) {
	es, err := h.svc.ListBySession(c.Request.Context(), c.Param("sessionId"))
	h.writeList(c, es, err)
}

func (h *Handler) listByUser(c *gin.Context) {
	es, err := h.svc.ListByUser(c.Request.Context(), c.Param("userId"), httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) listByDevice(c *gin.Context) {
	es, err := h.svc.ListByDevice(c.Request.Context(), c.Param("deviceId"), httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) listByName(c *gin.Context) {
	es, err := h.svc.ListByName(c.Request.Context(), c.Param("projectId"), c.Param("eventName"), httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) listByCategory(c *gin.Context) {
	es, err := h.svc.ListByCategory(c.Request.Context(), c.Param("projectId"), c.Param("category"), httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) listByTimeRange(c *gin.Context) {
	start, end, err := httpx.TimeRange(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	es, err := h.svc.ListByTimeRange(c.Request.Context(), c.Param("projectId"), start, end, httpx.Page(c, h.pages))
	h.writeList(c, es, err)
}

func (h *Handler) countByProject(c *gin.Context) {
	n, err := h.svc.CountByProject(c.Request.Context(), c.Param("projectId"))
	h.writeCount(c, n, err)
}

func (h *Handler) countBySession(c *gin.Context) {
	n, err := h.svc.CountBySession(c.Request.Context(), c.Param("sessionId"))
	h.writeCount(c, n, err)
}

func (h *Handler) writeList(c *gin.Context, es []*domain.Event, err error) {
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(es))
}

func (h *Handler) writeCount(c *gin.Context, n int64, err error) {
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
