package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/definition/domain"
	"github.com/atqamz/kogase-engine/internal/definition/service"
	"github.com/atqamz/kogase-engine/internal/platform/httpx"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// Handler serves /definitions.
type Handler struct {
	svc *service.Service
}

// NewHandler returns a definition handler over svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the definition routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/definitions")
	g.POST("", h.create)
	g.POST("/validate", h.validate)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/name/:projectId/:eventName", h.getByName)
	g.GET("/project/:projectId", h.listByProject)
	g.GET("/category/:projectId/:category", h.listByCategory)
}

type createRequest struct {
	ProjectID   string        `json:"projectId" binding:"required,uuid"`
	EventName   string        `json:"eventName" binding:"required,max=128"`
	Category    string        `json:"category" binding:"max=64"`
	Description string        `json:"description"`
	IsEnabled   *bool         `json:"isEnabled"`
	Schema      jsonblob.Blob `json:"schema"`
}

type updateRequest struct {
	Category    string        `json:"category" binding:"max=64"`
	Description string        `json:"description"`
	IsEnabled   bool          `json:"isEnabled"`
	Schema      jsonblob.Blob `json:"schema"`
}

type definitionResponse struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	EventName   string        `json:"eventName"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	IsEnabled   bool          `json:"isEnabled"`
	Schema      jsonblob.Blob `json:"schema"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   *time.Time    `json:"updatedAt"`
}

func toResponse(d *domain.Definition) definitionResponse {
	return definitionResponse{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		EventName:   d.EventName,
		Category:    d.Category,
		Description: d.Description,
		IsEnabled:   d.IsEnabled,
		Schema:      d.Schema,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toResponses(ds []*domain.Definition) []definitionResponse {
	out := make([]definitionResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toResponse(d))
	}
	return out
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	d, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		ProjectID:   req.ProjectID,
		EventName:   req.EventName,
		Category:    req.Category,
		Description: req.Description,
		IsEnabled:   enabled,
		Schema:      req.Schema,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(d))
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	d, err := h.svc.Update(c.Request.Context(), c.Param("id"), service.UpdateInput{
		Category:    req.Category,
		Description: req.Description,
		IsEnabled:   req.IsEnabled,
		Schema:      req.Schema,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

func (h *Handler) getByName(c *gin.Context) {
	d, err := h.svc.GetByName(c.Request.Context(), c.Param("projectId"), c.Param("eventName"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

func (h *Handler) listByProject(c *gin.Context) {
	ds, err := h.svc.ListByProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) listByCategory(c *gin.Context) {
	ds, err := h.svc.ListByCategory(c.Request.Context(), c.Param("projectId"), c.Param("category"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(ds))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// validate checks the request body against the schema of ?projectId=&eventName=.
func (h *Handler) validate(c *gin.Context) {
	projectID, eventName := c.Query("projectId"), c.Query("eventName")
	if projectID == "" || eventName == "" {
		c.JSON(http.StatusBadRequest, httpx.ErrorBody{Code: "invalid_argument", Message: "projectId and eventName are required"})
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, httpx.ErrorBody{Code: "invalid_argument", Message: err.Error()})
		return
	}
	ok, err := h.svc.ValidatePayload(c.Request.Context(), projectID, eventName, jsonblob.New(raw))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "event payload does not match the schema"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
