package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/metric/domain"
	"github.com/atqamz/kogase-engine/internal/metric/service"
	"github.com/atqamz/kogase-engine/internal/platform/httpx"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// DailyCalculator recomputes one project's daily metrics.
type DailyCalculator interface {
	CalculateDaily(ctx context.Context, projectID string, date time.Time) (int, error)
}

// RegisterValidations installs the aggregation_period binding tag.
func RegisterValidations() error {
	return httpx.RegisterValidation("aggregation_period", httpx.OneOf(domain.ParsePeriod))
}

// Handler serves /metrics.
type Handler struct {
	svc    *service.Service
	rollup DailyCalculator
	pages  page.Config
	today  func() time.Time
}

// NewHandler returns a metric handler. Without a calculator the calculate-daily route is not mounted.
func NewHandler(svc *service.Service, rollup DailyCalculator, pages page.Config) *Handler {
	return &Handler{svc: svc, rollup: rollup, pages: pages, today: func() time.Time { return time.Now().UTC() }}
}

// Register mounts the metric routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/metrics")
	g.POST("", h.upsert)
	g.POST("/batch", h.batch)
	if h.rollup != nil {
		g.POST("/calculate-daily/:projectId", h.calculateDaily)
	}
	g.GET("/:id", h.get)
	g.GET("/project/:projectId", h.listByProject)
	g.GET("/name/:projectId/:metricName", h.listByName)
	g.GET("/dimension/:projectId/:dimension/:dimensionValue", h.listByDimension)
	g.GET("/period/:projectId/:period", h.listByPeriod)
	g.GET("/latest/:projectId/:metricName/:dimension", h.latest)
}

type upsertRequest struct {
	ProjectID      string        `json:"projectId" binding:"required,uuid"`
	MetricName     string        `json:"metricName" binding:"required,max=128"`
	Dimension      string        `json:"dimension" binding:"max=64"`
	DimensionValue string        `json:"dimensionValue" binding:"max=128"`
	Period         string        `json:"period" binding:"required,aggregation_period"`
	Timestamp      *time.Time    `json:"timestamp"`
	Sum            float64       `json:"sum"`
	Average        float64       `json:"average"`
	Min            float64       `json:"min"`
	Max            float64       `json:"max"`
	Count          int64         `json:"count" binding:"min=0"`
	UniqueCount    int64         `json:"uniqueCount" binding:"min=0"`
	AdditionalData jsonblob.Blob `json:"additionalData"`
}

func (r upsertRequest) aggregate() *domain.Aggregate {
	a := &domain.Aggregate{
		ProjectID:      r.ProjectID,
		MetricName:     r.MetricName,
		Dimension:      r.Dimension,
		DimensionValue: r.DimensionValue,
		Period:         domain.Period(r.Period),
		Sum:            r.Sum,
		Average:        r.Average,
		Min:            r.Min,
		Max:            r.Max,
		Count:          r.Count,
		UniqueCount:    r.UniqueCount,
		AdditionalData: r.AdditionalData,
	}
	if r.Timestamp != nil {
		a.Timestamp = *r.Timestamp
	}
	return a
}

type batchRequest struct {
	Metrics []upsertRequest `json:"metrics" binding:"required,dive"`
}

type metricResponse struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"projectId"`
	MetricName     string        `json:"metricName"`
	Dimension      string        `json:"dimension"`
	DimensionValue string        `json:"dimensionValue"`
	Timestamp      time.Time     `json:"timestamp"`
	Period         domain.Period `json:"period"`
	Sum            float64       `json:"sum"`
	Average        float64       `json:"average"`
	Min            float64       `json:"min"`
	Max            float64       `json:"max"`
	Count          int64         `json:"count"`
	UniqueCount    int64         `json:"uniqueCount"`
	AdditionalData jsonblob.Blob `json:"additionalData"`
}

func toResponse(a *domain.Aggregate) metricResponse {
	return metricResponse{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		MetricName:     a.MetricName,
		Dimension:      a.Dimension,
		DimensionValue: a.DimensionValue,
		Timestamp:      a.Timestamp,
		Period:         a.Period,
		Sum:            a.Sum,
		Average:        a.Average,
		Min:            a.Min,
		Max:            a.Max,
		Count:          a.Count,
		UniqueCount:    a.UniqueCount,
		AdditionalData: a.AdditionalData,
	}
}

func (h *Handler) upsert(c *gin.Context) {
	var req upsertRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	a, err := h.svc.Upsert(c.Request.Context(), req.aggregate())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(a))
}

func (h *Handler) batch(c *gin.Context) {
	var req batchRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	as := make([]*domain.Aggregate, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		as = append(as, m.aggregate())
	}
	rows, err := h.svc.BatchUpsert(c.Request.Context(), as)
	h.writeList(c, rows, err)
}

func (h *Handler) calculateDaily(c *gin.Context) {
	date, err := httpx.QueryDate(c, "date", h.today())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	projectID := c.Param("projectId")
	n, err := h.rollup.CalculateDaily(c.Request.Context(), projectID, date)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projectId":      projectID,
		"date":           date.Format(time.DateOnly),
		"metricsWritten": n,
	})
}

func (h *Handler) get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(a))
}

func (h *Handler) listByProject(c *gin.Context) {
	rows, err := h.svc.ListByProject(c.Request.Context(), c.Param("projectId"), httpx.Page(c, h.pages))
	h.writeList(c, rows, err)
}

func (h *Handler) listByName(c *gin.Context) {
	rows, err := h.svc.ListByName(c.Request.Context(), c.Param("projectId"), c.Param("metricName"))
	h.writeList(c, rows, err)
}

func (h *Handler) listByDimension(c *gin.Context) {
	rows, err := h.svc.ListByDimension(c.Request.Context(), c.Param("projectId"), c.Param("dimension"), c.Param("dimensionValue"))
	h.writeList(c, rows, err)
}

func (h *Handler) listByPeriod(c *gin.Context) {
	start, end, err := httpx.TimeRange(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	rows, err := h.svc.ListByPeriod(c.Request.Context(), c.Param("projectId"), domain.Period(c.Param("period")), start, end)
	h.writeList(c, rows, err)
}

func (h *Handler) latest(c *gin.Context) {
	a, err := h.svc.GetLatest(c.Request.Context(), c.Param("projectId"), c.Param("metricName"), c.Param("dimension"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(a))
}

func (h *Handler) writeList(c *gin.Context, rows []*domain.Aggregate, err error) {
	if err != nil {
		httpx.Error(c, err)
		return
	}
	out := make([]metricResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, toResponse(a))
	}
	c.JSON(http.StatusOK, out)
}
