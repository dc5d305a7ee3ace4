package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/metric/repository"
	"github.com/atqamz/kogase-engine/internal/metric/service"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

const projectID = "0b8a6c53-2f0e-4bde-a0f4-5f1d0f6f6b0a"

type stubCalculator struct {
	projectID string
	date      time.Time
}

func (s *stubCalculator) CalculateDaily(ctx context.Context, projectID string, date time.Time) (int, error) {
	s.projectID, s.date = projectID, date
	return 4, nil
}

func newRouter(t *testing.T, calc DailyCalculator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := RegisterValidations(); err != nil {
		t.Fatalf("RegisterValidations: %v", err)
	}
	svc := service.NewService(repository.NewMemoryRepository(), nil, page.DefaultConfig(), 10)
	r := gin.New()
	NewHandler(svc, calc, page.DefaultConfig()).Register(r.Group("/api/v1/telemetry"))
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_UpsertAndQuery(t *testing.T) {
	r := newRouter(t, nil)
	body := `{"projectId":"` + projectID + `","metricName":"dau","dimension":"date","dimensionValue":"2024-01-01",
		"period":"Daily","timestamp":"2024-01-01T23:59:59.999Z","sum":2,"count":1,"additionalData":{"source":"manual"}}`
	w := do(r, http.MethodPost, "/api/v1/telemetry/metrics", body)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d body=%s", w.Code, w.Body)
	}
	var first metricResponse
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}
	if first.Period != "daily" || first.AdditionalData.IsAbsent() {
		t.Fatalf("unexpected metric: %+v", first)
	}
	w = do(r, http.MethodPost, "/api/v1/telemetry/metrics", strings.Replace(body, `"sum":2`, `"sum":7`, 1))
	var second metricResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil || second.ID != first.ID || second.Sum != 7 {
		t.Fatalf("second upsert = %s (%v)", w.Body, err)
	}

	w = do(r, http.MethodGet, "/api/v1/telemetry/metrics/latest/"+projectID+"/dau/date", "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/telemetry/metrics/latest/"+projectID+"/dau/country", ""); w.Code != http.StatusNotFound {
		t.Fatalf("latest missing status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/telemetry/metrics/"+first.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/v1/telemetry/metrics/period/"+projectID+"/daily?start=2024-01-01T00:00:00Z&end=2024-01-02T00:00:00Z", "")
	var rows []metricResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil || len(rows) != 1 {
		t.Fatalf("period list = %s (%v)", w.Body, err)
	}
	if w := do(r, http.MethodGet, "/api/v1/telemetry/metrics/period/"+projectID+"/sometimes?start=2024-01-01T00:00:00Z&end=2024-01-02T00:00:00Z", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad period status = %d", w.Code)
	}
}

func TestHandler_RejectsBadPeriod(t *testing.T) {
	r := newRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/telemetry/metrics", `{"projectId":"`+projectID+`","metricName":"dau","period":"Biweekly"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
}

func TestHandler_Batch(t *testing.T) {
	r := newRouter(t, nil)
	w := do(r, http.MethodPost, "/api/v1/telemetry/metrics/batch", `{"metrics":[
		{"projectId":"`+projectID+`","metricName":"a","period":"total","sum":1},
		{"projectId":"`+projectID+`","metricName":"b","period":"total","sum":2}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("batch status = %d body=%s", w.Code, w.Body)
	}
	w = do(r, http.MethodGet, "/api/v1/telemetry/metrics/project/"+projectID, "")
	var rows []metricResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil || len(rows) != 2 {
		t.Fatalf("project list = %s (%v)", w.Body, err)
	}
	if !rows[0].Timestamp.Equal(rows[1].Timestamp) {
		t.Fatalf("batch members without a timestamp should share one: %v %v", rows[0].Timestamp, rows[1].Timestamp)
	}
}

func TestHandler_CalculateDaily(t *testing.T) {
	calc := &stubCalculator{}
	r := newRouter(t, calc)
	w := do(r, http.MethodPost, "/api/v1/telemetry/metrics/calculate-daily/"+projectID+"?date=2024-01-01", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if calc.projectID != projectID || !calc.date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("calculator called with %s %v", calc.projectID, calc.date)
	}
	var resp struct {
		MetricsWritten int `json:"metricsWritten"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.MetricsWritten != 4 {
		t.Fatalf("response = %s", w.Body)
	}
	if w := do(r, http.MethodPost, "/api/v1/telemetry/metrics/calculate-daily/"+projectID+"?date=01/01/2024", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", w.Code)
	}
}
