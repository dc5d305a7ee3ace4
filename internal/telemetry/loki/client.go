// Package loki pushes ingested events to Grafana Loki as JSON log lines.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
	"github.com/atqamz/kogase-engine/internal/telemetry/producer"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // [timestamp_ns, line]
}

var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Client is a telemetry.Publisher writing to one Loki instance.
type Client struct {
	baseURL string
	job     string
	http    *http.Client
}

// NewClient returns a Loki publisher, or nil when baseURL is empty.
func NewClient(baseURL, job string, hc *http.Client) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if job == "" {
		job = "kogase"
	}
	return &Client{baseURL: baseURL, job: job, http: hc}
}

// Publish sends events in one push request, one stream per (project, category).
// Each line is the same JSON document written to Kafka.
func (c *Client) Publish(ctx context.Context, events ...*domain.Event) error {
	if c == nil || len(events) == 0 {
		return nil
	}
	body, err := c.buildRequest(events)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func (c *Client) buildRequest(events []*domain.Event) (PushRequest, error) {
	type key struct{ project, category string }
	index := make(map[key]int)
	var out PushRequest
	for _, e := range events {
		line, err := json.Marshal(producer.NewMessage(e))
		if err != nil {
			return PushRequest{}, err
		}
		k := key{e.ProjectID, e.Category}
		i, ok := index[k]
		if !ok {
			i = len(out.Streams)
			index[k] = i
			out.Streams = append(out.Streams, Stream{Stream: c.labels(e)})
		}
		out.Streams[i].Values = append(out.Streams[i].Values,
			[]string{strconv.FormatInt(e.Timestamp.UnixNano(), 10), string(line)})
	}
	return out, nil
}

func (c *Client) labels(e *domain.Event) map[string]string {
	labels := map[string]string{"job": c.job}
	for k, v := range map[string]string{"project_id": e.ProjectID, "category": e.Category} {
		if s := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); s != "" {
			labels[k] = s
		}
	}
	return labels
}
