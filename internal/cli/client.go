package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

// client is a thin HTTP client of a running splitlab instance.
type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	return &client{
		base: addr,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (c *client) do(method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed (is splitlab serve running at %s?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, fmt.Errorf("%s: %s", apiErr.Code, apiErr.Error)
		}
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) RegisterExperiment(definition map[string]any) (map[string]any, error) {
	var created map[string]any
	_, err := c.do("POST", "/api/experiments", definition, &created)
	return created, err
}

func (c *client) ListExperiments() ([]map[string]any, error) {
	var out []map[string]any
	_, err := c.do("GET", "/api/experiments", nil, &out)
	return out, err
}

func (c *client) SetStatus(experimentID, status string) error {
	_, err := c.do("POST", "/api/experiments/"+experimentID+"/status", map[string]string{"status": status}, nil)
	return err
}

func (c *client) Assign(subjectID, experimentID string) (map[string]any, bool, error) {
	var out map[string]any
	status, err := c.do("POST", "/api/assignments", map[string]string{
		"subject_id":    subjectID,
		"experiment_id": experimentID,
	}, &out)
	if err != nil {
		return nil, false, err
	}
	return out, status != http.StatusNoContent, nil
}

func (c *client) Track(subjectID, experimentID, metric string, value float64) error {
	_, err := c.do("POST", "/api/conversions", map[string]any{
		"subject_id":    subjectID,
		"experiment_id": experimentID,
		"metric":        metric,
		"value":         value,
	}, nil)
	return err
}

func (c *client) Results(experimentID string) ([]map[string]any, error) {
	var out []map[string]any
	_, err := c.do("GET", "/api/experiments/"+experimentID+"/results", nil, &out)
	return out, err
}

func (c *client) Flags(experimentID string) ([]domain.UnderperformingFlag, error) {
	path := "/api/flags"
	if experimentID != "" {
		path += "?experiment_id=" + experimentID
	}

	var raw []struct {
		ID           string  `json:"id"`
		ExperimentID string  `json:"experiment_id"`
		VariantID    string  `json:"variant_id"`
		Confidence   float64 `json:"confidence"`
		Lift         float64 `json:"lift"`
		ControlRate  float64 `json:"control_rate"`
		VariantRate  float64 `json:"variant_rate"`
		RaisedAt     string  `json:"raised_at"`
	}
	if _, err := c.do("GET", path, nil, &raw); err != nil {
		return nil, err
	}

	flags := make([]domain.UnderperformingFlag, len(raw))
	for i, f := range raw {
		flags[i] = domain.UnderperformingFlag{
			ID:           f.ID,
			ExperimentID: f.ExperimentID,
			VariantID:    f.VariantID,
			Confidence:   f.Confidence,
			Lift:         f.Lift,
			ControlRate:  f.ControlRate,
			VariantRate:  f.VariantRate,
			RaisedAt:     util.ParseTimeRFC3339(f.RaisedAt),
		}
	}
	return flags, nil
}
