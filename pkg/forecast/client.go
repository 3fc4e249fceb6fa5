// Package forecast talks to the external demand predictor. The predictor
// (trained elsewhere on the snapshot history) receives the most recent
// window of snapshot rows and returns a predicted near-future value of
// nb_computing.
package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
)

// Client accumulates the recent snapshot window and queries the predictor
// over HTTP. A failed or slow prediction is reported as unavailable, never
// as an error the control loop has to handle.
type Client struct {
	url     string
	window  int
	client  *http.Client
	log     *logging.Logger
	records []models.SystemRecord
}

// NewClient builds a predictor client. window is how many snapshot rows
// are sent per request.
func NewClient(url string, window int, timeout time.Duration, log *logging.Logger) *Client {
	if window <= 0 {
		window = 60
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		url:    url,
		window: window,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Record appends a snapshot row to the window; implements record.Recorder
func (c *Client) Record(rec models.SystemRecord) error {
	c.records = append(c.records, rec)
	if len(c.records) > c.window {
		c.records = c.records[len(c.records)-c.window:]
	}
	return nil
}

type predictRequest struct {
	Records []models.SystemRecord `json:"records"`
}

type predictResponse struct {
	NbComputing float64 `json:"nb_computing"`
}

// PredictComputing implements power.Forecaster
func (c *Client) PredictComputing() (float64, bool) {
	if len(c.records) < c.window {
		return 0, false
	}

	body, err := json.Marshal(predictRequest{Records: c.records})
	if err != nil {
		c.log.Error("failed to encode forecast request", map[string]interface{}{"error": err.Error()})
		return 0, false
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		c.log.Warn("forecast request failed", map[string]interface{}{"error": err.Error()})
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("forecast request failed", map[string]interface{}{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
		return 0, false
	}

	var pred predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		c.log.Warn("failed to decode forecast response", map[string]interface{}{"error": err.Error()})
		return 0, false
	}
	return pred.NbComputing, true
}
