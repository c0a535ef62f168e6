// Package graphite fetches object-storage byte series from a
// graphite-compatible render API.
package graphite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudmeter/cloudmeter/domain/interval"
	"github.com/cloudmeter/cloudmeter/domain/objectstore"
	"github.com/cloudmeter/cloudmeter/ports"
)

const seriesPrefix = "object_usage."

// Client queries the render endpoint of a graphite-compatible backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	logger     zerolog.Logger
}

// Config configures the graphite client.
type Config struct {
	BaseURL  string
	Timezone string
	Timeout  time.Duration
}

// New creates a graphite client.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timezone:   timezone,
		logger:     logger.With().Str("component", "graphite").Logger(),
	}
}

// renderSeries is the wire format of one series in a render response.
type renderSeries struct {
	Target string `json:"target"`
	// Datapoints are [value_or_null, epoch_seconds] pairs.
	Datapoints [][2]*float64 `json:"datapoints"`
}

// ByteSeries fetches the per-project byte-count series covering the window.
// Backend unreachability and error payloads degrade to an empty result
// instead of failing the run; the Result records that degradation so the
// caller can distinguish it from genuine zero usage.
func (c *Client) ByteSeries(ctx context.Context, w interval.Window, projectIDs []string) (objectstore.Result, error) {
	if !w.Valid() {
		return objectstore.Result{}, fmt.Errorf("byte series: %w", interval.ErrInvalidWindow)
	}
	if len(projectIDs) == 0 {
		return objectstore.Result{}, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("from", w.Start.Format("20060102"))
	params.Set("until", w.End.Format("20060102"))
	params.Set("target", seriesPrefix+"{"+strings.Join(projectIDs, ",")+"}")
	params.Set("tz", c.timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/render?"+params.Encode(), nil)
	if err != nil {
		return objectstore.Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("metrics backend unreachable, degrading to empty result")
		return objectstore.Degrade(err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("metrics backend error, degrading to empty result")
		return objectstore.Degrade(fmt.Sprintf("render returned status %d", resp.StatusCode)), nil
	}

	var wire []renderSeries
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		c.logger.Warn().Err(err).Msg("metrics payload undecodable, degrading to empty result")
		return objectstore.Degrade("decode render response: " + err.Error()), nil
	}

	series := make([]objectstore.Series, 0, len(wire))
	for _, ws := range wire {
		s := objectstore.Series{
			ProjectID: strings.TrimPrefix(ws.Target, seriesPrefix),
			Samples:   make([]objectstore.Sample, 0, len(ws.Datapoints)),
		}
		for _, dp := range ws.Datapoints {
			sample := objectstore.Sample{Bytes: dp[0]}
			if dp[1] != nil {
				sample.At = time.Unix(int64(*dp[1]), 0).UTC()
			}
			s.Samples = append(s.Samples, sample)
		}
		series = append(series, s)
	}

	return objectstore.Result{Series: series}, nil
}

// Ensure interface compliance.
var _ ports.MetricsSource = (*Client)(nil)
