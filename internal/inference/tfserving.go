package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
)

// TFServingClient calls a TensorFlow Serving REST predict endpoint.
type TFServingClient struct {
	url     string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[float64]
	log     *zap.Logger
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

func NewTFServingClient(cfg config.InferenceConfig, log *zap.Logger) *TFServingClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &TFServingClient{
		url:     fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(cfg.ServerURL, "/"), cfg.ModelName),
		timeout: cfg.Timeout,
		http:    &http.Client{},
		breaker: gobreaker.NewCircuitBreaker[float64](settings),
		log:     log,
	}
}

func (c *TFServingClient) Classify(ctx context.Context, t Tensor) (float64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	score, err := c.breaker.Execute(func() (float64, error) {
		return c.predict(ctx, t)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return score, err
}

func (c *TFServingClient) predict(ctx context.Context, t Tensor) (float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(predictRequest{Instances: [][][][]float32{t.Nested()}})
	if err != nil {
		return 0, fmt.Errorf("encoding predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding predict response: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("model server error: %s", out.Error)
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return 0, errors.New("model server returned no predictions")
	}

	score := out.Predictions[0][0]
	if err := checkScore(score); err != nil {
		return 0, err
	}

	c.log.Debug("model prediction",
		zap.Float64("score", score),
		zap.Duration("latency", time.Since(start)),
	)
	return score, nil
}
