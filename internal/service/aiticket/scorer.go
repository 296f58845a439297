package aiticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"support-desk-backend/internal/model"
)

// Scorer decides whether an inbound message matches one of the tenant's
// ticket triggers. Implementations may call out to an external model; the
// orchestrator treats scoring as opaque.
type Scorer interface {
	Score(ctx context.Context, message string, triggers []model.Trigger) (ScoreResult, error)
}

type ScoreResult struct {
	Match      bool    `json:"match"`
	TriggerID  string  `json:"triggerId"`
	Confidence float64 `json:"confidence"`
}

// HTTPScorer scores against the analysis service. The request carries the
// raw message and the tenant's full trigger list; the service picks at most
// one trigger.
type HTTPScorer struct {
	baseURL string
	http    *http.Client
}

func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func NewHTTPScorerWithClient(baseURL string, httpClient *http.Client) *HTTPScorer {
	return &HTTPScorer{baseURL: baseURL, http: httpClient}
}

type scoreRequest struct {
	Message  string          `json:"message"`
	Triggers []model.Trigger `json:"triggers"`
}

func (s *HTTPScorer) Score(ctx context.Context, message string, triggers []model.Trigger) (ScoreResult, error) {
	body, err := json.Marshal(scoreRequest{Message: message, Triggers: triggers})
	if err != nil {
		return ScoreResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze-ticket", bytes.NewReader(body))
	if err != nil {
		return ScoreResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("trigger analysis request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ScoreResult{}, fmt.Errorf("trigger analysis responded with status %d", res.StatusCode)
	}

	var result ScoreResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return ScoreResult{}, fmt.Errorf("decode trigger analysis response: %w", err)
	}
	return result, nil
}
