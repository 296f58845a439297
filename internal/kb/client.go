package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client queries the external knowledge base service. Each tenant carries a
// kbPointer identifying its document collection; the service resolves the
// pointer and answers from that collection only.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

type queryRequest struct {
	KBPointer string `json:"kbPointer"`
	Question  string `json:"question"`
}

type QueryResult struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Grounded   bool    `json:"grounded"`
}

// Query asks the knowledge base for an answer to question within the
// tenant's collection. A non-200 status is an error; an ungrounded answer
// is not.
func (c *Client) Query(ctx context.Context, kbPointer, question string) (QueryResult, error) {
	body, err := json.Marshal(queryRequest{KBPointer: kbPointer, Question: question})
	if err != nil {
		return QueryResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return QueryResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("knowledge base request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return QueryResult{}, fmt.Errorf("knowledge base responded with status %d", res.StatusCode)
	}

	var result QueryResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return QueryResult{}, fmt.Errorf("decode knowledge base response: %w", err)
	}
	return result, nil
}
