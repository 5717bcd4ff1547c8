package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

const DefaultForwardTimeout = 5 * time.Second

// Forwarder delivers an accepted result to the system of record.
type Forwarder interface {
	Forward(ctx context.Context, item *models.PendingForward) error
}

// PlannerClient posts results to the planner's HTTP API.
type PlannerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPlannerClient(baseURL string, timeout time.Duration) *PlannerClient {
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	return &PlannerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type plannerResultRequest struct {
	ForwardID    string        `json:"forwardId"`
	TournamentID string        `json:"tournamentId"`
	MatchID      string        `json:"matchId"`
	UniqueID     string        `json:"uniqueId,omitempty"`
	Attempt      int           `json:"attempt"`
	Match        *models.Match `json:"match"`
}

func (c *PlannerClient) Forward(ctx context.Context, item *models.PendingForward) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: planner URL not configured", ErrForwardingFailed)
	}

	endpoint := fmt.Sprintf("%s/api/tournaments/%s/matches/%s/result",
		c.baseURL, url.PathEscape(item.TournamentID), url.PathEscape(item.MatchID))

	body, err := json.Marshal(plannerResultRequest{
		ForwardID:    item.ID,
		TournamentID: item.TournamentID,
		MatchID:      item.MatchID,
		UniqueID:     item.UniqueID,
		Attempt:      item.Attempts + 1,
		Match:        item.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode forward %s: %w", item.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", item.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrForwardingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: planner returned status %d: %s", ErrForwardingFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
