package sink

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

	"tova-go/internal/models"
)

var (
	ErrAccessDenied = errors.New("no approved payment for this email and code")
	ErrCodeUsed     = errors.New("payment code has already been used")
)

// HTTP posts submissions to the results API.
type HTTP struct {
	base     string
	endpoint string
	client   *http.Client
}

// NewHTTP targets baseURL's /api/results endpoint.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	base := strings.TrimRight(baseURL, "/")
	return &HTTP{
		base:     base,
		endpoint: base + "/api/results",
		client:   &http.Client{Timeout: timeout},
	}
}

// VerifyAccess asks the registration system whether p may take the test and
// returns the participant record it approved.
func (h *HTTP) VerifyAccess(ctx context.Context, p models.Participant) (models.Participant, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return models.Participant{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/api/access/verify", bytes.NewReader(body))
	if err != nil {
		return models.Participant{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return models.Participant{}, fmt.Errorf("verifying access: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Participant models.Participant `json:"participant"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return models.Participant{}, fmt.Errorf("decoding access response: %w", err)
		}
		return out.Participant, nil
	case http.StatusForbidden:
		return models.Participant{}, ErrAccessDenied
	case http.StatusConflict:
		return models.Participant{}, ErrCodeUsed
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Participant{}, fmt.Errorf("access API returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

func (h *HTTP) Submit(ctx context.Context, sub models.Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting result: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrDuplicate
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("results API returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
