package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure HTTPDispatcher implements model.Dispatcher.
var _ model.Dispatcher = (*HTTPDispatcher)(nil)

// HTTPDispatcher posts the generated message to a messaging relay that
// delivers it on the vacancy's platform.
type HTTPDispatcher struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPDispatcher creates a dispatcher posting to endpoint.
func NewHTTPDispatcher(endpoint, token string, client *http.Client, logger *slog.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint: endpoint,
		token:    token,
		client:   client,
		logger:   logger,
	}
}

type sendRequest struct {
	VacancyID string `json:"vacancy_id"`
	Message   string `json:"message"`
}

// Send delivers message for vacancyID. Any 2xx reply means the message went
// out. The call is never retried here; a timeout is reported as not sent.
func (d *HTTPDispatcher) Send(ctx context.Context, vacancyID, message string) (bool, error) {
	body, err := json.Marshal(sendRequest{VacancyID: vacancyID, Message: message})
	if err != nil {
		return false, fmt.Errorf("marshal outreach message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create outreach request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("outreach request for %s: %w", vacancyID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("outreach for %s: %s", vacancyID, strings.TrimSpace(string(msg))),
		}
	}

	d.logger.Debug("outreach delivered", "vacancy_id", vacancyID, "status_code", resp.StatusCode)
	return true, nil
}
