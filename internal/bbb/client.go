package bbb

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/meeting-gateway/internal/logging"
	"github.com/example/meeting-gateway/internal/metrics"
)

const (
	ActionCreate         = "create"
	ActionJoin           = "join"
	ActionGetMeetingInfo = "getMeetingInfo"

	defaultTimeout  = 5 * time.Second
	maxResponseBody = 1 << 20
)

// Config carries the read-only connection settings for the conferencing backend.
type Config struct {
	// Endpoint is the API base URL, e.g. https://bbb.example.com/bigbluebutton/api/
	Endpoint  string
	Secret    string
	Algorithm Algorithm
	// Timeout bounds each outbound call. Zero selects five seconds.
	Timeout time.Duration
}

// Client issues signed calls against the conferencing backend API.
type Client struct {
	endpoint   string
	secret     string
	algorithm  Algorithm
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a client. When httpClient is nil a
// client bounded by cfg.Timeout is created.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("bbb: shared secret is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = SHA1
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		secret:     cfg.Secret,
		algorithm:  alg,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func normalizeEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("bbb: endpoint is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("bbb: endpoint %q is not an absolute URL", raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}

// SignedURL returns the fully qualified URL for action. The query is encoded
// exactly once; the checksum covers that encoding and nothing else.
func (c *Client) SignedURL(action string, q *Query) string {
	encoded := q.Encode()
	checksum := Sign(c.algorithm, action, encoded, c.secret)
	if encoded == "" {
		return c.endpoint + action + "?checksum=" + checksum
	}
	return c.endpoint + action + "?" + encoded + "&checksum=" + checksum
}

// JoinURL returns the signed join URL. It performs no I/O: joining is a
// browser redirect to the returned address.
func (c *Client) JoinURL(q *Query) string {
	return c.SignedURL(ActionJoin, q)
}

// Create issues the create call. Creating an already existing meeting id is a
// no-op success on the backend side.
func (c *Client) Create(ctx context.Context, q *Query) (CreateResponse, error) {
	var out CreateResponse
	if err := c.call(ctx, ActionCreate, q, &out); err != nil {
		return CreateResponse{}, err
	}
	return out, nil
}

// GetMeetingInfo fetches live meeting details. A meeting the backend does not
// know is reported as a *BackendError with NotFound() == true.
func (c *Client) GetMeetingInfo(ctx context.Context, meetingID string) (MeetingInfo, error) {
	var out MeetingInfo
	q := NewQuery().Set("meetingID", meetingID)
	if err := c.call(ctx, ActionGetMeetingInfo, q, &out); err != nil {
		return MeetingInfo{}, err
	}
	return out, nil
}

type enveloped interface {
	err(action string) error
}

func (c *Client) call(ctx context.Context, action string, q *Query, out enveloped) (err error) {
	start := time.Now()
	outcome := "success"
	logger := c.loggerFor(ctx).With("action", action)
	defer func() {
		elapsed := time.Since(start)
		metrics.RecordBackendRequest(action, outcome, elapsed.Seconds())
		if err != nil {
			logger.WarnContext(ctx, "backend call failed", "outcome", outcome, "duration", elapsed, "error", err)
			return
		}
		logger.DebugContext(ctx, "backend call completed", "duration", elapsed)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SignedURL(action, q), nil)
	if err != nil {
		outcome = "unreachable"
		return fmt.Errorf("%w: %s: %v", ErrBackendUnreachable, action, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "unreachable"
		return fmt.Errorf("%w: %s: %v", ErrBackendUnreachable, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		outcome = "unreachable"
		return fmt.Errorf("%w: %s: read body: %v", ErrBackendUnreachable, action, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		outcome = "rejected"
		return fmt.Errorf("%w: %s returned HTTP %d", ErrBackendRejected, action, resp.StatusCode)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		outcome = "backend_error"
		return &BackendError{Action: action, ReturnCode: "MALFORMED", MessageKey: "malformedResponse", Message: err.Error()}
	}
	if err := out.err(action); err != nil {
		outcome = "backend_error"
		return err
	}
	return nil
}

func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return c.logger
}
