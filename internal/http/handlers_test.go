package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/meeting-gateway/internal/application"
)

type authServiceStub struct {
	result      application.AuthenticateResult
	err         error
	lastParams  application.AuthenticateParams
	revoked     []string
	revokeErr   error
	validUser   application.ActingUser
	validateErr error
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.lastParams = params
	return s.result, s.err
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.revokeErr
}

func (s *authServiceStub) ValidateSession(ctx context.Context, token string) (application.ActingUser, error) {
	if s.validateErr != nil {
		return application.ActingUser{}, s.validateErr
	}
	if token != "valid-token" {
		return application.ActingUser{}, application.ErrUnauthorized
	}
	return s.validUser, nil
}

type meetingServiceStub struct {
	result   application.CreateResult
	err      error
	lastReq  application.CreateRequest
	lastUser application.ActingUser
}

func (s *meetingServiceStub) Handle(ctx context.Context, req application.CreateRequest, user application.ActingUser) (application.CreateResult, error) {
	s.lastReq = req
	s.lastUser = user
	return s.result, s.err
}

type statusServiceStub struct {
	status   application.Status
	err      error
	lastID   string
	requests int
}

func (s *statusServiceStub) GetStatus(ctx context.Context, meetingID string) (application.Status, error) {
	s.lastID = meetingID
	s.requests++
	return s.status, s.err
}

func newTestRouter(auth *authServiceStub, meetings *meetingServiceStub, statuses *statusServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Auth:           NewAuthHandler(auth, nil),
		Meetings:       NewMeetingHandler(meetings, statuses, nil),
		RequireSession: RequireSession(auth, nil),
		Middleware:     []func(http.Handler) http.Handler{RequestLogger(nil)},
	})
}

func serve(t *testing.T, handler http.Handler, method, path, body string, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("returns the token in body, header and cookie", func(t *testing.T) {
		t.Parallel()

		expires := time.Date(2030, time.January, 2, 10, 0, 0, 0, time.UTC)
		auth := &authServiceStub{result: application.AuthenticateResult{
			User:    application.User{ID: "user-1", Username: "alice"},
			Session: application.Session{Token: "tok", ExpiresAt: expires},
		}}
		router := newTestRouter(auth, &meetingServiceStub{}, &statusServiceStub{})

		rec := serve(t, router, http.MethodPost, "/sessions", `{"username":" Alice ","password":"pw"}`, "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if auth.lastParams.Username != "alice" || auth.lastParams.Password != "pw" {
			t.Fatalf("unexpected authenticate params %+v", auth.lastParams)
		}
		if rec.Header().Get("X-Session-Token") != "tok" {
			t.Fatalf("expected X-Session-Token header")
		}
		if !strings.Contains(rec.Header().Get("Set-Cookie"), "session_token=tok") {
			t.Fatalf("expected session cookie, got %q", rec.Header().Get("Set-Cookie"))
		}
		body := decodeBody(t, rec)
		if body["token"] != "tok" || body["expires_at"] != "2030-01-02T10:00:00Z" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		t.Parallel()

		auth := &authServiceStub{err: application.ErrInvalidCredentials}
		router := newTestRouter(auth, &meetingServiceStub{}, &statusServiceStub{})

		rec := serve(t, router, http.MethodPost, "/sessions", `{"username":"a","password":"b"}`, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error_code"] != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("rejects malformed bodies and wrong methods", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&authServiceStub{}, &meetingServiceStub{}, &statusServiceStub{})
		if rec := serve(t, router, http.MethodPost, "/sessions", `{`, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		rec := serve(t, router, http.MethodGet, "/sessions", "", "")
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
			t.Fatalf("expected 405 with Allow header, got %d %q", rec.Code, rec.Header().Get("Allow"))
		}
	})
}

func TestAuthHandler_DeleteCurrentSession(t *testing.T) {
	t.Parallel()

	auth := &authServiceStub{}
	router := newTestRouter(auth, &meetingServiceStub{}, &statusServiceStub{})

	if rec := serve(t, router, http.MethodDelete, "/sessions/current", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec := serve(t, router, http.MethodDelete, "/sessions/current", "", "tok")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(auth.revoked) != 1 || auth.revoked[0] != "tok" {
		t.Fatalf("expected token to be revoked, got %v", auth.revoked)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("expected cookie to be cleared, got %q", rec.Header().Get("Set-Cookie"))
	}
}

func TestMeetingHandler_Create(t *testing.T) {
	t.Parallel()

	user := application.ActingUser{ID: "user-1", Username: "alice", Groups: []string{"hosts"}}

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()

		meetings := &meetingServiceStub{}
		router := newTestRouter(&authServiceStub{validUser: user}, meetings, &statusServiceStub{})

		if rec := serve(t, router, http.MethodPost, "/bbb/create", `{}`, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if rec := serve(t, router, http.MethodPost, "/bbb/create", `{}`, "stale"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
		}
		if meetings.lastUser.ID != "" {
			t.Fatalf("service must not be reached without a session")
		}
	})

	t.Run("returns the join url", func(t *testing.T) {
		t.Parallel()

		meetings := &meetingServiceStub{result: application.CreateResult{URL: "https://bbb.example/join?x=1"}}
		router := newTestRouter(&authServiceStub{validUser: user}, meetings, &statusServiceStub{})

		body := `{"mode":"new","meetingName":"Sync","startDate":"2030-01-01","startTime":"10:00","duration":90}`
		rec := serve(t, router, http.MethodPost, "/bbb/create", body, "valid-token")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody(t, rec); got["url"] != "https://bbb.example/join?x=1" || len(got) != 1 {
			t.Fatalf("unexpected body %+v", got)
		}
		if meetings.lastReq.Duration != "90" || meetings.lastReq.Mode != "new" || meetings.lastReq.StartTime != "10:00" {
			t.Fatalf("unexpected request %+v", meetings.lastReq)
		}
		if meetings.lastUser.Username != "alice" {
			t.Fatalf("expected acting user to be forwarded, got %+v", meetings.lastUser)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected a request id header")
		}
	})

	t.Run("returns the descriptor when joining is deferred", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2030, time.January, 2, 10, 0, 0, 0, time.UTC)
		end := start.Add(time.Hour)
		meetings := &meetingServiceStub{result: application.CreateResult{
			Descriptor: &application.MeetingDescriptor{MeetingID: "m-1", AttendeePassword: "ap", ModeratorPassword: "mp"},
			Window:     &application.ScheduleWindow{StartAt: start, DurationMinutes: 60, EndAt: &end},
			Encoded:    `[wrap=discourse-bbb v="1"][/wrap]`,
		}}
		router := newTestRouter(&authServiceStub{validUser: user}, meetings, &statusServiceStub{})

		rec := serve(t, router, http.MethodPost, "/bbb/create", `{"mode":"new","duration":"60"}`, "valid-token")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		got := decodeBody(t, rec)
		if _, ok := got["url"]; ok {
			t.Fatalf("deferred response must not carry a url: %+v", got)
		}
		if got["success"] != true || got["descriptor"] != `[wrap=discourse-bbb v="1"][/wrap]` {
			t.Fatalf("expected deferred descriptor, got %+v", got)
		}
		if got["meetingId"] != "m-1" || got["startTime"] != "2030-01-02T10:00:00Z" || got["endTime"] != "2030-01-02T11:00:00Z" {
			t.Fatalf("unexpected body %+v", got)
		}
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{
			name:       "validation",
			err:        &application.ValidationError{Reason: application.ErrInvalidDuration, FieldErrors: map[string]string{"duration": "too long"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantKey:    "error",
			wantValue:  application.ErrInvalidDuration.Error(),
		},
		{
			name:       "not started",
			err:        &application.WindowError{Err: application.ErrMeetingNotStarted, Boundary: time.Date(2030, time.January, 1, 10, 0, 0, 0, time.UTC)},
			wantStatus: http.StatusConflict,
			wantKey:    "boundary",
			wantValue:  "2030-01-01T10:00:00Z",
		},
		{
			name:       "ended",
			err:        &application.WindowError{Err: application.ErrMeetingEnded, Boundary: time.Date(2030, time.January, 1, 11, 0, 0, 0, time.UTC)},
			wantStatus: http.StatusConflict,
			wantKey:    "error_code",
			wantValue:  "MEETING_ENDED",
		},
		{
			name:       "backend failure",
			err:        errors.Join(application.ErrCreationFailed, errors.New("checksumError")),
			wantStatus: http.StatusBadGateway,
			wantKey:    "error",
			wantValue:  "could not create meeting",
		},
		{
			name:       "disabled",
			err:        application.ErrDisabled,
			wantStatus: http.StatusNotFound,
			wantKey:    "error",
			wantValue:  application.ErrDisabled.Error(),
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantKey:    "error",
			wantValue:  "internal server error",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			meetings := &meetingServiceStub{err: tt.err}
			router := newTestRouter(&authServiceStub{validUser: user}, meetings, &statusServiceStub{})

			rec := serve(t, router, http.MethodPost, "/bbb/create", `{"mode":"new"}`, "valid-token")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec); got[tt.wantKey] != tt.wantValue {
				t.Fatalf("expected %s=%v, got %+v", tt.wantKey, tt.wantValue, got)
			}
		})
	}
}

func TestMeetingHandler_Status(t *testing.T) {
	t.Parallel()

	user := application.ActingUser{ID: "user-1", Username: "alice"}

	t.Run("lists attendees of a running meeting", func(t *testing.T) {
		t.Parallel()

		statuses := &statusServiceStub{status: application.Status{
			Active:           true,
			ParticipantCount: 3,
			Attendees:        []application.AttendeeSummary{{DisplayName: "Alice", AvatarURL: "/a/25.png"}},
		}}
		router := newTestRouter(&authServiceStub{validUser: user}, &meetingServiceStub{}, statuses)

		rec := serve(t, router, http.MethodGet, "/bbb/status/m-1", "", "valid-token")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if statuses.lastID != "m-1" {
			t.Fatalf("expected meeting id from path, got %q", statuses.lastID)
		}
		var body statusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.ParticipantCount != 3 || len(body.Attendees) != 1 || body.Attendees[0].AvatarURL != "/a/25.png" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("renders inactive meetings as an empty object", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&authServiceStub{validUser: user}, &meetingServiceStub{}, &statusServiceStub{})
		rec := serve(t, router, http.MethodGet, "/bbb/status/m-1", "", "valid-token")
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
			t.Fatalf("expected empty object, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("active meeting without mapped attendees keeps the list", func(t *testing.T) {
		t.Parallel()

		statuses := &statusServiceStub{status: application.Status{Active: true, ParticipantCount: 1}}
		router := newTestRouter(&authServiceStub{validUser: user}, &meetingServiceStub{}, statuses)
		rec := serve(t, router, http.MethodGet, "/bbb/status/m-1", "", "valid-token")
		if got := strings.TrimSpace(rec.Body.String()); got != `{"participantCount":1,"attendees":[]}` {
			t.Fatalf("unexpected body %q", got)
		}
	})

	t.Run("maps backend outages to bad gateway", func(t *testing.T) {
		t.Parallel()

		statuses := &statusServiceStub{err: application.ErrStatusUnavailable}
		router := newTestRouter(&authServiceStub{validUser: user}, &meetingServiceStub{}, statuses)
		if rec := serve(t, router, http.MethodGet, "/bbb/status/m-1", "", "valid-token"); rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
	})
}

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`{"duration":"45"}`: "45",
		`{"duration":45}`:   "45",
		`{"duration":null}`: "",
		`{}`:                "",
	}
	for raw, want := range tests {
		var req createRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if string(req.Duration) != want {
			t.Fatalf("%s: expected %q, got %q", raw, want, req.Duration)
		}
	}

	var req createRequest
	if err := json.Unmarshal([]byte(`{"duration":true}`), &req); err == nil {
		t.Fatalf("expected booleans to be rejected")
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	router := NewRouter(RouterConfig{Metrics: metrics})

	if rec := serve(t, router, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(t, router, http.MethodGet, "/metrics", "", ""); rec.Body.String() != "# metrics\n" {
		t.Fatalf("unexpected metrics response %q", rec.Body.String())
	}
	if rec := serve(t, router, http.MethodPost, "/bbb/create", `{}`, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected unregistered meeting routes, got %d", rec.Code)
	}
}
