package testfixtures

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/example/meeting-gateway/internal/bbb"
)

// BackendSecret is the shared secret FakeBackend verifies checksums with by default.
const BackendSecret = "fixture-secret"

// BackendHandler answers one backend action. It returns the HTTP status and the
// XML body to send.
type BackendHandler func(query url.Values) (int, string)

// BackendRequest captures one call received by FakeBackend.
type BackendRequest struct {
	Action        string
	RawQuery      string
	Query         url.Values
	ChecksumValid bool
}

// FakeBackend is an httptest server that speaks the conferencing backend API.
// It verifies request checksums and records every call.
type FakeBackend struct {
	Secret    string
	Algorithm bbb.Algorithm

	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]BackendHandler
	requests []BackendRequest
}

// NewFakeBackend starts a backend that accepts create calls and reports every
// meeting as unknown. The server is shut down when the test ends.
func NewFakeBackend(tb testing.TB) *FakeBackend {
	tb.Helper()

	f := &FakeBackend{
		Secret:    BackendSecret,
		Algorithm: bbb.SHA1,
		handlers:  make(map[string]BackendHandler),
	}
	f.handlers[bbb.ActionCreate] = func(q url.Values) (int, string) {
		return http.StatusOK, CreateSuccessXML(q.Get("meetingID"))
	}
	f.handlers[bbb.ActionGetMeetingInfo] = func(url.Values) (int, string) {
		return http.StatusOK, FailureXML("notFound", "We could not find a meeting with that meeting ID")
	}

	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	tb.Cleanup(f.server.Close)
	return f
}

// Endpoint returns the API base URL including the trailing slash.
func (f *FakeBackend) Endpoint() string {
	return f.server.URL + "/bigbluebutton/api/"
}

// Config returns a client configuration pointing at the fake backend.
func (f *FakeBackend) Config() bbb.Config {
	return bbb.Config{Endpoint: f.Endpoint(), Secret: f.Secret, Algorithm: f.Algorithm}
}

// Handle overrides the response for action.
func (f *FakeBackend) Handle(action string, handler BackendHandler) {
	f.mu.Lock()
	f.handlers[action] = handler
	f.mu.Unlock()
}

// Requests returns a copy of the recorded calls in arrival order.
func (f *FakeBackend) Requests() []BackendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BackendRequest(nil), f.requests...)
}

// Calls counts recorded calls for action.
func (f *FakeBackend) Calls(action string) int {
	count := 0
	for _, req := range f.Requests() {
		if req.Action == action {
			count++
		}
	}
	return count
}

func (f *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw := r.URL.RawQuery
	base, checksum := splitChecksum(raw)
	valid := checksum != "" && checksum == bbb.Sign(f.Algorithm, action, base, f.Secret)

	query, _ := url.ParseQuery(base)

	f.mu.Lock()
	f.requests = append(f.requests, BackendRequest{
		Action:        action,
		RawQuery:      raw,
		Query:         query,
		ChecksumValid: valid,
	})
	handler := f.handlers[action]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	if !valid {
		_, _ = w.Write([]byte(FailureXML("checksumError", "Checksums do not match")))
		return
	}
	if handler == nil {
		_, _ = w.Write([]byte(FailureXML("unsupportedRequest", "This request is not supported.")))
		return
	}
	status, body := handler(query)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func splitChecksum(raw string) (string, string) {
	if strings.HasPrefix(raw, "checksum=") {
		return "", strings.TrimPrefix(raw, "checksum=")
	}
	idx := strings.LastIndex(raw, "&checksum=")
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], raw[idx+len("&checksum="):]
}

// CreateSuccessXML renders a successful create response.
func CreateSuccessXML(meetingID string) string {
	return fmt.Sprintf(`<response>
  <returncode>SUCCESS</returncode>
  <meetingID>%s</meetingID>
  <internalMeetingID>internal-%s</internalMeetingID>
  <createTime>1893492000000</createTime>
  <hasBeenForciblyEnded>false</hasBeenForciblyEnded>
  <messageKey></messageKey>
  <message></message>
</response>`, html.EscapeString(meetingID), html.EscapeString(meetingID))
}

// FailureXML renders a FAILED envelope.
func FailureXML(messageKey, message string) string {
	return fmt.Sprintf(`<response>
  <returncode>FAILED</returncode>
  <messageKey>%s</messageKey>
  <message>%s</message>
</response>`, html.EscapeString(messageKey), html.EscapeString(message))
}

// MeetingInfoXML renders a successful getMeetingInfo response listing one
// attendee per user id.
func MeetingInfoXML(meetingID string, participantCount int, userIDs ...string) string {
	var attendees strings.Builder
	for i, id := range userIDs {
		role := "VIEWER"
		if i == 0 {
			role = "MODERATOR"
		}
		fmt.Fprintf(&attendees, `
    <attendee>
      <userID>%s</userID>
      <fullName>Attendee %d</fullName>
      <role>%s</role>
    </attendee>`, html.EscapeString(id), i+1, role)
	}
	return fmt.Sprintf(`<response>
  <returncode>SUCCESS</returncode>
  <meetingName>Fixture meeting</meetingName>
  <meetingID>%s</meetingID>
  <running>true</running>
  <participantCount>%d</participantCount>
  <moderatorCount>1</moderatorCount>
  <attendees>%s
  </attendees>
</response>`, html.EscapeString(meetingID), participantCount, attendees.String())
}
