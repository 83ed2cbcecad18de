package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/meeting-gateway/internal/application"
)

type meetingService interface {
	Handle(ctx context.Context, req application.CreateRequest, user application.ActingUser) (application.CreateResult, error)
}

type statusService interface {
	GetStatus(ctx context.Context, meetingID string) (application.Status, error)
}

// MeetingHandler serves the create/join and status endpoints.
type MeetingHandler struct {
	meetings  meetingService
	statuses  statusService
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(meetings meetingService, statuses statusService, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{meetings: meetings, statuses: statuses, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

// Create handles POST /bbb/create.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.meetings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	user, ok := ActingUserFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode create request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.meetings.Handle(r.Context(), req.toApplication(), user)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCreateResponse(result))
}

// Status handles GET /bbb/status/{meetingId}.
func (h *MeetingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.statuses == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := strings.TrimSpace(r.PathValue("meetingId"))
	status, err := h.statuses.GetStatus(r.Context(), meetingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, newStatusResponse(status))
}

// flexString accepts either a JSON string or a JSON number. Forms post the
// duration as a string while scripted clients tend to send a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("expected a string or number")
	}
	*f = flexString(n.String())
	return nil
}

type createRequest struct {
	Mode        string     `json:"mode"`
	MeetingName string     `json:"meetingName"`
	StartDate   string     `json:"startDate"`
	StartTime   string     `json:"startTime"`
	Duration    flexString `json:"duration"`
	MeetingID   string     `json:"meetingID"`
	AttendeePW  string     `json:"attendeePW"`
	ModeratorPW string     `json:"moderatorPW"`
	Descriptor  string     `json:"descriptor"`
}

func (c createRequest) toApplication() application.CreateRequest {
	return application.CreateRequest{
		Mode:        c.Mode,
		MeetingName: c.MeetingName,
		StartDate:   c.StartDate,
		StartTime:   c.StartTime,
		Duration:    string(c.Duration),
		MeetingID:   c.MeetingID,
		AttendeePW:  c.AttendeePW,
		ModeratorPW: c.ModeratorPW,
		Descriptor:  c.Descriptor,
	}
}

type createResponse struct {
	URL         string `json:"url,omitempty"`
	Success     bool   `json:"success,omitempty"`
	MeetingID   string `json:"meetingId,omitempty"`
	AttendeePW  string `json:"attendeePW,omitempty"`
	ModeratorPW string `json:"moderatorPW,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Descriptor  string `json:"descriptor,omitempty"`
}

// newCreateResponse only echoes meeting details for freshly created rooms, so
// a join of an existing room never returns more than the url.
func newCreateResponse(result application.CreateResult) createResponse {
	resp := createResponse{URL: result.URL}
	if result.Encoded == "" {
		return resp
	}
	resp.Descriptor = result.Encoded
	resp.Success = result.Deferred()
	if d := result.Descriptor; d != nil {
		resp.MeetingID = d.MeetingID
		resp.AttendeePW = d.AttendeePassword
		resp.ModeratorPW = d.ModeratorPassword
	}
	if w := result.Window; w != nil {
		resp.StartTime = w.StartAt.UTC().Format(time.RFC3339)
		resp.Duration = strconv.Itoa(w.DurationMinutes)
		if w.EndAt != nil {
			resp.EndTime = w.EndAt.UTC().Format(time.RFC3339)
		}
	}
	return resp
}

type attendeeResponse struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type statusResponse struct {
	ParticipantCount int                `json:"participantCount"`
	Attendees        []attendeeResponse `json:"attendees"`
}

// newStatusResponse renders an inactive meeting as an empty object.
func newStatusResponse(status application.Status) any {
	if !status.Active {
		return struct{}{}
	}
	attendees := make([]attendeeResponse, 0, len(status.Attendees))
	for _, a := range status.Attendees {
		attendees = append(attendees, attendeeResponse{DisplayName: a.DisplayName, AvatarURL: a.AvatarURL})
	}
	return statusResponse{ParticipantCount: status.ParticipantCount, Attendees: attendees}
}
