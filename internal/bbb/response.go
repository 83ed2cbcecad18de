package bbb

import (
	"encoding/xml"
	"strings"
)

const returnCodeSuccess = "SUCCESS"

// Envelope holds the fields every backend response carries.
type Envelope struct {
	ReturnCode string `xml:"returncode"`
	MessageKey string `xml:"messageKey"`
	Message    string `xml:"message"`
}

// OK reports whether the backend signalled success.
func (e Envelope) OK() bool {
	return strings.EqualFold(strings.TrimSpace(e.ReturnCode), returnCodeSuccess)
}

func (e Envelope) err(action string) error {
	if e.OK() {
		return nil
	}
	return &BackendError{
		Action:     action,
		ReturnCode: strings.TrimSpace(e.ReturnCode),
		MessageKey: strings.TrimSpace(e.MessageKey),
		Message:    strings.TrimSpace(e.Message),
	}
}

// CreateResponse is the document returned by the create call.
type CreateResponse struct {
	XMLName xml.Name `xml:"response"`
	Envelope
	MeetingID            string `xml:"meetingID"`
	InternalMeetingID    string `xml:"internalMeetingID"`
	AttendeePW           string `xml:"attendeePW"`
	ModeratorPW          string `xml:"moderatorPW"`
	CreateTime           int64  `xml:"createTime"`
	HasBeenForciblyEnded bool   `xml:"hasBeenForciblyEnded"`
}

// MeetingInfo is the document returned by getMeetingInfo.
type MeetingInfo struct {
	XMLName xml.Name `xml:"response"`
	Envelope
	MeetingName      string     `xml:"meetingName"`
	MeetingID        string     `xml:"meetingID"`
	Running          bool       `xml:"running"`
	ParticipantCount int        `xml:"participantCount"`
	ModeratorCount   int        `xml:"moderatorCount"`
	Attendees        []Attendee `xml:"attendees>attendee"`
}

// Attendee is one live participant. The backend emits zero, one, or many
// <attendee> elements under <attendees>; all three decode into the same slice.
type Attendee struct {
	UserID   string `xml:"userID"`
	FullName string `xml:"fullName"`
	Role     string `xml:"role"`
}

// UserIDs returns the trimmed, non-empty attendee user ids in document order.
func (m MeetingInfo) UserIDs() []string {
	if len(m.Attendees) == 0 {
		return nil
	}
	ids := make([]string, 0, len(m.Attendees))
	for _, a := range m.Attendees {
		if id := strings.TrimSpace(a.UserID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
