package testfixtures

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/example/meeting-gateway/internal/application"
	"github.com/example/meeting-gateway/internal/bbb"
)

func TestServiceFactoryNewMeetingService(t *testing.T) {
	backend := NewFakeBackend(t)
	client, err := bbb.NewClient(backend.Config(), nil, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	factory := NewServiceFactory()
	svc := factory.NewMeetingService(MeetingServiceDeps{
		Backend: client,
		Config:  application.MeetingConfig{Enabled: true, MeetingIDPrefix: "fixture"},
	})

	user := NewUserFixture(WithUsername("alice"), WithUserStaff(true)).Acting()
	result, err := svc.Handle(context.Background(), application.CreateRequest{
		Mode:        "new",
		MeetingName: "Standup",
		StartDate:   "2030-01-01",
		StartTime:   "10:00",
	}, user)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	wantID := "fixture-0000000000000001-1893492000"
	if result.Descriptor == nil || result.Descriptor.MeetingID != wantID {
		t.Fatalf("expected meeting %s, got %+v", wantID, result.Descriptor)
	}
	if !strings.HasPrefix(result.URL, backend.Endpoint()+"join?") {
		t.Fatalf("expected join URL on the fake backend, got %q", result.URL)
	}
	parsed, _ := url.Parse(result.URL)
	if got := parsed.Query().Get("password"); got != result.Descriptor.ModeratorPassword {
		t.Fatalf("expected staff to join as moderator, got password %q", got)
	}

	requests := backend.Requests()
	if len(requests) != 1 || requests[0].Action != bbb.ActionCreate || !requests[0].ChecksumValid {
		t.Fatalf("expected one signed create call, got %+v", requests)
	}
	if got := requests[0].Query.Get("meetingID"); got != wantID {
		t.Fatalf("create sent meetingID %q", got)
	}
}
