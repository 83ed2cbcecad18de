package bbb_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/example/meeting-gateway/internal/bbb"
	"github.com/example/meeting-gateway/internal/testfixtures"
)

func newClient(t *testing.T, backend *testfixtures.FakeBackend) *bbb.Client {
	t.Helper()
	client, err := bbb.NewClient(backend.Config(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  bbb.Config
	}{
		{"missing endpoint", bbb.Config{Secret: "s"}},
		{"relative endpoint", bbb.Config{Endpoint: "bbb/api", Secret: "s"}},
		{"missing secret", bbb.Config{Endpoint: "https://bbb.example.com/bigbluebutton/api/"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := bbb.NewClient(tt.cfg, nil, nil); err == nil {
				t.Fatalf("expected configuration error")
			}
		})
	}
}

func TestSignedURLAppendsTrailingSlashAndChecksum(t *testing.T) {
	t.Parallel()

	client, err := bbb.NewClient(bbb.Config{Endpoint: "https://bbb.example.com/bigbluebutton/api", Secret: "secret"}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	q := bbb.NewQuery().Set("fullName", "Ann Lee").Set("meetingID", "m-1").Set("password", "ap")
	got := client.JoinURL(q)

	encoded := "fullName=Ann+Lee&meetingID=m-1&password=ap"
	want := "https://bbb.example.com/bigbluebutton/api/join?" + encoded + "&checksum=" + bbb.Sign(bbb.SHA1, "join", encoded, "secret")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCreateSendsSignedQuery(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	client := newClient(t, backend)

	q := bbb.NewQuery().Set("name", "Weekly").Set("meetingID", "m-1").Set("attendeePW", "ap").Set("moderatorPW", "mp")
	resp, err := client.Create(context.Background(), q)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if resp.MeetingID != "m-1" || !resp.OK() {
		t.Fatalf("unexpected response %+v", resp)
	}

	requests := backend.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected one request, got %d", len(requests))
	}
	if !requests[0].ChecksumValid {
		t.Fatalf("expected backend to accept checksum for %q", requests[0].RawQuery)
	}
	if !strings.HasPrefix(requests[0].RawQuery, q.Encode()+"&checksum=") {
		t.Fatalf("query was re-encoded: %q", requests[0].RawQuery)
	}
}

func TestCreateWithAlternateAlgorithm(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	backend.Algorithm = bbb.SHA256
	client := newClient(t, backend)

	if _, err := client.Create(context.Background(), bbb.NewQuery().Set("meetingID", "m-256")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestCreateReportsBackendFailure(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	backend.Handle(bbb.ActionCreate, func(url.Values) (int, string) {
		return http.StatusOK, testfixtures.FailureXML("idNotUnique", "A meeting already exists with that meeting ID.")
	})
	client := newClient(t, backend)

	_, err := client.Create(context.Background(), bbb.NewQuery().Set("meetingID", "m-1"))
	var backendErr *bbb.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backendErr.MessageKey != "idNotUnique" || backendErr.ReturnCode != "FAILED" {
		t.Fatalf("unexpected backend error %+v", backendErr)
	}
}

func TestCreateReportsNon2xxAsRejected(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	backend.Handle(bbb.ActionCreate, func(url.Values) (int, string) {
		return http.StatusInternalServerError, "boom"
	})
	client := newClient(t, backend)

	if _, err := client.Create(context.Background(), bbb.NewQuery()); !errors.Is(err, bbb.ErrBackendRejected) {
		t.Fatalf("expected ErrBackendRejected, got %v", err)
	}
}

func TestCreateReportsMalformedBody(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	backend.Handle(bbb.ActionCreate, func(url.Values) (int, string) {
		return http.StatusOK, "<html>not xml"
	})
	client := newClient(t, backend)

	_, err := client.Create(context.Background(), bbb.NewQuery())
	var backendErr *bbb.BackendError
	if !errors.As(err, &backendErr) || backendErr.ReturnCode != "MALFORMED" {
		t.Fatalf("expected malformed BackendError, got %v", err)
	}
}

func TestCallReportsUnreachableOnTimeout(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	backend.Handle(bbb.ActionGetMeetingInfo, func(url.Values) (int, string) {
		<-release
		return http.StatusOK, ""
	})

	client, err := bbb.NewClient(backend.Config(), &http.Client{Timeout: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.GetMeetingInfo(context.Background(), "m-1"); !errors.Is(err, bbb.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestGetMeetingInfoDecodesAttendeeShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		userIDs []string
	}{
		{"no attendees", nil},
		{"single attendee", []string{"alice"}},
		{"many attendees", []string{"alice", "bob", "carol"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := testfixtures.NewFakeBackend(t)
			backend.Handle(bbb.ActionGetMeetingInfo, func(q url.Values) (int, string) {
				return http.StatusOK, testfixtures.MeetingInfoXML(q.Get("meetingID"), len(tt.userIDs), tt.userIDs...)
			})
			client := newClient(t, backend)

			info, err := client.GetMeetingInfo(context.Background(), "m-7")
			if err != nil {
				t.Fatalf("GetMeetingInfo returned error: %v", err)
			}
			if info.MeetingID != "m-7" || info.ParticipantCount != len(tt.userIDs) {
				t.Fatalf("unexpected info %+v", info)
			}
			ids := info.UserIDs()
			if len(ids) != len(tt.userIDs) {
				t.Fatalf("expected %d ids, got %v", len(tt.userIDs), ids)
			}
			for i := range ids {
				if ids[i] != tt.userIDs[i] {
					t.Fatalf("expected %v, got %v", tt.userIDs, ids)
				}
			}
		})
	}
}

func TestGetMeetingInfoUnknownMeeting(t *testing.T) {
	t.Parallel()

	backend := testfixtures.NewFakeBackend(t)
	client := newClient(t, backend)

	_, err := client.GetMeetingInfo(context.Background(), "missing")
	var backendErr *bbb.BackendError
	if !errors.As(err, &backendErr) || !backendErr.NotFound() {
		t.Fatalf("expected not-found BackendError, got %v", err)
	}
}
