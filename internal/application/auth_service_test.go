package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func plainVerifier(hash, password string) error {
	if hash == password {
		return nil
	}
	return ErrInvalidCredentials
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2030, time.January, 1, 9, 0, 0, 0, time.UTC)
		creds := &credentialStoreStub{
			credentials: UserCredentials{
				User:         User{ID: "user-1", Username: "alice"},
				PasswordHash: "secret",
			},
		}
		repo := newSessionRepositoryStub()
		tokenSeq := []string{"session-id", "session-token"}
		svc := NewAuthService(creds, repo, plainVerifier, func() string {
			token := tokenSeq[0]
			tokenSeq = tokenSeq[1:]
			return token
		}, func() time.Time { return now }, time.Hour)

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Username: " Alice ", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if result.Session.Token != "session-token" || result.Session.ID != "session-id" {
			t.Fatalf("unexpected session %+v", result.Session)
		}
		if !result.Session.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected expiry one hour out, got %v", result.Session.ExpiresAt)
		}
		if creds.lastUsername != "alice" {
			t.Fatalf("expected normalized username lookup, got %q", creds.lastUsername)
		}
		if len(repo.deleteCalls) != 1 || !repo.deleteCalls[0].Equal(now) {
			t.Fatalf("expected DeleteExpiredSessions to be called with now, got %#v", repo.deleteCalls)
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "user"}, PasswordHash: "expected"}}
		svc := NewAuthService(creds, newSessionRepositoryStub(), plainVerifier, nil, time.Now, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Username: "user", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("maps unknown users to invalid credentials", func(t *testing.T) {
		t.Parallel()

		svc := NewAuthService(&credentialStoreStub{}, newSessionRepositoryStub(), plainVerifier, nil, time.Now, time.Hour)
		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Username: "nobody", Password: "x"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("boom")
		creds := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "user"}, PasswordHash: "secret"}}
		repo := newSessionRepositoryStub()
		repo.createErr = expected

		svc := NewAuthService(creds, repo, plainVerifier, func() string { return "token" }, time.Now, time.Hour)
		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Username: "user", Password: "secret"}); !errors.Is(err, expected) {
			t.Fatalf("expected error %v, got %v", expected, err)
		}
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	t.Run("revokes active sessions", func(t *testing.T) {
		t.Parallel()

		now := time.Now().UTC()
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "session-1", UserID: "user", Token: "token", ExpiresAt: now.Add(time.Hour), CreatedAt: now})
		svc := NewAuthService(nil, repo, nil, nil, func() time.Time { return now }, time.Hour)

		if err := svc.RevokeSession(context.Background(), "token"); err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		if stored := repo.sessions["token"]; stored.RevokedAt == nil {
			t.Fatalf("expected RevokedAt to be set")
		}
	})

	t.Run("maps missing tokens to invalid credentials", func(t *testing.T) {
		t.Parallel()

		svc := NewAuthService(nil, newSessionRepositoryStub(), nil, nil, time.Now, time.Hour)
		if err := svc.RevokeSession(context.Background(), "missing"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if err := svc.RevokeSession(context.Background(), "  "); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for blank token, got %v", err)
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, time.January, 1, 9, 0, 0, 0, time.UTC)
	creds := &credentialStoreStub{credentials: UserCredentials{User: User{
		ID: "user-1", Username: "alice", DisplayName: "Alice", IsStaff: true, Groups: []string{"hosts"},
	}}}

	t.Run("returns the acting user for active sessions", func(t *testing.T) {
		t.Parallel()

		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s", UserID: "user-1", Token: "token", ExpiresAt: now.Add(time.Hour)})
		svc := NewAuthService(creds, repo, nil, nil, func() time.Time { return now }, time.Hour)

		user, err := svc.ValidateSession(context.Background(), " token ")
		if err != nil {
			t.Fatalf("ValidateSession failed: %v", err)
		}
		if user.Username != "alice" || !user.IsStaff || len(user.Groups) != 1 || user.Groups[0] != "hosts" {
			t.Fatalf("unexpected acting user %#v", user)
		}
	})

	tests := []struct {
		name    string
		session Session
		token   string
		want    error
	}{
		{"expired", Session{UserID: "user-1", Token: "token", ExpiresAt: now}, "token", ErrSessionExpired},
		{"revoked", Session{UserID: "user-1", Token: "token", ExpiresAt: now.Add(time.Hour), RevokedAt: &now}, "token", ErrSessionRevoked},
		{"unknown token", Session{UserID: "user-1", Token: "token", ExpiresAt: now.Add(time.Hour)}, "other", ErrUnauthorized},
		{"blank token", Session{UserID: "user-1", Token: "token", ExpiresAt: now.Add(time.Hour)}, "  ", ErrUnauthorized},
		{"user deleted", Session{UserID: "user-2", Token: "token", ExpiresAt: now.Add(time.Hour)}, "token", ErrUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newSessionRepositoryStub()
			repo.seed(tt.session)
			svc := NewAuthService(creds, repo, nil, nil, func() time.Time { return now }, time.Hour)
			if _, err := svc.ValidateSession(context.Background(), tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// credentialStoreStub implements CredentialStore for tests.
type credentialStoreStub struct {
	mu           sync.Mutex
	credentials  UserCredentials
	lastUsername string
}

func (c *credentialStoreStub) GetUserCredentialsByUsername(ctx context.Context, username string) (UserCredentials, error) {
	c.mu.Lock()
	c.lastUsername = username
	c.mu.Unlock()
	if c.credentials.User.ID == "" {
		return UserCredentials{}, ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.credentials.User.ID == id {
		return c.credentials.User, nil
	}
	return User{}, ErrNotFound
}

// sessionRepositoryStub implements SessionRepository in memory, keyed by token.
type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	deleteCalls []time.Time
	createErr   error
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]Session)}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.sessions[session.Token] = session
}

func (s *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	return nil
}
