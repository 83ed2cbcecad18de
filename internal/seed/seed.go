// Package seed loads the local user directory from a YAML file at startup.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/meeting-gateway/internal/persistence"
)

// File is the on-disk seed document.
type File struct {
	Users []User `yaml:"users"`
}

// User describes one directory entry. Exactly one of Password and
// PasswordHash should be set; Password is hashed before storage.
type User struct {
	Username       string   `yaml:"username"`
	DisplayName    string   `yaml:"display_name"`
	AvatarTemplate string   `yaml:"avatar_template"`
	Staff          bool     `yaml:"staff"`
	Password       string   `yaml:"password"`
	PasswordHash   string   `yaml:"password_hash"`
	Groups         []string `yaml:"groups"`
}

// Load reads and parses the seed file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document, rejecting unknown keys and entries without
// a username.
func Parse(data []byte) (File, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Users))
	for i, user := range file.Users {
		name := strings.ToLower(strings.TrimSpace(user.Username))
		if name == "" {
			return File{}, fmt.Errorf("parse seed file: users[%d]: username is required", i)
		}
		if seen[name] {
			return File{}, fmt.Errorf("parse seed file: users[%d]: duplicate username %q", i, name)
		}
		seen[name] = true
	}
	return file, nil
}

// Applier writes seed users into a repository.
type Applier struct {
	Users  persistence.UserRepository
	Hash   func(password string) (string, error)
	NewID  func() string
	Now    func() time.Time
	Logger *slog.Logger
}

// Apply creates every user that does not exist yet and reports how many were
// created. Existing users are left untouched, so restarting with the same
// file is harmless.
func (a Applier) Apply(ctx context.Context, file File) (int, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}

	created := 0
	for _, entry := range file.Users {
		username := strings.ToLower(strings.TrimSpace(entry.Username))

		_, err := a.Users.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			logger.DebugContext(ctx, "seed user exists", "username", username)
			continue
		case !errors.Is(err, persistence.ErrNotFound):
			return created, fmt.Errorf("look up seed user %s: %w", username, err)
		}

		hash := entry.PasswordHash
		if entry.Password != "" {
			if hash, err = a.Hash(entry.Password); err != nil {
				return created, fmt.Errorf("hash password for %s: %w", username, err)
			}
		}

		stamp := now().UTC()
		user := persistence.User{
			ID:             a.NewID(),
			Username:       username,
			DisplayName:    strings.TrimSpace(entry.DisplayName),
			AvatarTemplate: strings.TrimSpace(entry.AvatarTemplate),
			IsStaff:        entry.Staff,
			PasswordHash:   hash,
			Groups:         entry.Groups,
			CreatedAt:      stamp,
			UpdatedAt:      stamp,
		}
		if err := a.Users.CreateUser(ctx, user); err != nil {
			return created, fmt.Errorf("create seed user %s: %w", username, err)
		}
		created++
		logger.InfoContext(ctx, "seed user created", "username", username, "groups", len(entry.Groups))
	}
	return created, nil
}
