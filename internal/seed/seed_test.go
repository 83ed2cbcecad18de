package seed_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/meeting-gateway/internal/seed"
	"github.com/example/meeting-gateway/internal/testfixtures"
)

const document = `
users:
  - username: Alice
    display_name: Alice A
    staff: true
    password: wonderland
    groups: [hosts]
  - username: bob
    password_hash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"
    avatar_template: /user_avatar/forum/bob/{size}/2.png
`

func TestParse(t *testing.T) {
	t.Parallel()

	file, err := seed.Parse([]byte(document))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(file.Users) != 2 || !file.Users[0].Staff || file.Users[0].Groups[0] != "hosts" {
		t.Fatalf("unexpected seed %+v", file)
	}

	empty, err := seed.Parse(nil)
	if err != nil || len(empty.Users) != 0 {
		t.Fatalf("expected empty document to parse, got %+v, %v", empty, err)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]string{
		"unknown key":    "users:\n  - username: a\n    admin: true\n",
		"no username":    "users:\n  - display_name: Nobody\n",
		"duplicate user": "users:\n  - username: a\n  - username: A\n",
	} {
		if _, err := seed.Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := seed.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	file, err := seed.Parse([]byte(document))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	ids := testfixtures.NewIDGenerator("seed")
	applier := seed.Applier{
		Users: harness.Users,
		Hash:  func(p string) (string, error) { return "hashed:" + p, nil },
		NewID: ids.Next,
		Now:   testfixtures.NewClock(testfixtures.ReferenceTime()).NowFunc(),
	}

	created, err := applier.Apply(context.Background(), file)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 users created, got %d", created)
	}

	alice, err := harness.Users.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername returned error: %v", err)
	}
	if alice.PasswordHash != "hashed:wonderland" || !alice.IsStaff || len(alice.Groups) != 1 {
		t.Fatalf("unexpected seeded user %+v", alice)
	}

	again, err := applier.Apply(context.Background(), file)
	if err != nil {
		t.Fatalf("second Apply returned error: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected existing users to be skipped, created %d", again)
	}
}
