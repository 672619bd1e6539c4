package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRosterEmbeddedDefault(t *testing.T) {
	r, err := LoadRoster("")
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	info := r.Resolve("@alice:example.com")
	if info.Department != "Engineering" || info.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", info)
	}
}

func TestResolveUnknownSenderIsRestricted(t *testing.T) {
	r, err := LoadRoster("")
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	info := r.Resolve("@mallory:example.com")
	if info.Department != "" {
		t.Fatalf("unknown sender must have no department, got %q", info.Department)
	}
	if info.Email != "mallory@unknown" {
		t.Fatalf("email = %q", info.Email)
	}
}

func TestLoadRosterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	doc := `
- matrix_id: "@dave:example.com"
  email: dave@example.com
  department: DataScience
  environments:
    qa: true
  environment_expiry:
    qa: "2031-01-01T00:00:00Z"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	info := r.Resolve("@dave:example.com")
	if info.Department != "DataScience" {
		t.Fatalf("department = %q", info.Department)
	}
	if !info.EnvironmentAccess["qa"] {
		t.Fatal("qa grant missing")
	}
	if info.EnvironmentExpiry["qa"].Year() != 2031 {
		t.Fatalf("expiry = %v", info.EnvironmentExpiry["qa"])
	}
}

func TestLoadRosterRejectsBadExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	doc := `
- matrix_id: "@eve:example.com"
  email: eve@example.com
  department: HR
  environment_expiry:
    qa: "next tuesday"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRoster(path); err == nil {
		t.Fatal("expected an error for an unparseable expiry")
	}
}
