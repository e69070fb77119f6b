package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  file-secret\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	secret, err := Load(Source{Name: "gemini api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secret != "file-secret" {
		t.Fatalf("expected file to take precedence, got %q", secret)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   "), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	_, err := Load(Source{Name: "gemini api key", File: path})
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(Source{File: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInlineAndEnv(t *testing.T) {
	t.Setenv("STRIVEBOT_TEST_SECRET", " from-env ")

	secret, err := Load(Source{Value: " inline ", Env: "STRIVEBOT_TEST_SECRET"})
	if err != nil || secret != "inline" {
		t.Fatalf("expected inline value, got %q (%v)", secret, err)
	}

	secret, err = Load(Source{Env: "STRIVEBOT_TEST_SECRET"})
	if err != nil || secret != "from-env" {
		t.Fatalf("expected env value, got %q (%v)", secret, err)
	}
}

func TestLoadNotConfigured(t *testing.T) {
	t.Setenv("STRIVEBOT_TEST_SECRET", "")

	_, err := Load(Source{Name: "database url", Env: "STRIVEBOT_TEST_SECRET"})
	if err == nil || !strings.Contains(err.Error(), "database url is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = Load(Source{})
	if err == nil || !strings.Contains(err.Error(), "secret is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}
