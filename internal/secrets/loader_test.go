package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileBeatsValue(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(file, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := Load(Source{Name: "api key", Value: "inline", File: file})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected trimmed file content, got %q", got)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("CAREERGOV_TEST_SECRET", " from-env ")

	got, err := Load(Source{Name: "api key", Env: "CAREERGOV_TEST_SECRET"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatal("expected error for unconfigured secret")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	if _, err := Load(Source{Name: "api key", File: empty}); err == nil {
		t.Fatal("expected error for empty secret file")
	}

	if _, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for missing secret file")
	}
}
