package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"TEAMBOARD_ENV", "TEAMBOARD_BACKEND", "TEAMBOARD_USER", "TEAMBOARD_POLL_INTERVAL", "TEAMBOARD_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.IsDevelopment() || cfg.Backend != BackendSQLite {
		t.Fatalf("expected development sqlite; got %+v", cfg)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("expected 1s poll; got %v", cfg.PollInterval)
	}
}

// chdir changes the working directory for the duration of the test (testing.T.Chdir needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd error: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir error: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// unsetenv removes key for the duration of the test. godotenv never overrides a variable that is
// present, even when empty.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("TEAMBOARD_ENV", "")
	t.Setenv("TEAMBOARD_BACKEND", "")
	unsetenv(t, "TEAMBOARD_USER")
	unsetenv(t, "TEAMBOARD_POLL_INTERVAL")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEAMBOARD_USER=u-from-env\nTEAMBOARD_POLL_INTERVAL=250ms\n"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.UserID != "u-from-env" {
		t.Fatalf("expected user from .env; got %q", cfg.UserID)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms; got %v", cfg.PollInterval)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TEAMBOARD_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	t.Setenv("TEAMBOARD_BACKEND", "firestore")
	t.Setenv("FIREBASE_PROJECT_ID", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected firestore to require a project id")
	}
}

func TestPollIntervalSeconds(t *testing.T) {
	t.Setenv("TEAMBOARD_POLL_INTERVAL", "3")
	d, err := getEnvDuration("TEAMBOARD_POLL_INTERVAL", time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("expected 3s; got %v (%v)", d, err)
	}
	t.Setenv("TEAMBOARD_POLL_INTERVAL", "soon")
	if _, err := getEnvDuration("TEAMBOARD_POLL_INTERVAL", time.Second); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}

func TestFileRoundTripIsAtomic(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEAMBOARD_CONFIG_DIR", dir)

	f, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if f.Location != "" {
		t.Fatalf("expected empty config for missing file; got %+v", f)
	}
	if err := Update(func(f *File) {
		f.Location = "/acme/projects/p1"
		f.BoardMode = "priority"
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if got.Location != "/acme/projects/p1" || got.BoardMode != "priority" {
		t.Fatalf("expected saved values; got %+v", got)
	}

	ents, _ := os.ReadDir(dir)
	for _, e := range ents {
		if e.Name() != "config.json" {
			t.Fatalf("expected no temp files left; found %s", e.Name())
		}
	}
	st, err := os.Stat(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600; got %v", st.Mode().Perm())
	}
}

func TestDataDirDefaultsUnderConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEAMBOARD_CONFIG_DIR", dir)
	got, err := DataDir("")
	if err != nil {
		t.Fatalf("DataDir error: %v", err)
	}
	if got != filepath.Join(dir, "data") {
		t.Fatalf("expected %s; got %s", filepath.Join(dir, "data"), got)
	}
	if got, _ := DataDir("/tmp/x"); got != "/tmp/x" {
		t.Fatalf("expected configured dir; got %s", got)
	}
}
