package preflight_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lockersync/internal/preflight"
	"lockersync/internal/services"
	"lockersync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLocker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	if result := preflight.CheckLocker(context.Background(), srv.URL, "good"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := preflight.CheckLocker(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected failure for rejected token")
	}
	if result := preflight.CheckLocker(context.Background(), srv.URL, ""); result.Passed {
		t.Fatal("expected failure for missing token")
	}
	if result := preflight.CheckLocker(context.Background(), "", "good"); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestRunAllChecksConfiguredDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocker("http://127.0.0.1:1"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed || !results[1].Passed {
		t.Fatalf("expected directory checks to pass, got %+v", results[:2])
	}
	if failed := preflight.Failures(results); len(failed) != 1 || failed[0].Name != "Locker" {
		t.Fatalf("expected only the unreachable locker to fail, got %+v", failed)
	}
}

func TestRunAllSkipsLockerWhenDirectoryFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocker("http://127.0.0.1:1"))
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "missing")
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Passed {
		t.Fatal("expected missing state dir to fail")
	}
	if results[2].Passed || !strings.Contains(results[2].Detail, "skipped") {
		t.Fatalf("expected skipped locker check, got %+v", results[2])
	}
}

func TestRequireUploadTools(t *testing.T) {
	t.Run("stubs present", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
		if err := preflight.RequireUploadTools(cfg); err != nil {
			t.Fatalf("expected tools to resolve, got %v", err)
		}
	})

	t.Run("ffmpeg missing", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithEmptyPath())
		err := preflight.RequireUploadTools(cfg)
		if !errors.Is(err, services.ErrExternalTool) {
			t.Fatalf("expected external tool error, got %v", err)
		}
	})

	t.Run("not needed when matching and transcoding are off", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithEmptyPath())
		cfg.Upload.EnableMatching = false
		cfg.Upload.EnableTranscoding = false
		if err := preflight.RequireUploadTools(cfg); err != nil {
			t.Fatalf("expected no requirement, got %v", err)
		}
	})
}
