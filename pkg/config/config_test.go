package config

import "testing"

func TestFromEnvDefaultsFastModeOn(t *testing.T) {
	t.Setenv("YOMITAN_FAST_DB", "")
	t.Setenv("YOMITAN_DISABLE_FAST_DB", "")
	cfg := FromEnv()
	if !cfg.FastDBMode {
		t.Fatalf("expected fast db mode to default on")
	}
}

func TestFromEnvDisableFlagWins(t *testing.T) {
	t.Setenv("YOMITAN_DISABLE_FAST_DB", "true")
	cfg := FromEnv()
	if cfg.FastDBMode {
		t.Fatalf("expected disable flag to turn fast db mode off")
	}
}

func TestFromEnvEnableFlagOverridesDisable(t *testing.T) {
	t.Setenv("YOMITAN_DISABLE_FAST_DB", "true")
	t.Setenv("YOMITAN_FAST_DB", "true")
	cfg := FromEnv()
	if !cfg.FastDBMode {
		t.Fatalf("expected explicit enable flag to win")
	}
}

func TestFromEnvWorkerCountFallback(t *testing.T) {
	t.Setenv("YOMITAN_IMPORT_WORKERS", "")
	cfg := FromEnv()
	if cfg.WorkerCount != 4 {
		t.Fatalf("expected fallback worker count 4, got %d", cfg.WorkerCount)
	}
}

func TestFromEnvWorkerCountParsed(t *testing.T) {
	t.Setenv("YOMITAN_IMPORT_WORKERS", "8")
	cfg := FromEnv()
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected parsed worker count 8, got %d", cfg.WorkerCount)
	}
}
