package config

import (
	"os"
	"testing"
	"time"
)

// clearEnv unsets all QUIZ_ environment variables for a clean test.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"QUIZ_SERVER_PORT",
		"QUIZ_SERVER_HOST",
		"QUIZ_DATABASE_URL",
		"QUIZ_DATABASE_MAX_CONNS",
		"QUIZ_DATABASE_MIN_CONNS",
		"QUIZ_CACHE_URL",
		"QUIZ_STORAGE_BACKEND",
		"QUIZ_STORAGE_KEY",
		"QUIZ_STORAGE_FILE",
		"QUIZ_TICK_INTERVAL",
		"QUIZ_EVENT_LOG",
		"QUIZ_LOG_LEVEL",
		"QUIZ_LOG_FORMAT",
		"QUIZ_QUESTIONS_PATH",
	}
	for _, v := range envVars {
		_ = os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Storage.Key != "mcq_progress_v1" {
		t.Errorf("Storage.Key = %q, want mcq_progress_v1", cfg.Storage.Key)
	}
	if cfg.Quiz.TickInterval != time.Second {
		t.Errorf("Quiz.TickInterval = %s, want 1s", cfg.Quiz.TickInterval)
	}
	if cfg.Cache.URL != "redis://localhost:6379" {
		t.Errorf("Cache.URL = %q, want redis://localhost:6379", cfg.Cache.URL)
	}
	if cfg.QuestionsPath != "./mcq.json" {
		t.Errorf("QuestionsPath = %q, want ./mcq.json", cfg.QuestionsPath)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("QUIZ_SERVER_PORT", "9090")
	t.Setenv("QUIZ_STORAGE_BACKEND", "REDIS")
	t.Setenv("QUIZ_STORAGE_KEY", "quizProgress")
	t.Setenv("QUIZ_TICK_INTERVAL", "250ms")
	t.Setenv("QUIZ_QUESTIONS_PATH", "/data/mcq.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendRedis {
		t.Errorf("Storage.Backend = %q, want redis", cfg.Storage.Backend)
	}
	if cfg.Storage.Key != "quizProgress" {
		t.Errorf("Storage.Key = %q, want quizProgress", cfg.Storage.Key)
	}
	if cfg.Quiz.TickInterval != 250*time.Millisecond {
		t.Errorf("Quiz.TickInterval = %s, want 250ms", cfg.Quiz.TickInterval)
	}
	if cfg.QuestionsPath != "/data/mcq.yaml" {
		t.Errorf("QuestionsPath = %q, want /data/mcq.yaml", cfg.QuestionsPath)
	}
}

func TestLoad_InvalidTickInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUIZ_TICK_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should return error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"memory", map[string]string{"QUIZ_STORAGE_BACKEND": "memory"}, false},
		{"postgres", map[string]string{"QUIZ_STORAGE_BACKEND": "postgres"}, false},
		{"unknown backend", map[string]string{"QUIZ_STORAGE_BACKEND": "sqlite"}, true},
		{"zero tick", map[string]string{"QUIZ_TICK_INTERVAL": "0s"}, true},
		{"event log without postgres", map[string]string{"QUIZ_EVENT_LOG": "true"}, true},
		{"event log with postgres", map[string]string{"QUIZ_EVENT_LOG": "1", "QUIZ_STORAGE_BACKEND": "postgres"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNeedsDatabase(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		events  bool
		want    bool
	}{
		{"file", BackendFile, false, false},
		{"redis", BackendRedis, false, false},
		{"postgres", BackendPostgres, false, true},
		{"events", BackendPostgres, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Storage: StorageConfig{Backend: tt.backend},
				Quiz:    QuizConfig{EventLog: tt.events},
			}
			if got := cfg.NeedsDatabase(); got != tt.want {
				t.Errorf("NeedsDatabase() = %v, want %v", got, tt.want)
			}
		})
	}
}
