package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json", config: Config{Level: "info", Format: "json"}},
		{name: "text", config: Config{Level: "debug", Format: "text"}},
		{name: "defaults", config: Config{}},
		{name: "invalid level", config: Config{Level: "loud"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithBackend(ctx, "gotoml")
	ctx = WithResource(ctx, "toml")

	logger.InfoContext(ctx, "backend selected", "attempt", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}

	for key, want := range map[string]any{
		"msg":        "backend selected",
		"request_id": "req-1",
		"backend":    "gotoml",
		"resource":   "toml",
		"attempt":    float64(1),
	} {
		if entry[key] != want {
			t.Errorf("entry[%q] = %v, want %v", key, entry[key], want)
		}
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Level: "info", Format: "text", Writer: &buf})

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug message written at info level: %q", buf.String())
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() failed: %v", err)
	}
	logger.With("component", "engine").Debug("visible")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "component=engine") {
		t.Errorf("expected debug output with field, got %q", buf.String())
	}

	if err := logger.SetLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestContextGetters_Empty(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetBackend(ctx) != "" || GetResource(ctx) != "" || GetTraceID(ctx) != "" {
		t.Error("expected empty values from bare context")
	}
	if len(contextAttrs(ctx)) != 0 {
		t.Error("expected no attributes from bare context")
	}
}
