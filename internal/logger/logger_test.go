package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return out
}

func TestJSONFormatFieldNames(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "info", Format: "json", Output: &buf, ServiceName: "pokedex-test"})

	l.WithField(FieldDocumentID, "linkedin://www.linkedin.com/in/ada").Info("published")

	line := decodeLine(t, &buf)
	for _, key := range []string{"timestamp", "level", "message", "service", FieldDocumentID} {
		if _, ok := line[key]; !ok {
			t.Errorf("missing key %q in %v", key, line)
		}
	}
	if line["service"] != "pokedex-test" {
		t.Errorf("service = %v", line["service"])
	}
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "pokedex"})

	ctx := base.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = SetJobID(ctx, "s_42")

	With(Fields{FieldDurationMs: int64(12)}).WithAttempts(3).Info(ctx, "job %s finished", "s_42")

	line := decodeLine(t, &buf)
	if line[FieldJobID] != "s_42" || line[FieldRequestID] != "req-1" {
		t.Errorf("context fields missing: %v", line)
	}
	if line[FieldAttempts] != float64(3) {
		t.Errorf("attempts = %v", line[FieldAttempts])
	}
	if line["message"] != "job s_42 finished" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Fatal("expected default logger for bare context")
	}
}

func TestRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "info", Format: "json", Output: &buf, ServiceName: "pokedex"})

	l.WithFields(Fields{
		"api_token": "abc123",
		"detail":    "request failed: Authorization: Bearer s3cr3t.value",
	}).Info("calling upstream with Bearer s3cr3t.value")

	line := decodeLine(t, &buf)
	if line["api_token"] != redacted {
		t.Errorf("api_token = %v", line["api_token"])
	}
	if line["detail"] != "request failed: Authorization: Bearer "+redacted {
		t.Errorf("detail = %v", line["detail"])
	}
	if line["message"] != "calling upstream with Bearer "+redacted {
		t.Errorf("message = %v", line["message"])
	}
}

func TestEnvParsedFallsBack(t *testing.T) {
	t.Setenv("LOG_MAX_SIZE", "not-a-number")
	t.Setenv("LOG_COMPRESS", "false")

	cfg := LoadFromEnv()
	if cfg.MaxSize != 100 {
		t.Errorf("MaxSize = %d", cfg.MaxSize)
	}
	if cfg.Compress {
		t.Error("Compress should be false")
	}
}
