package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	kv := sanitizeKVs([]interface{}{
		"project_id", "p1",
		"authorization", "Bearer abc",
		"user_id", "user-123",
		"upstream", map[string]interface{}{"access_key": "k", "status": 502},
		"dangling",
	})
	if len(kv) != 9 {
		t.Fatalf("len: want 9 got %d", len(kv))
	}
	if kv[1] != "p1" {
		t.Fatalf("project_id should pass through, got %v", kv[1])
	}
	if kv[3] != "[REDACTED]" {
		t.Fatalf("authorization should be redacted, got %v", kv[3])
	}
	if s, _ := kv[5].(string); !strings.HasPrefix(s, "hash:") || strings.Contains(s, "user-123") {
		t.Fatalf("user_id should be hashed, got %v", kv[5])
	}
	nested, ok := kv[7].(map[string]interface{})
	if !ok || nested["access_key"] != "[REDACTED]" || nested["status"] != 502 {
		t.Fatalf("nested map not sanitized: %#v", kv[7])
	}
	if kv[8] != "dangling" {
		t.Fatalf("dangling key lost: %v", kv[8])
	}
}

func TestLooksLikeJWT(t *testing.T) {
	if !looksLikeJWT("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1c2VyLTEifQ.sig") {
		t.Fatalf("expected jwt-shaped string to match")
	}
	if looksLikeJWT("https://example.com/a.b.c") {
		t.Fatalf("short segments should not match")
	}
}

func TestNewTestModeIsQuiet(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("service", "X").Info("hello", "k", "v")
	log.Sync()
}
