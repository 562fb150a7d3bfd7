package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerRedactsSecretsAndHashesUserIDs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromCore(core).With("service", "Test")

	log.Info("hello",
		"api_key", "abc",
		"owner_user_id", "0b7b2a52-5d2b-4ac1-a3cb-36c0cb4c7dc2",
		"course_id", "c1",
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["api_key"]; got != redacted {
		t.Fatalf("api_key: want=%q got=%v", redacted, got)
	}
	owner, _ := fields["owner_user_id"].(string)
	if !strings.HasPrefix(owner, "hash:") || len(owner) != len("hash:")+12 {
		t.Fatalf("owner_user_id: want hashed value got=%q", owner)
	}
	if got := fields["course_id"]; got != "c1" {
		t.Fatalf("course_id: want=c1 got=%v", got)
	}
	if got := fields["service"]; got != "Test" {
		t.Fatalf("service: want=Test got=%v", got)
	}
}

func TestSanitizeKVsKeepsDanglingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("want dangling key preserved got=%v", out)
	}
}

func TestLooksLikeJWT(t *testing.T) {
	if !looksLikeJWT("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig") {
		t.Fatalf("expected jwt-shaped string to be detected")
	}
	if looksLikeJWT("intro-to-graphs.pdf") {
		t.Fatalf("filename should not be treated as jwt")
	}
}
