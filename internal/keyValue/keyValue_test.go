package keyValue

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	Setup(zap.NewNop().Sugar(), nil, true)
	m.Run()
}

func TestSetGetDelete(t *testing.T) {
	if err := Set("token:alice", "abc123", time.Minute); err != nil {
		t.Fatal(err)
	}

	value, err := Get("token:alice")
	if err != nil {
		t.Fatal(err)
	}
	if value != "abc123" {
		t.Fatalf("expected abc123, got %q", value)
	}

	if err := Delete("token:alice"); err != nil {
		t.Fatal(err)
	}
	value, err = Get("token:alice")
	if err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Fatalf("expected empty value after delete, got %q", value)
	}
}

func TestGetAbsentKey(t *testing.T) {
	value, err := Get("token:nobody")
	if err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Fatalf("expected empty value for absent key, got %q", value)
	}
}

func TestExpiredKeyReadsEmpty(t *testing.T) {
	if err := Set("token:bob", "xyz", -time.Second); err != nil {
		t.Fatal(err)
	}

	value, err := Get("token:bob")
	if err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Fatalf("expected expired key to read empty, got %q", value)
	}
}

func TestOverwriteRotatesValue(t *testing.T) {
	if err := Set("token:carol", "first", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := Set("token:carol", "second", time.Minute); err != nil {
		t.Fatal(err)
	}

	value, err := Get("token:carol")
	if err != nil {
		t.Fatal(err)
	}
	if value != "second" {
		t.Fatalf("expected the later value, got %q", value)
	}
}
