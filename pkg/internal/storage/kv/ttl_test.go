package kv

import (
	"bytes"
	"testing"
	"time"
)

// TestTTLWrapper_PassthroughWithoutTTL 测试无 TTL 时值原样透传.
func TestTTLWrapper_PassthroughWithoutTTL(t *testing.T) {
	value := []byte("plain value")

	encoded, wrapped, err := encodeWithTTL(value, 0)
	if err != nil {
		t.Fatalf("encodeWithTTL failed: %v", err)
	}

	if wrapped {
		t.Error("Value without TTL should not be wrapped")
	}

	if !bytes.Equal(encoded, value) {
		t.Errorf("Expected passthrough, got %s", encoded)
	}

	decoded, expired, wasWrapped, err := decodeWithTTL(encoded, time.Now())
	if err != nil {
		t.Fatalf("decodeWithTTL failed: %v", err)
	}

	if wasWrapped || expired {
		t.Error("Plain value should decode as unwrapped and unexpired")
	}

	if !bytes.Equal(decoded, value) {
		t.Errorf("Round trip mismatch: %s vs %s", decoded, value)
	}
}

// TestTTLWrapper_RoundTrip 测试带 TTL 的包装在有效期内能还原原值.
func TestTTLWrapper_RoundTrip(t *testing.T) {
	value := []byte(`{"id":"rec-1"}`)

	encoded, wrapped, err := encodeWithTTL(value, time.Hour)
	if err != nil {
		t.Fatalf("encodeWithTTL failed: %v", err)
	}

	if !wrapped {
		t.Fatal("Value with TTL should be wrapped")
	}

	if bytes.Equal(encoded, value) {
		t.Error("Wrapped value should differ from original")
	}

	decoded, expired, wasWrapped, err := decodeWithTTL(encoded, time.Now())
	if err != nil {
		t.Fatalf("decodeWithTTL failed: %v", err)
	}

	if !wasWrapped {
		t.Error("Expected wrapper to be detected")
	}

	if expired {
		t.Error("Value should not be expired within its TTL")
	}

	if !bytes.Equal(decoded, value) {
		t.Errorf("Round trip mismatch: %s vs %s", decoded, value)
	}
}

// TestTTLWrapper_Expiry 测试过了截止时间后判定为过期.
func TestTTLWrapper_Expiry(t *testing.T) {
	encoded, _, err := encodeWithTTL([]byte("short lived"), 5*time.Second)
	if err != nil {
		t.Fatalf("encodeWithTTL failed: %v", err)
	}

	_, expired, _, err := decodeWithTTL(encoded, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("decodeWithTTL failed: %v", err)
	}

	if !expired {
		t.Error("Value should be expired past its deadline")
	}
}

// TestTTLWrapper_CorruptWrapper 测试损坏的包装返回错误.
func TestTTLWrapper_CorruptWrapper(t *testing.T) {
	corrupt := []byte(ttlMagic + "not json at all")

	_, _, wasWrapped, err := decodeWithTTL(corrupt, time.Now())
	if err == nil {
		t.Fatal("Expected error for corrupt wrapper")
	}

	if !wasWrapped {
		t.Error("Corrupt wrapper should still be detected as wrapped")
	}
}
