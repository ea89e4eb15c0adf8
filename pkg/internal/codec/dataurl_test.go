package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/JSB847123/simple-business-database/pkg/internal/codec"
)

// TestDataURL_RoundTrip 测试编码再解码还原出原始字节和 MIME.
func TestDataURL_RoundTrip(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}

	s := codec.EncodeDataURL(payload, "image/jpeg")
	if !codec.IsDataURL(s) {
		t.Fatalf("Encoded value not recognized as data url: %s", s)
	}

	decoded, mime, err := codec.DecodeDataURL(s)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}

	if mime != "image/jpeg" {
		t.Errorf("Expected mime image/jpeg, got %s", mime)
	}

	if !bytes.Equal(decoded, payload) {
		t.Errorf("Round trip mismatch: %v vs %v", decoded, payload)
	}
}

// TestDataURL_EmptyPayload 测试空负载的往返.
func TestDataURL_EmptyPayload(t *testing.T) {
	s := codec.EncodeDataURL(nil, "image/png")

	decoded, mime, err := codec.DecodeDataURL(s)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}

	if mime != "image/png" {
		t.Errorf("Expected mime image/png, got %s", mime)
	}

	if len(decoded) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(decoded))
	}
}

// TestDecodeDataURL_Malformed 测试结构损坏的输入返回 ErrMalformedEncoding.
func TestDecodeDataURL_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"not a url", "hello world"},
		{"missing comma", "data:image/png;base64"},
		{"not base64 marked", "data:image/png,rawpayload"},
		{"invalid base64", "data:image/png;base64,@@@@"},
		{"empty string", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := codec.DecodeDataURL(tc.input)
			if err == nil {
				t.Fatal("Expected error for malformed input")
			}

			if !errors.Is(err, codec.ErrMalformedEncoding) {
				t.Errorf("Expected ErrMalformedEncoding, got %v", err)
			}
		})
	}
}

// TestIsDataURL 测试前缀判断.
func TestIsDataURL(t *testing.T) {
	if codec.IsDataURL("https://example.com/photo.jpg") {
		t.Error("Remote URL should not be recognized as data url")
	}

	if codec.IsDataURL("") {
		t.Error("Empty string should not be recognized as data url")
	}

	if !codec.IsDataURL("data:image/jpeg;base64,AAAA") {
		t.Error("Inline image should be recognized as data url")
	}
}
