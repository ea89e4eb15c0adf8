package syncapi_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/JSB847123/simple-business-database/pkg/internal/syncapi"
)

// TestClient_RequestUploadURL_CachesGrant 测试授权凭证按照片 id 缓存复用.
func TestClient_RequestUploadURL_CachesGrant(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/photos/upload-url" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req struct {
			PhotoID string `json:"photoId"`
			Name    string `json:"name"`
		}

		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Errorf("bad grant request body: %v", err)
		}

		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"uploadUrl":   "https://bucket.example.com/put/" + req.PhotoID,
				"downloadUrl": "https://bucket.example.com/get/" + req.PhotoID,
				"fileKey":     "photos/" + req.PhotoID + ".jpg",
				"expiresIn":   900,
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	ctx := context.Background()

	first, err := c.RequestUploadURL(ctx, "photo-1", "front.jpg")
	if err != nil {
		t.Fatalf("RequestUploadURL: %v", err)
	}

	if first.FileKey != "photos/photo-1.jpg" || first.UploadURL == "" {
		t.Errorf("grant fields mismatch: %+v", first)
	}

	second, err := c.RequestUploadURL(ctx, "photo-1", "front.jpg")
	if err != nil {
		t.Fatalf("cached RequestUploadURL: %v", err)
	}

	if second.UploadURL != first.UploadURL {
		t.Errorf("cached grant differs: %q vs %q", second.UploadURL, first.UploadURL)
	}

	if hits.Load() != 1 {
		t.Errorf("expected 1 server hit for same photo, got %d", hits.Load())
	}

	if _, err := c.RequestUploadURL(ctx, "photo-2", "back.jpg"); err != nil {
		t.Fatalf("RequestUploadURL photo-2: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("expected 2 server hits after new photo, got %d", hits.Load())
	}
}

// TestClient_UploadPhoto 测试按授权地址直传照片字节.
func TestClient_UploadPhoto(t *testing.T) {
	var (
		gotBody []byte
		gotType string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}

		gotBody, _ = io.ReadAll(r.Body)
		gotType = r.Header.Get("Content-Type")

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")

	data := []byte("jpeg-bytes")
	grant := &syncapi.UploadGrant{UploadURL: srv.URL + "/put/photo-1", FileKey: "photos/photo-1.jpg"}

	if err := c.UploadPhoto(context.Background(), grant, data, "image/webp"); err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}

	if !bytes.Equal(gotBody, data) {
		t.Errorf("uploaded body mismatch: %q", gotBody)
	}

	if gotType != "image/webp" {
		t.Errorf("content type = %q, want image/webp", gotType)
	}
}

// TestClient_UploadPhoto_Rejected 测试对象存储拒绝时返回错误.
func TestClient_UploadPhoto_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	grant := &syncapi.UploadGrant{UploadURL: srv.URL + "/put/photo-1"}

	if err := c.UploadPhoto(context.Background(), grant, []byte("x"), ""); err == nil {
		t.Fatal("expected rejection error")
	}
}

// TestClient_UploadPhoto_MissingGrant 测试空凭证直接报错.
func TestClient_UploadPhoto_MissingGrant(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", "")

	if err := c.UploadPhoto(context.Background(), nil, []byte("x"), ""); err == nil {
		t.Fatal("expected error for nil grant")
	}

	if err := c.UploadPhoto(context.Background(), &syncapi.UploadGrant{}, []byte("x"), ""); err == nil {
		t.Fatal("expected error for empty upload url")
	}
}
