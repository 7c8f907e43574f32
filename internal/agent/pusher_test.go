package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestHTTPPusherPush(t *testing.T) {
	frames := bytes.Repeat([]byte{0xab}, 1024)

	var gotReq *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		var err error
		gotBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newHTTPPusher(srv.Client(), srv.URL, "test-key")
	batch := PushBatch{
		Salt:      0xabcd,
		FromFrame: 1,
		ToFrame:   3,
		PageSize:  4096,
		Frames:    frames,
	}
	if err := p.Push(context.Background(), batch); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	if gotReq.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotReq.Method)
	}
	if gotReq.URL.Path != framesEndpoint {
		t.Fatalf("expected path %s, got %s", framesEndpoint, gotReq.URL.Path)
	}
	if auth := gotReq.Header.Get("Authorization"); auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %s", auth)
	}

	var manifest PushBatch
	if err := json.Unmarshal([]byte(gotReq.Header.Get("X-WAL-Manifest")), &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if manifest.FromFrame != 1 || manifest.ToFrame != 3 || manifest.Salt != 0xabcd {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}

	zr, err := gzip.NewReader(bytes.NewReader(gotBody))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, frames) {
		t.Fatalf("expected %d frame bytes, got %d", len(frames), len(decompressed))
	}
}

func TestHTTPPusherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := newHTTPPusher(srv.Client(), srv.URL, "bad-key")
	err := p.Push(context.Background(), PushBatch{Frames: []byte{1}})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
