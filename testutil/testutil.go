// Package testutil provides shared test utilities for the BAR file syncer
// tests: temp BAR archives and a fake App Connect server.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
)

// WriteBARFile writes a minimal valid BAR (zip) archive to dir/name and
// returns its path.
func WriteBARFile(t *testing.T, dir, name string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("META-INF/broker.xml")
	if err != nil {
		t.Fatalf("failed to create archive entry: %v", err)
	}
	if _, err := w.Write([]byte(`<Broker/>`)); err != nil {
		t.Fatalf("failed to write archive entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write bar file: %v", err)
	}
	return path
}

// WriteRawFile writes arbitrary bytes to dir/name and returns its path.
func WriteRawFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// AppConnect is a fake of the App Connect token and BAR upload endpoints.
// Tokens and upload statuses are handed out in order; the last entry
// repeats once the script is exhausted.
type AppConnect struct {
	Server *httptest.Server

	// TokenStatus, when non-zero, is returned by the token endpoint
	// instead of issuing a token.
	TokenStatus int

	mu             sync.Mutex
	tokens         []string
	uploadStatuses []int
	tokenCalls     int
	uploadCalls    int
	lastAuth       string
	lastPath       string
	lastLength     int64
	tokenHeaders   http.Header
}

// NewAppConnect starts a fake server scripted with the given tokens and
// upload statuses. The server is closed via t.Cleanup.
func NewAppConnect(t *testing.T, tokens []string, uploadStatuses []int) *AppConnect {
	t.Helper()
	a := &AppConnect{tokens: tokens, uploadStatuses: uploadStatuses}
	a.Server = httptest.NewServer(http.HandlerFunc(a.handle))
	t.Cleanup(a.Server.Close)
	return a
}

func (a *AppConnect) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tokens":
		a.mu.Lock()
		a.tokenCalls++
		a.tokenHeaders = r.Header.Clone()
		tok := scripted(a.tokens, a.tokenCalls)
		status := a.TokenStatus
		a.mu.Unlock()

		if status != 0 {
			http.Error(w, "token denied", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/v1/bar-files/"):
		a.mu.Lock()
		a.uploadCalls++
		status := scripted(a.uploadStatuses, a.uploadCalls)
		a.lastAuth = r.Header.Get("Authorization")
		a.lastPath = r.URL.Path
		a.lastLength = r.ContentLength
		a.mu.Unlock()

		if status < 200 || status >= 300 {
			http.Error(w, "upload denied", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"success"}`))

	default:
		http.NotFound(w, r)
	}
}

func scripted[T any](script []T, call int) T {
	if call <= len(script) {
		return script[call-1]
	}
	return script[len(script)-1]
}

// TokenCalls returns how many token acquisitions the server has seen.
func (a *AppConnect) TokenCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenCalls
}

// UploadCalls returns how many uploads the server has seen.
func (a *AppConnect) UploadCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploadCalls
}

// LastUpload reports the Authorization header, URL path and declared length
// of the most recent upload.
func (a *AppConnect) LastUpload() (auth, path string, length int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAuth, a.lastPath, a.lastLength
}

// TokenHeaders returns the headers of the most recent token request.
func (a *AppConnect) TokenHeaders() http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenHeaders
}
