package handeye

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const twoPoses = "1 0 0 0 0 0 0\n2 10 5 -3 30 10 -5\n"

func TestFetchPoses_Success(t *testing.T) {
	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(twoPoses))
	}))
	defer server.Close()

	poses, err := FetchPoses(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchPoses() error = %v", err)
	}
	if len(poses) != 2 {
		t.Fatalf("got %d poses, want 2", len(poses))
	}
	if poses[1].T.X != 10 || poses[1].T.Y != 5 || poses[1].T.Z != -3 {
		t.Errorf("second pose translation = %+v", poses[1].T)
	}
	if accept != "text/plain" {
		t.Errorf("Accept header = %q, want text/plain", accept)
	}
}

func TestFetchPoses_EmptyURL(t *testing.T) {
	_, err := FetchPoses(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "URL is empty") {
		t.Errorf("expected empty URL error, got %v", err)
	}
}

func TestFetchPoses_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(twoPoses))
	}))
	defer server.Close()

	poses, err := FetchPoses(context.Background(), server.URL,
		WithMaxRetries(3), WithBaseBackoff(time.Millisecond))
	if err != nil {
		t.Fatalf("FetchPoses() error = %v", err)
	}
	if len(poses) != 2 {
		t.Errorf("got %d poses, want 2", len(poses))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestFetchPoses_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FetchPoses(context.Background(), server.URL,
		WithMaxRetries(2), WithBaseBackoff(time.Millisecond))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error %q should mention the status", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestFetchPoses_ParseErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("1 2 3\n"))
	}))
	defer server.Close()

	_, err := FetchPoses(context.Background(), server.URL,
		WithMaxRetries(3), WithBaseBackoff(time.Millisecond))
	if err == nil || !strings.Contains(err.Error(), "expected 7 columns") {
		t.Errorf("expected parse error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
}

func TestFetchPoses_CancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := FetchPoses(ctx, server.URL, WithMaxRetries(5), WithBaseBackoff(time.Second),
		WithHTTPClient(server.Client()))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadPoseSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoPoses))
	}))
	defer server.Close()

	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(fileA, []byte(twoPoses), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.WriteString(twoPoses)
	buf.WriteString("3 1 1 1 0 0 0\n")
	if err := os.WriteFile(fileB, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		in      InputsConfig
		want    int
		wantErr string
	}{
		{name: "urls", in: InputsConfig{URLA: server.URL, URLB: server.URL}, want: 2},
		{name: "files win over urls", in: InputsConfig{FileA: fileA, FileB: fileA, URLA: "http://unused"}, want: 2},
		{name: "file length mismatch", in: InputsConfig{FileA: fileA, FileB: fileB}, wantErr: "differ in length"},
		{name: "missing url b", in: InputsConfig{URLA: server.URL}, wantErr: "URL is empty"},
		{name: "nothing configured", in: InputsConfig{}, wantErr: "no pose input configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, err := LoadPoseSource(context.Background(), tt.in, WithBaseBackoff(time.Millisecond))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadPoseSource() error = %v", err)
			}
			if len(a) != tt.want || len(b) != tt.want {
				t.Errorf("got %d/%d poses, want %d", len(a), len(b), tt.want)
			}
		})
	}
}
