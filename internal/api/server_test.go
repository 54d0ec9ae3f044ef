package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

const testKey = "test-key"

type chunkResponse struct {
	Title string `json:"title"`
	Nodes []struct {
		ID       string `json:"id"`
		ParentID string `json:"parent_id"`
		Kind     string `json:"kind"`
		Depth    int    `json:"depth"`
		Title    string `json:"title"`
		Text     string `json:"text"`
	} `json:"nodes"`
	Validation *struct {
		Issues []json.RawMessage `json:"issues"`
	} `json:"validation"`
	Stats struct {
		NodeCount int `json:"node_count"`
		MaxDepth  int `json:"max_depth"`
	} `json:"stats"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		APIKey:           testKey,
		WorkerCount:      1,
		MaxQueueSize:     4,
		MaxUploadBytes:   1 << 20,
		JobTTL:           time.Hour,
		MaxTokensPerNode: 500,
		OverlapTokens:    50,
		TokenStrategy:    "approximate",
		ValidateOutput:   true,
	}
	p, err := pipeline.New(pipeline.FromConfig(cfg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, p, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, log, cfg)
}

func multipartBody(t *testing.T, field, filename, content string, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("expected ok body, got %s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid api key") {
		t.Errorf("expected json error body, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", testKey)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with X-API-Key header, got %d", rec.Code)
	}
}

func TestRequestLoggerRecordsSizes(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "12345")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader("abc"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN for a 5xx, got %v", entry["level"])
	}
	if entry["status"] != float64(502) || entry["response_bytes"] != float64(5) || entry["upload_bytes"] != float64(3) {
		t.Errorf("expected status 502, 5 response bytes and 3 upload bytes, got %v", entry)
	}
}

func TestChunk_Markdown(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", "guide.md", "# Guide\n\nHello there.\n\n## Usage\n\nRun it.\n", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chunk", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chunkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Guide" {
		t.Errorf("expected title Guide, got %q", resp.Title)
	}
	if len(resp.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(resp.Nodes))
	}
	if resp.Nodes[3].ParentID != resp.Nodes[2].ID || resp.Nodes[3].Depth != 2 {
		t.Errorf("expected Run it. under Usage at depth 2, got depth %d", resp.Nodes[3].Depth)
	}
	if resp.Validation == nil || len(resp.Validation.Issues) != 0 {
		t.Errorf("expected empty validation report, got %+v", resp.Validation)
	}
	if resp.Stats.NodeCount != 4 || resp.Stats.MaxDepth != 2 {
		t.Errorf("expected stats 4 nodes depth 2, got %+v", resp.Stats)
	}
}

func TestChunk_WindowOverride(t *testing.T) {
	s := newTestServer(t)
	text := strings.Repeat("word ", 30)
	body, ct := multipartBody(t, "file", "long.txt", text, map[string]string{"max_tokens": "10", "overlap": "0"})
	req := httptest.NewRequest(http.MethodPost, "/api/chunk", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chunkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Nodes) != 3 {
		t.Errorf("expected 3 pieces, got %d", len(resp.Nodes))
	}
}

func TestChunk_RejectsBadWindow(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", "a.txt", "text", map[string]string{"max_tokens": "10", "overlap": "10"})
	req := httptest.NewRequest(http.MethodPost, "/api/chunk", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid pipeline config") {
		t.Errorf("expected config error, got %s", rec.Body.String())
	}
}

func TestChunk_UnsupportedType(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", "slides.pptx", "x", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chunk", body)
	req.Header.Set("Content-Type", ct)

	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	payload := `{"source":"feed","events":[
		{"kind":"heading","level":1,"text":"Intro"},
		{"kind":"paragraph","text":"Body."}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chunkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Nodes) != 2 || resp.Nodes[1].ParentID != resp.Nodes[0].ID {
		t.Errorf("expected paragraph under heading, got %+v", resp.Nodes)
	}
	if resp.Title != "Intro" {
		t.Errorf("expected title Intro, got %q", resp.Title)
	}
}

func TestEvents_SchemaViolation(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"events":[{"kind":"heading"}]}`))
	req.Header.Set("Content-Type", "application/json")

	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestLifecycle(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "file", "notes.txt", "1. Introduction\nSome body text.\n\n1.1 Background\nMore text.", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+accepted.JobID+"/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 status, got %d", rec.Code)
		}
		var snap pipeline.JobSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.Status == pipeline.StatusCompleted {
			break
		}
		if snap.Status == pipeline.StatusFailed {
			t.Fatalf("job failed: %v", snap.Progress.Errors)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for job")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+accepted.JobID+"/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 result, got %d", rec.Code)
	}
	var resp chunkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Nodes) != 4 || resp.Nodes[3].Depth != 2 {
		t.Errorf("expected 4 nodes ending at depth 2, got %+v", resp.Nodes)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/ingest/"+accepted.JobID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+accepted.JobID+"/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestIngestResult_UnknownJob(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/nope/result", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["queue_depth"]; !ok {
		t.Error("expected queue_depth in stats")
	}
	chunking, _ := body["chunking"].(map[string]any)
	if chunking["token_counter"] != "approximate" {
		t.Errorf("expected approximate counter, got %v", chunking["token_counter"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd.md": "passwd.md",
		"report.pdf":          "report.pdf",
		"":                    "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
