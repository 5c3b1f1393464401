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

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
	"github.com/dgallion1/docoutline/internal/outliner"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/postprocess"
)

const testKey = "test-key"

type fixedSource struct{ b *classifier.Bundle }

func (f fixedSource) Current() *classifier.Bundle { return f.b }

// largeTextBundle labels blocks above 15pt as H1.
func largeTextBundle() *classifier.Bundle {
	mean := make([]float64, features.Dim)
	scale := make([]float64, features.Dim)
	for i := range scale {
		scale[i] = 1
	}
	weights := [][]float64{make([]float64, features.Dim), make([]float64, features.Dim)}
	weights[0][features.IdxFontSize] = 1
	classes := []doctree.Label{doctree.LabelH1, doctree.LabelNone}
	return &classifier.Bundle{
		Manifest: classifier.Manifest{Version: classifier.BundleVersion, Features: features.Names, Classes: classes},
		Scaler:   &classifier.Scaler{Mean: mean, Scale: scale},
		Encoder:  &classifier.LabelEncoder{Classes: classes},
		Model:    &classifier.Softmax{Weights: weights, Bias: []float64{-15, 0}},
	}
}

func newTestServer(t *testing.T, bundle *classifier.Bundle) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:          testKey,
		WorkerCount:     1,
		MaxQueueSize:    8,
		MaxUploadBytes:  1 << 20,
		JobTTL:          time.Hour,
		DocumentTimeout: time.Minute,
	}
	src := fixedSource{bundle}
	o := outliner.New(src, postprocess.New(log, postprocess.DefaultOptions()), log)
	orch := pipeline.NewOrchestrator(cfg, o, nil, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, o, src, log, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

const blocksJSON = `[
 {"text":"Annual Report","bbox":{"x0":72,"y0":72,"x1":400,"y1":92},"font_size":20,"page_number":1,"line_position":72,"page_width":612,"page_height":792},
 {"text":"This report covers the year.","bbox":{"x0":72,"y0":120,"x1":400,"y1":130},"font_size":10,"page_number":1,"line_position":120,"page_width":612,"page_height":792},
 {"text":"1.1 Revenue","bbox":{"x0":72,"y0":200,"x1":400,"y1":218},"font_size":18,"page_number":1,"line_position":200,"page_width":612,"page_height":792}
]`

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" || body["has_model"] != false {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)
	for _, auth := range []string{"", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/api/model", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("auth %q: expected 401, got %d", auth, rec.Code)
		}
	}
}

func TestOutlineBlocks(t *testing.T) {
	s := newTestServer(t, largeTextBundle())
	req := httptest.NewRequest(http.MethodPost, "/api/outline/blocks?name=report", strings.NewReader(blocksJSON))
	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp outlineResponse
	decode(t, rec, &resp)
	if resp.Document != "report" || resp.Blocks != 3 || !resp.Result.HasModel {
		t.Errorf("unexpected response: %+v", resp)
	}
	outline := resp.Result.Outline
	if outline.Title != "Annual Report" {
		t.Errorf("title = %q", outline.Title)
	}
	if len(outline.Headings) != 2 || outline.Headings[1].Level != doctree.LabelH2 {
		t.Errorf("expected numbered heading corrected to H2, got %+v", outline.Headings)
	}
}

func TestOutlineBlocks_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/outline/blocks", strings.NewReader(`[{"text":"no geometry"}]`))
	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	s := newTestServer(t, largeTextBundle())
	req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(blocksJSON))
	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		HasModel bool            `json:"has_model"`
		Labels   []doctree.Label `json:"labels"`
	}
	decode(t, rec, &body)
	want := []doctree.Label{doctree.LabelH1, doctree.LabelNone, doctree.LabelH1}
	if !body.HasModel || len(body.Labels) != len(want) {
		t.Fatalf("unexpected body: %+v", body)
	}
	for i := range want {
		if body.Labels[i] != want[i] {
			t.Errorf("label %d = %s, want %s", i, body.Labels[i], want[i])
		}
	}
}

func TestClassify_NoModel(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(blocksJSON))
	rec := do(t, s, req)
	var body struct {
		HasModel bool            `json:"has_model"`
		Labels   []doctree.Label `json:"labels"`
	}
	decode(t, rec, &body)
	if body.HasModel {
		t.Error("expected has_model=false")
	}
	for _, l := range body.Labels {
		if l != doctree.LabelNone {
			t.Errorf("expected NONE without a model, got %s", l)
		}
	}
}

func TestOutlineUpload(t *testing.T) {
	s := newTestServer(t, largeTextBundle())
	body, ct := multipartBody(t, "file", map[string]string{"guide.md": "# Guide\n\nIntro.\n\n## Setup\n\nSteps.\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp outlineResponse
	decode(t, rec, &resp)
	if resp.Document != "guide" || resp.ContentHash == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Result.Outline.Title != "Guide" {
		t.Errorf("title = %q", resp.Result.Outline.Title)
	}
}

func TestOutlineUpload_UnsupportedType(t *testing.T) {
	s := newTestServer(t, nil)
	body, ct := multipartBody(t, "file", map[string]string{"image.png": "binary"})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)
	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestJobsLifecycle(t *testing.T) {
	s := newTestServer(t, largeTextBundle())
	body, ct := multipartBody(t, "file", map[string]string{"guide.md": "# Guide\n\nIntro.\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &submitted)
	if submitted.JobID == "" || submitted.PollURL != "/api/jobs/"+submitted.JobID {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	deadline := time.Now().Add(5 * time.Second)
	var snap pipeline.JobSnapshot
	for time.Now().Before(deadline) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, submitted.PollURL, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("poll: expected 200, got %d", rec.Code)
		}
		snap = pipeline.JobSnapshot{}
		decode(t, rec, &snap)
		if snap.Status == pipeline.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("job did not complete: %+v", snap)
	}
	if snap.Outline == nil || snap.Outline.Title != "Guide" {
		t.Errorf("unexpected outline: %+v", snap.Outline)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitBatch(t *testing.T) {
	s := newTestServer(t, nil)
	body, ct := multipartBody(t, "files", map[string]string{
		"a.md":    "# A\n",
		"b.txt":   "plain",
		"bad.exe": "x",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/batch", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp struct {
		BatchID  string           `json:"batch_id"`
		Accepted int              `json:"accepted"`
		Jobs     []map[string]any `json:"jobs"`
	}
	decode(t, rec, &resp)
	if resp.Accepted != 2 || len(resp.Jobs) != 3 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/batches/"+resp.BatchID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status: expected 200, got %d", rec.Code)
	}
	var status struct {
		Total int `json:"total"`
	}
	decode(t, rec, &status)
	if status.Total != 2 {
		t.Errorf("expected 2 jobs in batch, got %d", status.Total)
	}
}

func TestModel(t *testing.T) {
	rec := do(t, newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/api/model", nil))
	var body map[string]any
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body["loaded"] != false {
		t.Errorf("expected loaded=false, got %d %v", rec.Code, body)
	}

	rec = do(t, newTestServer(t, largeTextBundle()), httptest.NewRequest(http.MethodGet, "/api/model", nil))
	body = nil
	decode(t, rec, &body)
	if body["loaded"] != true || body["manifest"] == nil {
		t.Errorf("expected manifest, got %v", body)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, httptest.NewRequest(http.MethodPost, "/api/outline/blocks", strings.NewReader(blocksJSON)))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var body struct {
		Outline pipeline.StatsSnapshot `json:"outline"`
	}
	decode(t, rec, &body)
	if body.Outline.Count != 1 {
		t.Errorf("expected one latency sample, got %+v", body.Outline)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "passwd",
		`C:\docs\file.docx`: "file.docx",
		"":                  "unnamed",
		"a..b.md":           "a_b.md",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
