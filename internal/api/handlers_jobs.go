package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docoutline/internal/pipeline"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	job := pipeline.NewJob(filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var rejected []map[string]any
	var jobs []*pipeline.Job
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, map[string]any{"filename": sanitizeFilename(fh.Filename), "error": "failed to open file"})
			continue
		}
		filename, data, _, err := s.readUpload(f, fh)
		f.Close()
		if err != nil {
			rejected = append(rejected, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		jobs = append(jobs, pipeline.NewJob(filename, data))
	}

	batchID, accepted := s.orchestrator.SubmitBatch(jobs)

	results := make([]map[string]any, 0, len(jobs)+len(rejected))
	for _, j := range jobs {
		snap := j.Snapshot()
		results = append(results, map[string]any{
			"filename": snap.Filename,
			"job_id":   snap.ID,
			"status":   snap.Status,
			"poll_url": fmt.Sprintf("/api/jobs/%s", snap.ID),
		})
	}
	results = append(results, rejected...)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"accepted": accepted,
		"jobs":     results,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	jobs := s.orchestrator.GetBatch(batchID)
	if len(jobs) == 0 {
		jsonError(w, "batch not found", http.StatusNotFound)
		return
	}
	snaps := make([]pipeline.JobSnapshot, 0, len(jobs))
	done := 0
	for _, j := range jobs {
		snap := j.Snapshot()
		switch snap.Status {
		case pipeline.StatusCompleted, pipeline.StatusFailed, pipeline.StatusPartial:
			done++
		}
		snaps = append(snaps, snap)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": batchID,
		"total":    len(snaps),
		"finished": done,
		"jobs":     snaps,
	})
}
