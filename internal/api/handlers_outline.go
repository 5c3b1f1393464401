package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/outliner"
	"github.com/dgallion1/docoutline/internal/parser"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

type outlineResponse struct {
	Document    string          `json:"document"`
	ContentHash string          `json:"content_hash,omitempty"`
	Blocks      int             `json:"blocks"`
	DurationMs  int64           `json:"duration_ms"`
	Result      outliner.Result `json:"result"`
}

// handleOutline parses an uploaded document and returns its outline.
func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

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

	worker := s.orchestrator.Worker()
	doc, err := worker.Parse(filename, bytes.NewReader(data))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.respondOutline(w, r, doc, pipeline.ContentHashHex(data))
}

// handleOutlineBlocks outlines a block list produced by an external extractor.
func (s *Server) handleOutlineBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, ok := s.readBlocks(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "blocks"
	}
	s.respondOutline(w, r, &parser.Document{Name: name, Blocks: blocks}, "")
}

func (s *Server) respondOutline(w http.ResponseWriter, r *http.Request, doc *parser.Document, hash string) {
	worker := s.orchestrator.Worker()
	res, err := worker.Outline(r.Context(), doc)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, outliner.ErrDocumentFailed) {
			code = http.StatusUnprocessableEntity
		}
		jsonError(w, err.Error(), code)
		return
	}
	if r.URL.Query().Get("publish") == "true" {
		if err := worker.Publish(r.Context(), doc.Name, hash, res); err != nil {
			s.log.Warn("publish failed", "document", doc.Name, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, outlineResponse{
		Document:    doc.Name,
		ContentHash: hash,
		Blocks:      len(doc.Blocks),
		DurationMs:  res.Duration.Milliseconds(),
		Result:      res,
	})
}

// handleClassify returns the raw per-block labels without reconciliation.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	blocks, ok := s.readBlocks(w, r)
	if !ok {
		return
	}
	labels := s.outliner.Classify(blocks)
	if labels == nil {
		labels = []doctree.Label{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"has_model": s.models.Current() != nil,
		"labels":    labels,
	})
}

func (s *Server) readBlocks(w http.ResponseWriter, r *http.Request) ([]doctree.Block, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	blocks, err := doctree.DecodeBlocks(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return blocks, true
}

// readUpload validates and reads one uploaded file. On failure it returns the
// status code to report.
func (s *Server) readUpload(f multipart.File, header *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, http.StatusOK, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
