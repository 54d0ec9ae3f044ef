package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

// handleChunk parses and chunks one uploaded file synchronously.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	p, err := s.pipelineFor(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

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

	opts := parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext}
	res, err := p.ParseAndRun(bytes.NewReader(data), filename, opts)
	if err != nil {
		s.log.Warn("chunk failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if title := r.FormValue("title"); title != "" {
		res.Title = title
	}
	writeResult(w, res, minConfidence(r, s.cfg.MinHeadingConfidence))
}

// handleEvents chunks a JSON primitive event stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	p, err := s.pipelineFor(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream, err := parser.DecodeEvents(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	source := stream.Source
	if source == "" {
		source = "events"
	}
	res, err := p.RunEvents(stream.Events, source)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeResult(w, res, minConfidence(r, s.cfg.MinHeadingConfidence))
}

// pipelineFor returns the shared pipeline, or a per-request one when the
// request overrides the token window. Bad overrides are rejected before
// any document work.
func (s *Server) pipelineFor(r *http.Request) (*pipeline.Pipeline, error) {
	base := s.orchestrator.Pipeline()
	maxTokens, overlap := r.FormValue("max_tokens"), r.FormValue("overlap")
	if maxTokens == "" && overlap == "" {
		return base, nil
	}

	cfg := base.Config()
	if maxTokens != "" {
		n, err := strconv.Atoi(maxTokens)
		if err != nil {
			return nil, fmt.Errorf("max_tokens: %w", err)
		}
		cfg.MaxTokensPerNode = n
	}
	if overlap != "" {
		n, err := strconv.Atoi(overlap)
		if err != nil {
			return nil, fmt.Errorf("overlap: %w", err)
		}
		cfg.OverlapTokens = n
	}
	return pipeline.New(cfg)
}

// minConfidence reads the optional min_heading_confidence parameter.
func minConfidence(r *http.Request, fallback float64) float64 {
	v := r.FormValue("min_heading_confidence")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return fallback
	}
	return f
}

func writeResult(w http.ResponseWriter, res *pipeline.Result, minConf float64) {
	if res == nil {
		jsonError(w, "no result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pipeline.FilterResult(res, minConf))
}
