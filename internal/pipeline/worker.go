package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docchunk/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	pipeline *Pipeline
	opts     parser.Options
	latency  *LatencyStats
	log      *slog.Logger
}

func NewWorker(p *Pipeline, opts parser.Options, latency *LatencyStats, log *slog.Logger) *Worker {
	return &Worker{
		pipeline: p,
		opts:     opts,
		latency:  latency,
		log:      log,
	}
}

// Process runs parse, chunk and validate for a job. The context is only
// consulted before work starts.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "cancelled")
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFileWith(job.Filename, w.opts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	log.Info("parsed document", "format", doc.Format, "nodes", len(doc.Nodes))

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	res := w.pipeline.ChunkDocument(doc)

	// Phase 3: Validate
	if w.pipeline.Config().Validate {
		job.SetStatus(StatusValidating, "validating")
		w.pipeline.Check(res)
	}
	job.SetResult(res)

	if w.latency != nil {
		w.latency.Record(time.Since(start))
	}

	attrs := []any{
		"nodes", res.Stats.NodeCount,
		"split", res.Stats.SplitCount,
		"max_depth", res.Stats.MaxDepth,
		"total_tokens", res.Stats.TotalTokens,
		"elapsed_ms", res.Stats.ElapsedMs,
	}
	if res.Report != nil {
		attrs = append(attrs, "issues", len(res.Report.Issues))
		if res.Report.HasErrors() {
			log.Warn("validation reported errors", "errors", res.Report.CountBySeverity())
		}
	}
	log.Info("chunking complete", attrs...)

	if len(res.Nodes) == 0 {
		job.AddError("no extractable content")
	}
	job.SetStatus(StatusCompleted, "done")
}
