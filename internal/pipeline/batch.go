package pipeline

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docchunk/internal/parser"
)

// FileResult pairs an input path with its outcome. Exactly one of Result
// and Err is set.
type FileResult struct {
	Path   string
	Result *Result
	Err    error
}

// RunFiles processes each file with its own pipeline run, at most parallel
// at a time. A failing file does not stop the others. Cancellation is
// checked between documents only; a run that has started completes.
func (p *Pipeline) RunFiles(ctx context.Context, paths []string, parallel int, opts parser.Options) ([]FileResult, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.runFile(path, opts)
			results[i] = FileResult{Path: path, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Pipeline) runFile(path string, opts parser.Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return p.ParseAndRun(f, path, opts)
}
