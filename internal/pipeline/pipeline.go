package pipeline

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/tokens"
	"github.com/dgallion1/docchunk/internal/validate"
)

// ErrInvalidConfig is returned by New before any document is touched.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config is the option set the core recognizes.
type Config struct {
	MaxTokensPerNode int
	OverlapTokens    int
	Strategy         tokens.Strategy
	Encoding         string
	Counter          tokens.Counter // Required when Strategy is custom.
	Validate         bool

	// MinHeadingConfidence is carried for callers of FilterHeadings. Run
	// does not apply it.
	MinHeadingConfidence float64
}

// DefaultConfig returns the defaults: a 500 token ceiling with 50 tokens
// of overlap, approximate counting and validation on.
func DefaultConfig() Config {
	return Config{
		MaxTokensPerNode: 500,
		OverlapTokens:    50,
		Strategy:         tokens.StrategyApproximate,
		Encoding:         tokens.DefaultEncoding,
		Validate:         true,
	}
}

// FromConfig maps the environment configuration onto pipeline options.
func FromConfig(c config.Config) Config {
	return Config{
		MaxTokensPerNode:     c.MaxTokensPerNode,
		OverlapTokens:        c.OverlapTokens,
		Strategy:             tokens.Strategy(c.TokenStrategy),
		Encoding:             c.TokenEncoding,
		Validate:             c.ValidateOutput,
		MinHeadingConfidence: c.MinHeadingConfidence,
	}
}

// Pipeline runs the core transformations over one document at a time. It
// holds no per-document state, so one Pipeline may serve many goroutines.
type Pipeline struct {
	cfg      Config
	counter  tokens.Counter
	splitter *chunker.Splitter
}

// New validates cfg and builds the token counter and splitter.
func New(cfg Config) (*Pipeline, error) {
	if err := tokens.CheckWindow(cfg.MaxTokensPerNode, cfg.OverlapTokens); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.MinHeadingConfidence < 0 || cfg.MinHeadingConfidence > 1 {
		return nil, fmt.Errorf("%w: min heading confidence %v outside [0,1]", ErrInvalidConfig, cfg.MinHeadingConfidence)
	}

	var counter tokens.Counter
	if cfg.Strategy == tokens.StrategyCustom {
		if cfg.Counter == nil {
			return nil, fmt.Errorf("%w: custom strategy requires a counter", ErrInvalidConfig)
		}
		counter = cfg.Counter
	} else {
		c, err := tokens.New(cfg.Strategy, cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		counter = c
	}

	splitter, err := chunker.NewSplitter(counter, chunker.Config{
		MaxTokensPerNode: cfg.MaxTokensPerNode,
		OverlapTokens:    cfg.OverlapTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Pipeline{cfg: cfg, counter: counter, splitter: splitter}, nil
}

// Config returns the options the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Counter returns the token counter in use.
func (p *Pipeline) Counter() tokens.Counter { return p.counter }

// Result is the output contract: ordered nodes, the advisory report when
// validation is on, and aggregate statistics.
type Result struct {
	Title  string           `json:"title,omitempty"`
	Format string           `json:"format,omitempty"`
	Source string           `json:"source,omitempty"`
	Nodes  []*doctree.Node  `json:"nodes"`
	Report *validate.Report `json:"validation,omitempty"`
	Stats  Stats            `json:"stats"`
}

// Run measures, links, splits and validates a node collection. Nodes are
// taken in sequence order; the input slice itself is not reordered.
func (p *Pipeline) Run(nodes []*doctree.Node) *Result {
	res := p.Chunk(nodes)
	if p.cfg.Validate {
		p.Check(res)
	}
	return res
}

// Chunk is Run without validation.
func (p *Pipeline) Chunk(nodes []*doctree.Node) *Result {
	start := time.Now()

	ordered := slices.Clone(nodes)
	slices.SortStableFunc(ordered, func(a, b *doctree.Node) int { return a.Sequence - b.Sequence })

	doctree.Enrich(ordered, p.counter)
	doctree.BuildHierarchy(ordered)
	split := p.splitter.Apply(ordered)

	res := &Result{Nodes: split.Nodes}
	res.Stats = ComputeStats(split.Nodes)
	res.Stats.SplitCount = split.Split
	res.Stats.PiecesProduced = split.Produced
	res.Stats.Counter = p.counter.Name()
	res.Stats.setElapsed(time.Since(start))
	return res
}

// Check attaches a validation report to res. Its time is added to the
// elapsed figure.
func (p *Pipeline) Check(res *Result) {
	start := time.Now()
	report := validate.Validate(res.Nodes)
	res.Report = &report
	res.Stats.setElapsed(res.Stats.Elapsed + time.Since(start))
}

// RunDocument runs the pipeline over a parsed document.
func (p *Pipeline) RunDocument(doc *parser.Document) *Result {
	res := p.Run(doc.Nodes)
	res.withDocument(doc)
	return res
}

// ChunkDocument runs the pipeline over a parsed document without
// validation.
func (p *Pipeline) ChunkDocument(doc *parser.Document) *Result {
	res := p.Chunk(doc.Nodes)
	res.withDocument(doc)
	return res
}

func (r *Result) withDocument(doc *parser.Document) {
	r.Title = doc.Title
	r.Format = doc.Format
	r.Source = doc.Source
}

// RunEvents assembles a primitive event stream and runs the pipeline.
func (p *Pipeline) RunEvents(events []parser.Event, source string) (*Result, error) {
	nodes, err := parser.Assemble(events, source, "events")
	if err != nil {
		return nil, fmt.Errorf("assemble events: %w", err)
	}
	return p.RunDocument(&parser.Document{
		Title:  parser.FirstHeadingOr(nodes, source),
		Format: "events",
		Source: source,
		Nodes:  nodes,
	}), nil
}

// ParseAndRun picks an adapter by file extension, parses r and runs the
// pipeline over the result.
func (p *Pipeline) ParseAndRun(r io.Reader, filename string, opts parser.Options) (*Result, error) {
	ps, err := parser.ForFileWith(filename, opts)
	if err != nil {
		return nil, err
	}
	doc, err := ps.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return p.RunDocument(doc), nil
}
