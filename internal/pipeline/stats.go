package pipeline

import (
	"time"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// Stats aggregates one pipeline run.
type Stats struct {
	NodeCount      int                        `json:"node_count"`
	CountsByKind   map[string]int             `json:"counts_by_kind"`
	CountsByCap    map[doctree.Capability]int `json:"counts_by_capability"`
	MaxDepth       int                        `json:"max_depth"`
	TotalTokens    int                        `json:"total_tokens"`
	MinTokens      int                        `json:"min_tokens"`
	MaxTokens      int                        `json:"max_tokens"`
	AvgTokens      float64                    `json:"avg_tokens"`
	SplitCount     int                        `json:"split_count"`
	PiecesProduced int                        `json:"pieces_produced"`
	Counter        string                     `json:"token_counter,omitempty"`
	Elapsed        time.Duration              `json:"-"`
	ElapsedMs      float64                    `json:"elapsed_ms"`
}

func (s *Stats) setElapsed(d time.Duration) {
	s.Elapsed = d
	s.ElapsedMs = float64(d.Microseconds()) / 1000
}

// ComputeStats aggregates counts, depth and token figures over measured
// nodes. Split counts and elapsed time are filled in by Run.
func ComputeStats(nodes []*doctree.Node) Stats {
	s := Stats{
		NodeCount:    len(nodes),
		CountsByKind: make(map[string]int),
		CountsByCap:  make(map[doctree.Capability]int),
	}
	for i, n := range nodes {
		s.CountsByKind[n.Kind]++
		s.CountsByCap[n.Capability()]++
		if d := n.Depth(); d > s.MaxDepth {
			s.MaxDepth = d
		}
		tc := n.Quality().TokenCount
		s.TotalTokens += tc
		if i == 0 || tc < s.MinTokens {
			s.MinTokens = tc
		}
		if tc > s.MaxTokens {
			s.MaxTokens = tc
		}
	}
	if len(nodes) > 0 {
		s.AvgTokens = float64(s.TotalTokens) / float64(len(nodes))
	}
	return s
}
