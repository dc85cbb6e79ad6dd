package search

import (
	"github.com/poiesic/recall/answer"
	"github.com/poiesic/recall/core"
)

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during a question.
type Monitor interface {
	Start(question string)
	AfterEmbedding(dimension int)
	AfterQuery(matches []*core.ScoredRecord)
	AfterGenerate(text string, strategy answer.Strategy)
	Finish(result *core.SearchResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) AfterEmbedding(_ int)                      {}
func (n *noopMonitor) AfterQuery(_ []*core.ScoredRecord)         {}
func (n *noopMonitor) AfterGenerate(_ string, _ answer.Strategy) {}
func (n *noopMonitor) Finish(_ *core.SearchResult)               {}
