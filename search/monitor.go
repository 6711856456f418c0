package search

import (
	"github.com/poiesic/lemmafind/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, mode core.RankingSource)
	AfterNormalization(variants []core.QueryVariant)
	AfterLexicalScoring(matched int)
	AfterSemanticScoring(scored int)
	Degraded(warning Warning)
	Finish(resp *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.RankingSource)     {}
func (n *noopMonitor) AfterNormalization(_ []core.QueryVariant) {}
func (n *noopMonitor) AfterLexicalScoring(_ int)                {}
func (n *noopMonitor) AfterSemanticScoring(_ int)               {}
func (n *noopMonitor) Degraded(_ Warning)                       {}
func (n *noopMonitor) Finish(_ *Response)                       {}
