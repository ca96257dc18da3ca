package search

import "github.com/poiesic/atlas/core"

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query *core.Query)
	AfterSemanticSearch(matches []core.SimilarityMatch)
	AfterEligibility(set *core.EligibleSet)
	BackfillAttempt(k int, have int)
	AfterEntityRetrieval(entities []*core.GeoEntity)
	Finish(results []core.RankedResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.Query)                           {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.SimilarityMatch)  {}
func (n *noopMonitor) AfterEligibility(_ *core.EligibleSet)          {}
func (n *noopMonitor) BackfillAttempt(_ int, _ int)                  {}
func (n *noopMonitor) AfterEntityRetrieval(_ []*core.GeoEntity)      {}
func (n *noopMonitor) Finish(_ []core.RankedResult)                  {}
