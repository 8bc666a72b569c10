package analysis

import "issueboard/internal/domain"

// SimilarityThreshold is the inclusive Jaccard score at which a ticket
// joins an existing cluster.
const SimilarityThreshold = 0.45

// Cluster is a group of tickets that matched the same reference text.
type Cluster struct {
	// ReferenceText is the issue text of the first member and never changes.
	ReferenceText string
	Members       []domain.NormalizedTicket

	platformOrder []string
	platformCount map[string]int
	refTokens     map[string]struct{}
}

func newCluster(first domain.NormalizedTicket) *Cluster {
	c := &Cluster{
		ReferenceText: first.IssueText,
		platformCount: make(map[string]int),
		refTokens:     Tokenize(first.IssueText),
	}
	c.add(first)
	return c
}

func (c *Cluster) add(t domain.NormalizedTicket) {
	c.Members = append(c.Members, t)
	if _, seen := c.platformCount[t.Platform]; !seen {
		c.platformOrder = append(c.platformOrder, t.Platform)
	}
	c.platformCount[t.Platform]++
}

// PlatformCounts returns the per-platform member counts in first-seen order.
func (c *Cluster) PlatformCounts() []PlatformCount {
	out := make([]PlatformCount, 0, len(c.platformOrder))
	for _, name := range c.platformOrder {
		out = append(out, PlatformCount{Name: name, Count: c.platformCount[name]})
	}
	return out
}

type PlatformCount struct {
	Name  string
	Count int
}

// ClusterTickets assigns each ticket, in input order, to the first cluster
// whose reference text scores at least SimilarityThreshold, opening a new
// cluster when none does. The result depends on input order.
func ClusterTickets(tickets []domain.NormalizedTicket) []*Cluster {
	var clusters []*Cluster
	for _, t := range tickets {
		tokens := Tokenize(t.IssueText)
		var home *Cluster
		for _, c := range clusters {
			if jaccard(tokens, c.refTokens) >= SimilarityThreshold {
				home = c
				break
			}
		}
		if home == nil {
			clusters = append(clusters, newCluster(t))
			continue
		}
		home.add(t)
	}
	return clusters
}
