// Package analysis holds the read-side computations over a coding snapshot.
// Every function here is pure: the same snapshot always yields the same result.
package analysis

import "github.com/MarcoPoloResearchLab/nodeflow/internal/coding"

// Counts is a word and segment tally.
type Counts struct {
	Words    int `json:"word_count"`
	Segments int `json:"segment_count"`
}

func (c Counts) plus(other Counts) Counts {
	return Counts{Words: c.Words + other.Words, Segments: c.Segments + other.Segments}
}

// NodeStatistics carries the tallies of one node. Aggregated includes every descendant.
type NodeStatistics struct {
	NodeID     string  `json:"node_id"`
	ParentID   *string `json:"parent_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Direct     Counts  `json:"direct"`
	Aggregated Counts  `json:"aggregated"`
	Percentage float64 `json:"percentage"`
}

// Statistics is the coverage of a scope. Nodes holds an entry for every node of the project.
type Statistics struct {
	Scope           coding.Scope              `json:"-"`
	Generation      int64                     `json:"generation"`
	TotalWords      int                       `json:"total_words"`
	CodedWords      int                       `json:"coded_words"`
	CodedSegments   int                       `json:"coded_segments"`
	CodedPercentage float64                   `json:"coded_percentage"`
	Nodes           map[string]NodeStatistics `json:"nodes"`
}

// Aggregate computes direct tallies per node, then sums them bottom-up in one post-order pass.
// Percentages are relative to all words in scope, tagged or not.
func Aggregate(snapshot coding.Snapshot) Statistics {
	forest := snapshot.Forest()
	direct := make(map[string]Counts, forest.Len())
	for _, segment := range snapshot.Segments {
		if _, ok := forest.Node(segment.NodeID); !ok {
			continue
		}
		counts := direct[segment.NodeID]
		counts.Words += segment.WordCount()
		counts.Segments++
		direct[segment.NodeID] = counts
	}

	stats := Statistics{
		Scope:      snapshot.Scope,
		Generation: snapshot.Generation,
		TotalWords: snapshot.TotalWords,
		Nodes:      make(map[string]NodeStatistics, forest.Len()),
	}
	aggregated := make(map[string]Counts, forest.Len())
	for _, nodeID := range forest.PostOrder() {
		total := direct[nodeID]
		for _, childID := range forest.Children(nodeID) {
			total = total.plus(aggregated[childID])
		}
		aggregated[nodeID] = total

		node, _ := forest.Node(nodeID)
		stats.Nodes[nodeID] = NodeStatistics{
			NodeID:     nodeID,
			ParentID:   node.ParentID,
			Name:       node.Name,
			Color:      node.Color,
			Direct:     direct[nodeID],
			Aggregated: total,
			Percentage: percentage(total.Words, snapshot.TotalWords),
		}
		stats.CodedWords += direct[nodeID].Words
		stats.CodedSegments += direct[nodeID].Segments
	}
	stats.CodedPercentage = percentage(stats.CodedWords, snapshot.TotalWords)
	return stats
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
