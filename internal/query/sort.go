package query

import "sort"

// sortCrossReferenceMap orders edges lexicographically by target reference
// then field.
func sortCrossReferenceMap(edges []CrossReferenceEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].TargetReference != edges[j].TargetReference {
			return edges[i].TargetReference < edges[j].TargetReference
		}
		return edges[i].Field < edges[j].Field
	})
}

// sortPairs orders bidirectional pairs lexicographically for stable output.
func sortPairs(pairs [][2]string) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
}

// sortLinkedFlows orders a closure's flow entries by reference, giving
// get_all_linked_flows a deterministic flow ordering independent of BFS
// discovery order.
func sortLinkedFlows(flows []LinkedFlowEntry) {
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Flux.Reference < flows[j].Flux.Reference
	})
}
