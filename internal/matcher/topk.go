package matcher

import (
	"container/heap"
	"sort"
)

// resultHeap is a min-heap over Result keeping the k best candidates seen so
// far. Ordering is confidence descending with ascending song id as the
// documented tie-break, so the heap root is the current worst keeper.
type resultHeap []Result

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool {
	if h[i].Confidence != h[j].Confidence {
		return h[i].Confidence < h[j].Confidence
	}
	return h[i].Song.ID > h[j].Song.ID
}

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(Result)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// better reports whether a outranks b.
func better(a, b Result) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Song.ID < b.Song.ID
}

// topK selects the k highest-ranked results and returns them best-first.
// k <= 0 means unbounded.
func topK(results []Result, k int) []Result {
	if k <= 0 || k >= len(results) {
		sortResults(results)
		return results
	}
	h := make(resultHeap, 0, k)
	heap.Init(&h)
	for _, r := range results {
		if h.Len() < k {
			heap.Push(&h, r)
			continue
		}
		if better(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}
	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out
}

// sortResults orders results best-first in place.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool { return better(results[i], results[j]) })
}
