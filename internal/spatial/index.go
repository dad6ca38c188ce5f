package spatial

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// Item is an indexed point with a stable key used to break distance ties
type Item struct {
	X, Y float64
	Key  string
	// Ref points back at the caller's record, e.g. a table row
	Ref int
}

type entry struct {
	item Item
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// pointTolerance gives point entries a non-degenerate bounding box
const pointTolerance = 1e-6

// Index answers nearest-neighbour queries over planar points
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex bulk loads items into an R-tree
func NewIndex(items []Item) *Index {
	objs := make([]rtreego.Spatial, len(items))
	for i, it := range items {
		objs[i] = &entry{
			item: it,
			rect: rtreego.Point{it.X, it.Y}.ToRect(pointTolerance),
		}
	}
	return &Index{
		tree: rtreego.NewTree(2, 25, 50, objs...),
		size: len(items),
	}
}

// Len returns the number of indexed points
func (ix *Index) Len() int {
	return ix.size
}

// Nearest returns the item closest to (x, y) by Euclidean distance.
// Equidistant items are resolved by lowest Key, then lowest Ref.
func (ix *Index) Nearest(x, y float64) (Item, float64, bool) {
	if ix.size == 0 {
		return Item{}, 0, false
	}

	q := rtreego.Point{x, y}
	nn, ok := ix.tree.NearestNeighbor(q).(*entry)
	if !ok || nn == nil {
		return Item{}, 0, false
	}

	best := nn.item
	bestSq := sqDist(x, y, best)

	// Gather everything inside the bounding square of the best circle to find ties
	radius := math.Sqrt(bestSq)
	found := ix.tree.SearchIntersect(q.ToRect(radius*(1+1e-9) + 2*pointTolerance))
	for _, s := range found {
		if d := sqDist(x, y, s.(*entry).item); d < bestSq {
			bestSq = d
		}
	}
	for _, s := range found {
		cand := s.(*entry).item
		if sqDist(x, y, cand) == bestSq && (sqDist(x, y, best) != bestSq || less(cand, best)) {
			best = cand
		}
	}

	return best, math.Sqrt(bestSq), true
}

func less(a, b Item) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Ref < b.Ref
}

func sqDist(x, y float64, it Item) float64 {
	dx := it.X - x
	dy := it.Y - y
	return dx*dx + dy*dy
}
