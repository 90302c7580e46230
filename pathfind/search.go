package pathfind

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vainnor/airspace-engine/airspace"
)

var ErrNoPath = errors.New("no path between waypoints")

// Distances closer than this are treated as equal so that the tie-break
// on waypoint count and name order applies to float sums.
const distanceEpsilon = 1e-9

// label is the cost of reaching a waypoint along path. Labels are ordered
// by distance, then number of waypoints, then the path's name sequence.
type label struct {
	dist float64
	path []string
}

func (a label) less(b label) bool {
	if d := a.dist - b.dist; d < -distanceEpsilon || d > distanceEpsilon {
		return d < 0
	}
	if len(a.path) != len(b.path) {
		return len(a.path) < len(b.path)
	}
	return slices.Compare(a.path, b.path) < 0
}

type queue []label

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(label)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	l := old[n-1]
	*q = old[:n-1]
	return l
}

// Blocked reports whether the edge from -> to may not be used.
type Blocked func(from, to string) bool

// ShortestPath runs Dijkstra's algorithm over g from start to goal,
// honoring edge direction and skipping edges for which blocked returns
// true. Among paths of equal length the one with fewer waypoints wins,
// then the lexicographically smallest waypoint sequence.
func ShortestPath(ctx context.Context, g *airspace.Graph, start, goal string, blocked Blocked) ([]string, float64, error) {
	for _, name := range []string{start, goal} {
		if !g.HasWaypoint(name) {
			return nil, 0, fmt.Errorf("%w: %s", airspace.ErrUnknownWaypoint, name)
		}
	}
	if start == goal {
		return []string{start}, 0, nil
	}

	best := map[string]label{start: {path: []string{start}}}
	done := make(map[string]bool)
	q := &queue{best[start]}

	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		cur := heap.Pop(q).(label)
		at := cur.path[len(cur.path)-1]
		if done[at] {
			continue
		}
		done[at] = true
		if at == goal {
			return cur.path, cur.dist, nil
		}

		for r := range g.Neighbors(at) {
			if done[r.To] || (blocked != nil && blocked(r.From, r.To)) {
				continue
			}
			next := label{
				dist: cur.dist + r.Distance,
				path: append(slices.Clip(cur.path), r.To),
			}
			if prev, ok := best[r.To]; ok && !next.less(prev) {
				continue
			}
			best[r.To] = next
			heap.Push(q, next)
		}
	}
	return nil, 0, fmt.Errorf("%w: %s to %s", ErrNoPath, start, goal)
}
