package haar

import (
	"image"
	"sort"
)

// Detection is an object found in the source image.
type Detection struct {
	Rect image.Rectangle
	// Neighbors is the number of raw windows merged into the detection.
	Neighbors int
	// Depth is the number of cascade stages passed.
	Depth int
	// Score is the summed boosting weight of the passed classifiers.
	// Grouped detections keep the best score of their cluster.
	Score float64
}

// AspectRange bounds the width/height ratio of the detections.
// A zero bound is not checked.
type AspectRange struct {
	Min float64
	Max float64
}

// Contains reports whether the rectangle's aspect ratio lies inside the range.
func (a AspectRange) Contains(r image.Rectangle) bool {
	if r.Dy() == 0 {
		return false
	}
	ratio := float64(r.Dx()) / float64(r.Dy())
	if a.Min > 0 && ratio < a.Min {
		return false
	}
	if a.Max > 0 && ratio > a.Max {
		return false
	}
	return true
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// GroupDetections merges the overlapping raw detections. Two detections belong to the
// same cluster when their intersection over union exceeds iouThreshold; clustering is
// transitive. Each cluster is replaced by its average rectangle and the clusters with
// fewer than minNeighbors members are discarded. With minNeighbors <= 0 the raw
// detections are returned unchanged.
func GroupDetections(dets []Detection, minNeighbors int, iouThreshold float64) []Detection {
	if minNeighbors <= 0 {
		res := make([]Detection, len(dets))
		copy(res, dets)
		for i := range res {
			if res[i].Neighbors == 0 {
				res[i].Neighbors = 1
			}
		}
		return res
	}

	parent := make([]int, len(dets))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(dets); i++ {
		for j := i + 1; j < len(dets); j++ {
			if IoU(dets[i].Rect, dets[j].Rect) > iouThreshold {
				if ri, rj := find(i), find(j); ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	type cluster struct {
		x0, y0, x1, y1 int
		count          int
		depth          int
		score          float64
	}
	var (
		roots    []int
		clusters = make(map[int]*cluster)
	)
	for i, det := range dets {
		root := find(i)
		c, ok := clusters[root]
		if !ok {
			c = &cluster{}
			clusters[root] = c
			roots = append(roots, root)
		}
		c.x0 += det.Rect.Min.X
		c.y0 += det.Rect.Min.Y
		c.x1 += det.Rect.Max.X
		c.y1 += det.Rect.Max.Y
		c.count++
		if det.Depth > c.depth {
			c.depth = det.Depth
		}
		if !ok || det.Score > c.score {
			c.score = det.Score
		}
	}

	avg := func(sum, n int) int {
		if sum < 0 {
			return -((-sum + n/2) / n)
		}
		return (sum + n/2) / n
	}

	res := make([]Detection, 0, len(roots))
	for _, root := range roots {
		c := clusters[root]
		if c.count < minNeighbors {
			continue
		}
		res = append(res, Detection{
			Rect: image.Rect(
				avg(c.x0, c.count), avg(c.y0, c.count),
				avg(c.x1, c.count), avg(c.y1, c.count),
			),
			Neighbors: c.count,
			Depth:     c.depth,
			Score:     c.score,
		})
	}
	sortDetections(res)
	return res
}

// sortDetections orders the detections top to bottom, left to right, smaller first.
func sortDetections(dets []Detection) {
	sort.Slice(dets, func(i, j int) bool {
		a, b := dets[i].Rect, dets[j].Rect
		if a.Min.Y != b.Min.Y {
			return a.Min.Y < b.Min.Y
		}
		if a.Min.X != b.Min.X {
			return a.Min.X < b.Min.X
		}
		return area(a) < area(b)
	})
}
