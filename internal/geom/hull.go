package geom

import "sort"

// ConvexHull computes the convex hull of pts via Andrew's monotone chain,
// returned counter-clockwise starting from the lowest-leftmost point.
// Used to build both the approach polygon (curb/centerline extrema) and
// the intersection polygon.
func ConvexHull(pts []Point2D) []Point2D {
	if len(pts) < 3 {
		out := make([]Point2D, len(pts))
		copy(out, pts)
		return out
	}
	sorted := make([]Point2D, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	sorted = dedupe(sorted)
	if len(sorted) < 3 {
		return sorted
	}

	cross := func(o, a, b Point2D) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	lower := make([]Point2D, 0, len(sorted))
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	upper := make([]Point2D, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func dedupe(sorted []Point2D) []Point2D {
	out := sorted[:0:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// PointInPolygon reports whether p lies inside the polygon poly, using a
// standard ray-casting test. Points exactly on an edge are not
// consistently counted as inside.
func PointInPolygon(p Point2D, poly []Point2D) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := range poly {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xIntersect := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
