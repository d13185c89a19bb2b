package contour

import "math"

// splitWindow is the half-window used to estimate local direction.
const splitWindow = 5

// minSplitAngle is the minimum direction change (radians) at the split
// index for the split to be accepted. An outline that never turns this
// sharply has no identifiable tip.
const minSplitAngle = math.Pi / 6

// SeparateEdges partitions the outline into a leading and a trailing edge
// at the index of maximum local direction change (the tip of the fin or
// fluke). leading is outline[:idx] and trailing is outline[idx:], so the
// two always partition the outline exactly.
//
// ok is false when the outline is empty, too short to estimate direction,
// or never turns sharply enough to contain a valid split point. The split
// is deterministic: equal scores resolve to the earliest index.
func SeparateEdges(outline Outline) (leading, trailing Outline, ok bool) {
	idx, ok := splitIndex(outline)
	if !ok {
		return nil, nil, false
	}
	return outline[:idx], outline[idx:], true
}

// splitIndex scans for the sample that best separates the two curvature
// regimes of the outline.
func splitIndex(outline Outline) (int, bool) {
	n := len(outline)
	if n < 2*splitWindow+1 {
		return 0, false
	}

	bestIdx := -1
	bestAngle := 0.0
	for i := splitWindow; i < n-splitWindow; i++ {
		// Direction entering and leaving the candidate split.
		inX := float64(outline[i].X - outline[i-splitWindow].X)
		inY := float64(outline[i].Y - outline[i-splitWindow].Y)
		outX := float64(outline[i+splitWindow].X - outline[i].X)
		outY := float64(outline[i+splitWindow].Y - outline[i].Y)

		inLen := math.Hypot(inX, inY)
		outLen := math.Hypot(outX, outY)
		if inLen == 0 || outLen == 0 {
			continue
		}

		cos := (inX*outX + inY*outY) / (inLen * outLen)
		cos = math.Max(-1, math.Min(1, cos))
		if angle := math.Acos(cos); angle > bestAngle {
			bestAngle = angle
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestAngle < minSplitAngle {
		return 0, false
	}
	return bestIdx, true
}
