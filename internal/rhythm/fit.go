package rhythm

// dataPoint is one observed strike: where it sat on the line (in blows) and
// when it was heard (in seconds), with a confidence weight.
type dataPoint struct {
	blowTime float64
	realTime float64
	weight   float64
}

// fitLine computes the weighted least-squares line realTime = start +
// interval*blowTime through points. ok is false when the points do not
// determine a line, e.g. fewer than two distinct blow times.
func fitLine(points []dataPoint) (start, interval float64, ok bool) {
	var sw, sx, sy, sxx, sxy float64
	for _, p := range points {
		sw += p.weight
		sx += p.weight * p.blowTime
		sy += p.weight * p.realTime
		sxx += p.weight * p.blowTime * p.blowTime
		sxy += p.weight * p.blowTime * p.realTime
	}

	denom := sw*sxx - sx*sx
	if sw == 0 || denom == 0 {
		return 0, 0, false
	}

	interval = (sw*sxy - sx*sy) / denom
	start = (sy - interval*sx) / sw
	return start, interval, true
}

// lerp interpolates unclamped between a and b: lerp(a, b, 0) == a and
// lerp(a, b, 1) == b.
func lerp(a, b, t float64) float64 {
	return (1-t)*a + t*b
}
