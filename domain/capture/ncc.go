package capture

import (
	"image"
	"math"
	"time"
)

// Template caches grayscale pixels and summary statistics for a patch that
// is matched repeatedly against incoming frames.
type Template struct {
	plane *Plane
	meanT float64
	stdT  float64
}

// NewTemplate precomputes statistics for p. The plane is copied.
func NewTemplate(p *Plane) *Template {
	if p == nil || p.Len() == 0 {
		return nil
	}
	var sumT, sumT2 float64
	for _, v := range p.Pix {
		f := float64(v)
		sumT += f
		sumT2 += f * f
	}
	n := float64(p.Len())
	meanT := sumT / n
	varT := (sumT2 - sumT*sumT/n) / n
	stdT := 0.0
	if varT > 0 {
		stdT = math.Sqrt(varT)
	}
	return &Template{plane: p.Clone(), meanT: meanT, stdT: stdT}
}

// Bounds returns the rectangle the template was captured from.
func (t *Template) Bounds() image.Rectangle {
	if t == nil {
		return image.Rectangle{}
	}
	return t.plane.Rect
}

// Plane returns the template pixels. Callers must not modify them.
func (t *Template) Plane() *Plane {
	if t == nil {
		return nil
	}
	return t.plane
}

// Flat reports whether the template has no intensity variation and so
// cannot be correlated.
func (t *Template) Flat() bool { return t == nil || t.stdT <= 1e-9 }

// integralPlane stores summed-area tables of a search plane. The integrals
// allow O(1) window sum and variance queries.
type integralPlane struct {
	integral   []float64
	integralSq []float64
	W, H       int
}

func buildIntegral(p *Plane) *integralPlane {
	W, H := p.Rect.Dx(), p.Rect.Dy()
	ip := &integralPlane{
		integral:   make([]float64, W*H),
		integralSq: make([]float64, W*H),
		W:          W,
		H:          H,
	}
	for y := 0; y < H; y++ {
		var rowSum, rowSum2 float64
		for x := 0; x < W; x++ {
			off := y*W + x
			g := float64(p.Pix[off])
			rowSum += g
			rowSum2 += g * g
			if y == 0 {
				ip.integral[off] = rowSum
				ip.integralSq[off] = rowSum2
			} else {
				ip.integral[off] = ip.integral[(y-1)*W+x] + rowSum
				ip.integralSq[off] = ip.integralSq[(y-1)*W+x] + rowSum2
			}
		}
	}
	return ip
}

// integralSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1]
// from an integral image stored in row-major order with width W.
func integralSum(I []float64, W int, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	A := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return I[y*W+x]
	}
	return A(x1, y1) - A(x0-1, y1) - A(x1, y0-1) + A(x0-1, y0-1)
}

// NCCOptions configures normalized cross-correlation template matching.
type NCCOptions struct {
	Threshold   float64 // Minimum NCC score for a positive match (default 0.6)
	Stride      int     // Coarse stride for scanning (default 1)
	Refine      bool    // If true and Stride>1, do a refinement pass around best window
	DebugTiming bool    // If true, measure elapsed time
}

// NCCResult holds the outcome of a template matching operation. X, Y is the
// top-left corner of the best window in source coordinates; it is set even
// when Found is false.
type NCCResult struct {
	X, Y  int
	Score float64
	Found bool
	Dur   time.Duration // Only set if DebugTiming
}

// MatchTemplate performs NCC of tmpl against every window position inside
// search, which holds the grayscale search area in source coordinates.
// Flat windows and flat templates score -1.
func MatchTemplate(search *Plane, tmpl *Template, opts NCCOptions) NCCResult {
	start := time.Now()
	if opts.Threshold <= 0 {
		opts.Threshold = 0.6
	}
	if opts.Stride <= 0 {
		opts.Stride = 1
	}
	res := NCCResult{Score: -1}
	if search == nil || tmpl.Flat() {
		return res
	}
	W, H := search.Rect.Dx(), search.Rect.Dy()
	w, h := tmpl.plane.Rect.Dx(), tmpl.plane.Rect.Dy()
	if w == 0 || h == 0 || W < w || H < h {
		return res
	}
	ip := buildIntegral(search)
	n := float64(w * h)
	tp := tmpl.plane.Pix

	scoreAt := func(x, y int) (float64, bool) {
		sumF := integralSum(ip.integral, W, x, y, x+w-1, y+h-1)
		sumF2 := integralSum(ip.integralSq, W, x, y, x+w-1, y+h-1)
		meanF := sumF / n
		varF := (sumF2 - sumF*sumF/n) / n
		if varF <= 1e-9 {
			return 0, false
		}
		stdF := math.Sqrt(varF)
		var sumFT float64
		for py := 0; py < h; py++ {
			frow := search.Pix[(y+py)*W+x : (y+py)*W+x+w]
			trow := tp[py*w : (py+1)*w]
			for px := 0; px < w; px++ {
				sumFT += float64(frow[px]) * float64(trow[px])
			}
		}
		denom := n * stdF * tmpl.stdT
		if denom <= 0 {
			return 0, false
		}
		return (sumFT - n*meanF*tmpl.meanT) / denom, true
	}

	bestX, bestY, bestScore := 0, 0, -1.0
	stride := opts.Stride
	for y := 0; y <= H-h; y += stride {
		for x := 0; x <= W-w; x += stride {
			if score, ok := scoreAt(x, y); ok && score > bestScore {
				bestScore, bestX, bestY = score, x, y
			}
		}
	}
	if opts.Refine && stride > 1 && bestScore > -1 {
		minY := max(0, bestY-stride)
		maxY := min(H-h, bestY+stride)
		minX := max(0, bestX-stride)
		maxX := min(W-w, bestX+stride)
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				if score, ok := scoreAt(x, y); ok && score > bestScore {
					bestScore, bestX, bestY = score, x, y
				}
			}
		}
	}
	res.X, res.Y, res.Score = bestX+search.Rect.Min.X, bestY+search.Rect.Min.Y, bestScore
	res.Found = bestScore >= opts.Threshold
	if opts.DebugTiming {
		res.Dur = time.Since(start)
	}
	return res
}
