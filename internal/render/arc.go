package render

import "math"

// ArcSpec describes the circular baseline that personalization text
// follows on a magnet face.
type ArcSpec struct {
	// CenterX, CenterY are the arc center in image pixels.
	CenterX float64
	CenterY float64
	// Radius is the baseline radius in pixels.
	Radius float64
	// AngleDeg is where the middle of the text sits on the circle,
	// in math convention (270 is the bottom of the circle).
	AngleDeg float64
	// Kerning is added to every glyph advance except the last.
	Kerning float64
	// Outward makes glyphs face away from the center instead of
	// toward it.
	Outward bool
}

// GlyphPlacement is the computed position of one glyph. Rotation is
// in radians, clockwise-positive in screen coordinates, ready to feed
// a canvas transform.
type GlyphPlacement struct {
	X        float64
	Y        float64
	Rotation float64
}

// Layout places one glyph per advance along the arc. Longer names get
// a tightened radius and a nudged center so they stay inside the
// printable face; the thresholds were tuned against the physical
// magnet template and are deliberate magic numbers.
func (a ArcSpec) Layout(advances []float64) []GlyphPlacement {
	n := len(advances)
	if n == 0 {
		return nil
	}

	kerned := make([]float64, n)
	textWidth := 0.0
	for i, adv := range advances {
		kerned[i] = adv
		if i < n-1 {
			kerned[i] += a.Kerning
		}
		textWidth += kerned[i]
	}

	radius := a.Radius
	var xOffset, yOffset, angleAdjust float64
	if n > 6 {
		radius = a.Radius + float64(n-6)*-6
		if n > 10 {
			radius = a.Radius + float64(n-10)*-11
		}
		yOffset = float64(n-6) * 2
		xOffset = float64(n-6) * 0.8
		angleAdjust = float64(n-5) * 0.5
		if n > 10 {
			angleAdjust = float64(n - 10)
		}
	}

	thetaTotal := textWidth / radius
	thetaStart := degToRad(a.AngleDeg+angleAdjust) - thetaTotal/2

	facing := -90.0
	if a.Outward {
		facing = 90.0
	}

	placements := make([]GlyphPlacement, n)
	sCum := 0.0
	for i, adv := range kerned {
		sMid := sCum + adv/2
		theta := thetaStart + sMid/a.Radius

		// Glyphs past the sixth drift slightly outward to keep the
		// tail of long names off the magnet rim.
		glyphRadius := a.Radius
		if i >= 6 {
			glyphRadius = a.Radius + float64(i-5)
		}

		rotDeg := radToDeg(theta) - facing
		placements[i] = GlyphPlacement{
			X:        a.CenterX + glyphRadius*math.Cos(theta) - xOffset,
			Y:        a.CenterY - glyphRadius*math.Sin(theta) - yOffset,
			Rotation: degToRad(-rotDeg),
		}
		sCum += adv
	}
	return placements
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
