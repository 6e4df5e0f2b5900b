package geometry

// CoordOrigin declares which corner (or the center) of a page the coordinates
// of a bounding box are measured from.
type CoordOrigin string

const (
	TopLeft     CoordOrigin = "TOPLEFT"
	TopRight    CoordOrigin = "TOPRIGHT"
	BottomLeft  CoordOrigin = "BOTTOMLEFT"
	BottomRight CoordOrigin = "BOTTOMRIGHT"
	Center      CoordOrigin = "CENTER"
)

// BBox is an axis-aligned bounding box in document units. The edges are
// interpreted relative to Origin; converting to pixel space requires the
// physical and raster dimensions of the page.
type BBox struct {
	L      float64     `json:"l"`
	T      float64     `json:"t"`
	R      float64     `json:"r"`
	B      float64     `json:"b"`
	Origin CoordOrigin `json:"coord_origin,omitempty"`
}

// PixelBox is an integer bounding box in the pixel space of a rendered page
// image. Pixel space is always top-left origin.
type PixelBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Width returns the box width in pixels.
func (p PixelBox) Width() int { return p.X2 - p.X1 }

// Height returns the box height in pixels.
func (p PixelBox) Height() int { return p.Y2 - p.Y1 }

// Area returns the box area in square pixels.
func (p PixelBox) Area() int { return p.Width() * p.Height() }

// Pad expands the box by n pixels on every side.
func (p PixelBox) Pad(n int) PixelBox {
	return PixelBox{X1: p.X1 - n, Y1: p.Y1 - n, X2: p.X2 + n, Y2: p.Y2 + n}
}

// Clamp restricts the box to the raster [0,w]x[0,h].
func (p PixelBox) Clamp(w, h int) PixelBox {
	return PixelBox{
		X1: clampInt(p.X1, 0, w),
		Y1: clampInt(p.Y1, 0, h),
		X2: clampInt(p.X2, 0, w),
		Y2: clampInt(p.Y2, 0, h),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToPixelBBox converts a document-space box into the pixel space of a raster
// of size imgW x imgH rendered from a page of physical size pdfW x pdfH.
// Results are truncated to integers and not clamped; clamping is the caller's
// responsibility when cropping.
func ToPixelBBox(box BBox, pdfW, pdfH float64, imgW, imgH int) PixelBox {
	var px PixelBox

	// Multiply before dividing: divide-first drifts below integer values
	// (110/300*300 = 109.999...) and the truncation then lands one pixel
	// short, breaking the 1:1 identity.
	switch box.Origin {
	case TopRight, BottomRight:
		px.X1 = int((pdfW - box.R) * float64(imgW) / pdfW)
		px.X2 = int((pdfW - box.L) * float64(imgW) / pdfW)
	default: // left origins and CENTER share the x axis direction
		px.X1 = int(box.L * float64(imgW) / pdfW)
		px.X2 = int(box.R * float64(imgW) / pdfW)
	}

	switch box.Origin {
	case TopLeft, TopRight:
		px.Y1 = int(box.T * float64(imgH) / pdfH)
		px.Y2 = int(box.B * float64(imgH) / pdfH)
	case BottomLeft, BottomRight:
		px.Y1 = int((pdfH - box.T) * float64(imgH) / pdfH)
		px.Y2 = int((pdfH - box.B) * float64(imgH) / pdfH)
	case Center:
		cy := pdfH / 2
		px.Y1 = int((cy-box.T)*float64(imgH)/pdfH + float64(imgH)/2)
		px.Y2 = int((cy-box.B)*float64(imgH)/pdfH + float64(imgH)/2)
	default:
		px.Y1 = int(box.T * float64(imgH) / pdfH)
		px.Y2 = int(box.B * float64(imgH) / pdfH)
	}

	return px
}

// OverlapRatio returns the fraction of a covered by b. It is intentionally
// asymmetric: the intersection area is normalized by area(a) only, answering
// "how much of this box sits inside that one". Returns 0 for degenerate a or
// disjoint boxes.
func OverlapRatio(a, b PixelBox) float64 {
	areaA := a.Area()
	if areaA <= 0 {
		return 0
	}

	xA := max(a.X1, b.X1)
	yA := max(a.Y1, b.Y1)
	xB := min(a.X2, b.X2)
	yB := min(a.Y2, b.Y2)

	inter := max(0, xB-xA) * max(0, yB-yA)
	return float64(inter) / float64(areaA)
}

// DefaultCellMargin is how far each cell edge is pulled inward, in document
// units, when a predicted cell box is written back. It strips the cell border
// strokes that table-structure models tend to include. Empirically tuned.
const DefaultCellMargin = 4.0

// CellToDocBBox maps a cell box predicted in the pixel space of a cropped
// table image back into document units. The cell box is offset by the table's
// top-left pixel corner into full-page pixel space, inverse-mapped to document
// units, then shrunk inward by margin on every edge. The result is always
// TOPLEFT-origin: predictions originate in pixel space, which is inherently
// top-left, regardless of the page's native origin.
func CellToDocBBox(cell PixelBox, table PixelBox, imgW, imgH int, pdfW, pdfH, margin float64) BBox {
	fullX1 := float64(table.X1 + cell.X1)
	fullY1 := float64(table.Y1 + cell.Y1)
	fullX2 := float64(table.X1 + cell.X2)
	fullY2 := float64(table.Y1 + cell.Y2)

	return BBox{
		L:      fullX1/float64(imgW)*pdfW + margin,
		T:      fullY1/float64(imgH)*pdfH + margin,
		R:      fullX2/float64(imgW)*pdfW - margin,
		B:      fullY2/float64(imgH)*pdfH - margin,
		Origin: TopLeft,
	}
}
