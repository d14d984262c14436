// Package avatar composites a player avatar out of its layer images.
package avatar

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"
)

type Part string

const (
	Base      Part = "base"
	Back      Part = "back"
	SkinFootR Part = "skinFootR"
	SkinFootL Part = "skinFootL"
	Skin      Part = "skin"
	Wear      Part = "wear"
	Face      Part = "face"
	FaceCover Part = "faceCover"
	Head      Part = "head"
	HandR     Part = "handR"
	HandL     Part = "handL"
	ItemR     Part = "itemR"
	ItemL     Part = "itemL"
)

// Parts maps every part to its image url.
type Parts map[Part]string

// AllParts lists every part an avatar is made of.
var AllParts = []Part{Base, Back, SkinFootR, SkinFootL, Skin, Wear, Face, FaceCover, Head, HandR, HandL, ItemR, ItemL}

// placement crops a w*h rectangle at (sx, sy) out of a part image,
// rotates it by rotation degrees and draws it at (dx, dy) relative to
// the left edge of the back layer.
type placement struct {
	sx, sy   int
	dx, dy   int
	w, h     int
	rotation float64
}

var placements = map[Part]placement{
	SkinFootR: {sx: 0, sy: 204, dx: 84, dy: 260, w: 42, h: 52},
	SkinFootL: {sx: 42, sy: 204, dx: 147, dy: 260, w: 42, h: 52},
	Skin:      {sx: 0, sy: 0, dx: 72, dy: 73, w: 128, h: 204},
	Wear:      {sx: 0, sy: 0, dx: 7, dy: 86, w: 258, h: 218},
	Face:      {sx: 0, sy: 0, dx: 107, dy: 80, w: 58, h: 64},
	FaceCover: {sx: 0, sy: 0, dx: 78, dy: 76, w: 116, h: 104},
	Head:      {sx: 0, sy: 0, dx: 37, dy: 8, w: 200, h: 150},
	HandR:     {sx: 0, sy: 0, dx: 52, dy: 158, w: 36, h: 72},
	HandL:     {sx: 0, sy: 0, dx: 184, dy: 158, w: 36, h: 72},
	ItemR:     {sx: 0, sy: 0, dx: -3, dy: 35, w: 100, h: 272, rotation: -5},
	ItemL:     {sx: 100, sy: 0, dx: 175, dy: 25, w: 100, h: 272, rotation: 5},
}

// later parts are drawn over earlier ones
var drawOrder = []Part{SkinFootR, SkinFootL, Skin, Wear, Face, FaceCover, Head, HandR, HandL, ItemR, ItemL}

const (
	baseCropTop = 20
	backTop     = 5
)

// Fetcher downloads an image by absolute url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Render fetches all parts concurrently and returns the composited avatar
// as PNG. a single failed part fails the whole avatar.
func Render(ctx context.Context, fetcher Fetcher, parts Parts) ([]byte, error) {
	images, err := FetchAll(ctx, fetcher, parts)
	if err != nil {
		return nil, err
	}
	canvas, err := Composite(images)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = png.Encode(&buf, canvas)
	if err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

func FetchAll(ctx context.Context, fetcher Fetcher, parts Parts) (map[Part]image.Image, error) {
	for _, part := range AllParts {
		if parts[part] == "" {
			return nil, fmt.Errorf("avatar part %s has no url", part)
		}
	}

	var mu sync.Mutex
	images := make(map[Part]image.Image, len(AllParts))

	group, ctx := errgroup.WithContext(ctx)
	for _, part := range AllParts {
		part := part
		group.Go(func() error {
			body, err := fetcher.Fetch(ctx, parts[part])
			if err != nil {
				return fmt.Errorf("fetch avatar part %s: %w", part, err)
			}
			img, _, err := image.Decode(bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("decode avatar part %s: %w", part, err)
			}

			mu.Lock()
			images[part] = img
			mu.Unlock()
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return images, nil
}

// Composite draws the decoded parts onto one canvas. the canvas is the
// size of the base layer minus its top 20 pixels.
func Composite(images map[Part]image.Image) (*image.RGBA, error) {
	for _, part := range AllParts {
		if images[part] == nil {
			return nil, fmt.Errorf("avatar part %s is missing", part)
		}
	}

	base := images[Base]
	bb := base.Bounds()
	if bb.Dy() <= baseCropTop {
		return nil, fmt.Errorf("avatar base is too small (%dx%d)", bb.Dx(), bb.Dy())
	}
	canvas := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()-baseCropTop))
	draw.Draw(canvas, canvas.Bounds(), base, bb.Min.Add(image.Pt(0, baseCropTop)), draw.Over)

	back := images[Back]
	backBounds := back.Bounds()
	originX := (bb.Dx() - backBounds.Dx()) / 2
	draw.Draw(
		canvas,
		image.Rect(originX, backTop, originX+backBounds.Dx(), backTop+backBounds.Dy()),
		back, backBounds.Min, draw.Over,
	)

	for _, part := range drawOrder {
		p := placements[part]
		layer := cut(images[part], p)
		dst := image.Rect(originX+p.dx, p.dy, originX+p.dx+p.w, p.dy+p.h)
		draw.Draw(canvas, dst, layer, image.Point{}, draw.Over)
	}
	return canvas, nil
}

// cut returns the w*h window of src seen through a frame rotated by
// p.rotation degrees around its top left corner, which sits at (sx, sy).
func cut(src image.Image, p placement) *image.RGBA {
	layer := image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	sb := src.Bounds()
	origin := sb.Min.Add(image.Pt(p.sx, p.sy))

	if p.rotation == 0 {
		draw.Draw(layer, layer.Bounds(), src, origin, draw.Src)
		return layer
	}

	sin, cos := math.Sincos(p.rotation * math.Pi / 180)
	ox, oy := float64(origin.X), float64(origin.Y)
	// layer = R * (src - origin)
	transform := f64.Aff3{
		cos, -sin, -(cos*ox - sin*oy),
		sin, cos, -(sin*ox + cos*oy),
	}
	xdraw.BiLinear.Transform(layer, transform, src, sb, xdraw.Over, nil)
	return layer
}
