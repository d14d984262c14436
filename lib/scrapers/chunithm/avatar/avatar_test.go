package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	red    = color.RGBA{R: 255, A: 255}
	green  = color.RGBA{G: 255, A: 255}
	blue   = color.RGBA{B: 255, A: 255}
	yellow = color.RGBA{R: 255, G: 255, A: 255}
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func transparent() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

// base is 300x400, red with a green strip in the 20 pixels that get cropped.
func layers() map[Part]image.Image {
	base := solid(300, 400, red)
	draw.Draw(base, image.Rect(0, 0, 300, 20), &image.Uniform{green}, image.Point{}, draw.Src)

	images := map[Part]image.Image{
		Base: base,
		Back: image.NewRGBA(image.Rect(0, 0, 200, 300)),
	}
	for _, part := range drawOrder {
		images[part] = transparent()
	}
	return images
}

func TestComposite(t *testing.T) {
	// back is 200 wide on a 300 wide base, so parts are offset by 50
	const originX = 50

	t.Run("canvas", func(t *testing.T) {
		canvas, err := Composite(layers())
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, image.Rect(0, 0, 300, 380), canvas.Bounds())
		require.Equal(t, red, canvas.RGBAAt(0, 0))
		require.Equal(t, red, canvas.RGBAAt(299, 379))
	})

	t.Run("draw order", func(t *testing.T) {
		images := layers()
		images[Wear] = solid(258, 218, green)
		images[Head] = solid(200, 150, blue)

		canvas, err := Composite(images)
		if err != nil {
			t.Fatal(err)
		}
		// only wear
		require.Equal(t, green, canvas.RGBAAt(originX+10, 200))
		// head is drawn after wear
		require.Equal(t, blue, canvas.RGBAAt(originX+50, 100))
		// only head
		require.Equal(t, blue, canvas.RGBAAt(originX+50, 20))
		// neither
		require.Equal(t, red, canvas.RGBAAt(5, 5))
	})

	t.Run("source offset", func(t *testing.T) {
		images := layers()
		foot := image.NewRGBA(image.Rect(0, 0, 84, 256))
		draw.Draw(foot, image.Rect(0, 204, 42, 256), &image.Uniform{yellow}, image.Point{}, draw.Src)
		images[SkinFootR] = foot

		canvas, err := Composite(images)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, yellow, canvas.RGBAAt(originX+84, 260))
		require.Equal(t, yellow, canvas.RGBAAt(originX+84+41, 260+51))
		require.Equal(t, red, canvas.RGBAAt(originX+84+42, 260))
	})

	t.Run("rotation", func(t *testing.T) {
		images := layers()
		images[ItemR] = solid(100, 272, white)

		canvas, err := Composite(images)
		if err != nil {
			t.Fatal(err)
		}
		center := canvas.RGBAAt(originX-3+50, 35+136)
		require.Greater(t, center.R, uint8(250))
		require.Greater(t, center.G, uint8(250))
		require.Greater(t, center.B, uint8(250))
		require.Greater(t, center.A, uint8(250))
	})

	t.Run("missing part", func(t *testing.T) {
		images := layers()
		delete(images, Face)
		_, err := Composite(images)
		require.Error(t, err)
	})

	t.Run("base too small", func(t *testing.T) {
		images := layers()
		images[Base] = solid(300, 20, red)
		_, err := Composite(images)
		require.Error(t, err)
	})
}

type fakeFetcher struct {
	mu     sync.Mutex
	files  map[string][]byte
	failOn string
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if url == f.failOn {
		return nil, errors.New("connection reset")
	}
	body, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("%s not found", url)
	}
	return body, nil
}

func encode(t testing.TB, img image.Image) []byte {
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func setupFetcher(t testing.TB) (*fakeFetcher, Parts) {
	fetcher := &fakeFetcher{files: map[string][]byte{}}
	parts := Parts{}
	for part, img := range layers() {
		url := fmt.Sprintf("https://example.com/avatar/%s.png", part)
		parts[part] = url
		fetcher.files[url] = encode(t, img)
	}
	return fetcher, parts
}

func TestRender(t *testing.T) {
	fetcher, parts := setupFetcher(t)

	out, err := Render(context.Background(), fetcher, parts)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, len(AllParts), fetcher.calls)

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, image.Rect(0, 0, 300, 380), decoded.Bounds())
}

func TestRenderFailures(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		fetcher, parts := setupFetcher(t)
		fetcher.failOn = parts[Head]

		_, err := Render(context.Background(), fetcher, parts)
		require.ErrorContains(t, err, "head")
	})

	t.Run("undecodable part", func(t *testing.T) {
		fetcher, parts := setupFetcher(t)
		fetcher.files[parts[Wear]] = []byte("<html>not an image</html>")

		_, err := Render(context.Background(), fetcher, parts)
		require.ErrorContains(t, err, "decode avatar part wear")
	})

	t.Run("missing url", func(t *testing.T) {
		fetcher, parts := setupFetcher(t)
		delete(parts, ItemL)

		_, err := Render(context.Background(), fetcher, parts)
		require.Error(t, err)
		require.Equal(t, 0, fetcher.calls)
	})
}
