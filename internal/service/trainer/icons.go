package trainer

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/icons/*.svg
var iconFiles embed.FS

type iconCacheKey struct {
	name string
	size int
}

var (
	iconCache   = map[iconCacheKey]image.Image{}
	iconCacheMu sync.RWMutex
)

func renderIconImage(name string, size int) (image.Image, error) {
	key := iconCacheKey{name: name, size: size}

	iconCacheMu.RLock()
	if img, ok := iconCache[key]; ok {
		iconCacheMu.RUnlock()
		return img, nil
	}
	iconCacheMu.RUnlock()

	path := fmt.Sprintf("assets/icons/%s.svg", name)
	data, err := iconFiles.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read icon asset %s: %w", path, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse icon svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 {
		w = size
		icon.ViewBox.W = float64(w)
	}
	if h <= 0 {
		h = size
		icon.ViewBox.H = float64(h)
	}

	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	iconCacheMu.Lock()
	iconCache[key] = img
	iconCacheMu.Unlock()

	return img, nil
}

func iconAssetKey(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "corners":
		return "corner"
	case "edges":
		return "edge"
	default:
		return "badge"
	}
}

// oksvg rejects style values with a space after the colon.
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
	return fixed
}
