package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/cheese-chess/internal/chess"
)

// Glyph bodies on a 45x45 canvas. %[1]s is the fill, %[2]s the outline.
var pieceShapes = map[chess.PieceType]string{
	chess.Pawn: `<circle cx="22.5" cy="12" r="5"/>
<path d="M18 21 L27 21 L30 35 L15 35 Z"/>
<rect x="11" y="35" width="23" height="5"/>`,
	chess.Rook: `<path d="M13 9 L17 9 L17 12 L20.5 12 L20.5 9 L24.5 9 L24.5 12 L28 12 L28 9 L32 9 L32 16 L13 16 Z"/>
<path d="M15 16 L30 16 L29 34 L16 34 Z"/>
<rect x="11" y="34" width="23" height="6"/>`,
	chess.Knight: `<path d="M14 39 L33 39 L31 30 C31 22 29 12 21 9 L19 5 L17 10 C13 12 10 18 10 23 L13 25 L17 21 C18 25 15 28 14 39 Z"/>
<circle cx="17" cy="15" r="1.5"/>`,
	chess.Bishop: `<circle cx="22.5" cy="7" r="2.5"/>
<path d="M22.5 10 C16 15 15 23 17 31 L28 31 C30 23 29 15 22.5 10 Z"/>
<rect x="11" y="33" width="23" height="6"/>`,
	chess.Queen: `<path d="M9 13 L15 31 L30 31 L36 13 L28.5 23 L22.5 9 L16.5 23 Z"/>
<circle cx="9" cy="12" r="2.5"/>
<circle cx="22.5" cy="8" r="2.5"/>
<circle cx="36" cy="12" r="2.5"/>
<rect x="11" y="32" width="23" height="7"/>`,
	chess.King: `<rect x="21" y="4" width="3" height="12"/>
<rect x="17" y="7.5" width="11" height="3"/>
<path d="M13 32 C10 24 14 17 22.5 17 C31 17 35 24 32 32 Z"/>
<rect x="11" y="32" width="23" height="7"/>`,
}

var sideColors = map[chess.Color][2]string{
	chess.White: {"#fafafa", "#1e1e1e"},
	chess.Black: {"#262626", "#e6e6e6"},
}

func pieceSVG(p chess.Piece) (string, error) {
	shape, ok := pieceShapes[p.Type]
	if !ok {
		return "", fmt.Errorf("no glyph for %v", p.Type)
	}
	colors, ok := sideColors[p.Color]
	if !ok {
		return "", fmt.Errorf("no palette for %v", p.Color)
	}
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&sb, `<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">`, colors[0], colors[1])
	sb.WriteString(shape)
	sb.WriteString(`</g></svg>`)
	return sb.String(), nil
}

type pieceCacheKey struct {
	piece chess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(p chess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
