// Package render draws a chess board to PNG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess/internal/chess"
)

// Options control one rendering. A zero Perspective draws from White's side.
type Options struct {
	Perspective chess.Color
	Highlight   *chess.Move
	Title       string
	Turn        string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *chess.Board, opts Options) ([]byte, error)
}

type svgBoardRenderer struct {
	squareSize int
}

// NewSVGBoardRenderer returns a renderer drawing squares of squareSize pixels.
// Non-positive sizes use 60.
func NewSVGBoardRenderer(squareSize int) BoardRenderer {
	if squareSize <= 0 {
		squareSize = 60
	}
	return &svgBoardRenderer{squareSize: squareSize}
}

const (
	sideMargin   = 28
	topMargin    = 64
	bottomMargin = 28
	panelHeight  = 30
	panelRadius  = 10
	panelPadX    = 18
	gapToBoard   = 14
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{22, 24, 36, 255}
	moveHighlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	hudPanelColor       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudShadowColor      = color.NRGBA{0, 0, 0, 50}
	hudTextPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTurnTextColor    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// layout maps board squares to pixels for one perspective.
type layout struct {
	square  int
	origin  image.Point
	flipped bool
}

// rect is the pixel rectangle of pos.
func (l layout) rect(pos chess.Position) image.Rectangle {
	col, row := pos.Col-1, 8-pos.Row
	if l.flipped {
		col, row = 8-pos.Col, pos.Row-1
	}
	x := l.origin.X + col*l.square
	y := l.origin.Y + row*l.square
	return image.Rect(x, y, x+l.square, y+l.square)
}

// at is the square drawn in screen cell (col,row), both counted from the top left.
func (l layout) at(col, row int) chess.Position {
	if l.flipped {
		return chess.NewPosition(row+1, 8-col)
	}
	return chess.NewPosition(8-row, col+1)
}

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *chess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	boardSize := r.squareSize * 8
	l := layout{
		square:  r.squareSize,
		origin:  image.Point{X: sideMargin, Y: topMargin},
		flipped: opts.Perspective == chess.Black,
	}
	boardRect := image.Rect(l.origin.X, l.origin.Y, l.origin.X+boardSize, l.origin.Y+boardSize)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardSize+sideMargin*2, boardSize+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawHUD(img, opts, boardRect)
	drawSquares(img, l)
	if opts.Highlight != nil {
		drawSquareOverlay(img, l.rect(opts.Highlight.Start), moveHighlightFill)
		drawSquareOverlay(img, l.rect(opts.Highlight.End), moveHighlightFill)
	}
	if err := drawPieces(img, board, l); err != nil {
		return nil, err
	}
	drawCoordinates(img, l)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func squareColor(pos chess.Position) color.Color {
	if (pos.Row+pos.Col)%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawSquares(dst imagedraw.Image, l layout) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pos := l.at(col, row)
			imagedraw.Draw(dst, l.rect(pos), image.NewUniform(squareColor(pos)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *chess.Board, l layout) error {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pos := l.at(col, row)
			p, ok := board.Get(pos)
			if !ok {
				continue
			}
			img, err := renderPieceImage(p, l.square)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, l.rect(pos), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// drawHUD puts the title on the left and the turn on the right, above the board.
func drawHUD(img *image.RGBA, opts Options, boardRect image.Rectangle) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Chess"
	}
	turn := strings.TrimSpace(opts.Turn)

	bottom := boardRect.Min.Y - gapToBoard
	top := bottom - panelHeight
	half := boardRect.Dx()/2 - 6

	titleWidth := min(drawer.MeasureString(title).Round()+panelPadX*2, half)
	titleRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+titleWidth, bottom)
	drawRoundedPanel(img, titleRect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, titleRect, truncateWithEllipsis(face, title, titleRect.Dx()-panelPadX*2), hudTextPrimary)

	if turn == "" {
		return
	}
	turnWidth := min(drawer.MeasureString(turn).Round()+panelPadX*2, half)
	turnRect := image.Rect(boardRect.Max.X-turnWidth, top, boardRect.Max.X, bottom)
	drawRoundedPanel(img, turnRect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
	drawRoundedPanel(img, turnRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, turnRect, truncateWithEllipsis(face, turn, turnRect.Dx()-panelPadX*2), hudTurnTextColor)
}

func drawCoordinates(dst imagedraw.Image, l layout) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := l.origin.Y + 8*l.square

	for i := 0; i < 8; i++ {
		rank := l.at(0, i).Row
		file := l.at(i, 7).Col
		rankCenter := l.origin.Y + i*l.square + l.square/2
		fileCenter := l.origin.X + i*l.square + l.square/2
		drawCenteredText(drawer, fmt.Sprint(rank), l.origin.X-sideMargin/2, rankCenter+ascent/2)
		drawCenteredText(drawer, string(rune('a'+file-1)), fileCenter, boardEnd+ascent+4)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := max(rect.Min.X+(rect.Dx()-width)/2, rect.Min.X)
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	if text == "" || maxWidth <= 0 {
		return text
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	const ellipsis = "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	radius = max(0, min(radius, rect.Dx()/2, rect.Dy()/2))
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, center := range corners {
		drawQuarter(img, center, radius, clr, center.X < rect.Min.X+rect.Dx()/2, center.Y < rect.Min.Y+rect.Dy()/2)
	}
}

// drawQuarter fills the corner quadrant of a disc, left/top selecting which one.
func drawQuarter(img *image.RGBA, center image.Point, radius int, clr color.Color, left, top bool) {
	rSquared := radius * radius
	for y := 0; y <= radius; y++ {
		for x := 0; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			px, py := center.X+x, center.Y+y
			if left {
				px = center.X - x
			}
			if top {
				py = center.Y - y
			}
			blendPixel(img, px, py, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	d := img.RGBAAt(x, y)
	inv := 0xffff - sa
	// premultiplied source over premultiplied destination
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(d.R)*0x101*inv/0xffff) >> 8),
		G: uint8((sg + uint32(d.G)*0x101*inv/0xffff) >> 8),
		B: uint8((sb + uint32(d.B)*0x101*inv/0xffff) >> 8),
		A: uint8((sa + uint32(d.A)*0x101*inv/0xffff) >> 8),
	})
}
