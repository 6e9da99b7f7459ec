package trainer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	fontassets "github.com/park285/Memo-KakaoTalk-bot/internal/assets/fonts"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// MemoCardGroup is one memo group as it appears on the rendered card.
type MemoCardGroup struct {
	Label   string
	Letters []string
}

type MemoCard struct {
	Level  int
	Groups []MemoCardGroup
}

type CardRenderer interface {
	RenderPNG(ctx context.Context, card MemoCard) ([]byte, error)
}

type memoCardRenderer struct {
}

func NewMemoCardRenderer() CardRenderer {
	return &memoCardRenderer{}
}

func (r *memoCardRenderer) RenderPNG(ctx context.Context, card MemoCard) ([]byte, error) {
	if len(card.Groups) == 0 {
		return nil, fmt.Errorf("memo card has no groups")
	}

	const (
		tileSize         = 64
		tileGap          = 10
		tilesPerRow      = 8
		sideMargin       = 36
		topMargin        = 36
		bottomMargin     = 36
		headerHeight     = 46
		labelHeight      = 32
		gapHeaderToBody  = 26
		gapLabelToTiles  = 12
		gapBetweenGroups = 24
		panelRadius      = 12
		tileRadius       = 10
		iconSize         = 26
		iconGap          = 10
		headerPaddingX   = 24
		labelPaddingX    = 18
		headerMinWidth   = 220
		shadowOffsetY    = 6
	)

	gridWidth := tilesPerRow*tileSize + (tilesPerRow-1)*tileGap
	totalWidth := gridWidth + sideMargin*2

	totalHeight := topMargin + headerHeight + gapHeaderToBody
	for i, group := range card.Groups {
		rows := tileRows(len(group.Letters), tilesPerRow)
		totalHeight += labelHeight + gapLabelToTiles + rows*tileSize + (rows-1)*tileGap
		if i < len(card.Groups)-1 {
			totalHeight += gapBetweenGroups
		}
	}
	totalHeight += bottomMargin

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	captionFace, err := fontassets.CaptionFace()
	if err != nil {
		return nil, fmt.Errorf("load caption face: %w", err)
	}
	letterFace, err := fontassets.LetterFace()
	if err != nil {
		return nil, fmt.Errorf("load letter face: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(cardBackground), image.Point{}, imagedraw.Src)

	captionDrawer := &font.Drawer{
		Dst:  img,
		Face: captionFace,
	}
	letterDrawer := &font.Drawer{
		Dst:  img,
		Face: letterFace,
	}

	headerText := fmt.Sprintf("Level %d", card.Level)
	headerWidth := captionDrawer.MeasureString(headerText).Round() + headerPaddingX*2 + iconSize + iconGap
	if headerWidth < headerMinWidth {
		headerWidth = headerMinWidth
	}
	if headerWidth > gridWidth {
		headerWidth = gridWidth
	}
	headerLeft := sideMargin + (gridWidth-headerWidth)/2
	headerRect := image.Rect(headerLeft, topMargin, headerLeft+headerWidth, topMargin+headerHeight)

	drawRoundedPanel(img, headerRect.Add(image.Pt(0, shadowOffsetY)), panelRadius, panelShadowColor)
	drawRoundedPanel(img, headerRect, panelRadius, headerPanelColor)
	if err := drawPanelLabel(img, captionDrawer, headerRect, "cube", headerText, headerTextColor, iconSize, iconGap, headerPaddingX); err != nil {
		return nil, err
	}

	y := headerRect.Max.Y + gapHeaderToBody
	for _, group := range card.Groups {
		labelText := groupLabelText(group)
		labelWidth := captionDrawer.MeasureString(labelText).Round() + labelPaddingX*2 + iconSize + iconGap
		if labelWidth > gridWidth {
			labelWidth = gridWidth
		}
		labelRect := image.Rect(sideMargin, y, sideMargin+labelWidth, y+labelHeight)

		drawRoundedPanel(img, labelRect.Add(image.Pt(0, shadowOffsetY/2)), panelRadius, panelShadowColor)
		drawRoundedPanel(img, labelRect, panelRadius, labelPanelColor)
		if err := drawPanelLabel(img, captionDrawer, labelRect, iconAssetKey(group.Label), labelText, labelTextColor, iconSize, iconGap, labelPaddingX); err != nil {
			return nil, err
		}

		y = labelRect.Max.Y + gapLabelToTiles
		for i, letter := range group.Letters {
			row := i / tilesPerRow
			col := i % tilesPerRow
			x := sideMargin + col*(tileSize+tileGap)
			ty := y + row*(tileSize+tileGap)
			tileRect := image.Rect(x, ty, x+tileSize, ty+tileSize)
			drawRoundedPanel(img, tileRect, tileRadius, tileFill(row, col))
			drawCenteredString(letterDrawer, tileRect, letter, tileTextColor)
		}

		rows := tileRows(len(group.Letters), tilesPerRow)
		y += rows*tileSize + (rows-1)*tileGap + gapBetweenGroups
	}

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

var (
	cardBackground   = color.NRGBA{R: 22, G: 24, B: 35, A: 255}
	tileLight        = color.RGBA{233, 207, 163, 255}
	tileDark         = color.RGBA{187, 136, 96, 255}
	tileTextColor    = color.NRGBA{R: 43, G: 32, B: 20, A: 255}
	headerPanelColor = color.NRGBA{R: 35, G: 39, B: 58, A: 250}
	labelPanelColor  = color.NRGBA{R: 32, G: 35, B: 52, A: 245}
	panelShadowColor = color.NRGBA{0, 0, 0, 50}
	headerTextColor  = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	labelTextColor   = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

func tileRows(letters, perRow int) int {
	if letters <= 0 {
		return 1
	}
	return (letters + perRow - 1) / perRow
}

func tileFill(row, col int) color.Color {
	if (row+col)%2 == 0 {
		return tileLight
	}
	return tileDark
}

func groupLabelText(group MemoCardGroup) string {
	label := strings.ToUpper(strings.TrimSpace(group.Label))
	if label == "" {
		label = "MEMO"
	}
	return fmt.Sprintf("%s (%d)", label, len(group.Letters))
}

func drawPanelLabel(img *image.RGBA, drawer *font.Drawer, rect image.Rectangle, iconName, text string, clr color.Color, iconSize, iconGap, paddingX int) error {
	textRect := rect
	if iconName != "" {
		icon, err := renderIconImage(iconName, iconSize)
		if err != nil {
			return err
		}
		iconTop := rect.Min.Y + (rect.Dy()-iconSize)/2
		iconRect := image.Rect(rect.Min.X+paddingX, iconTop, rect.Min.X+paddingX+iconSize, iconTop+iconSize)
		imagedraw.Draw(img, iconRect, icon, image.Point{}, imagedraw.Over)
		textRect.Min.X = iconRect.Max.X + iconGap
	}
	text = truncateWithEllipsis(drawer.Face, text, textRect.Dx()-paddingX)
	drawCenteredString(drawer, textRect, text, clr)
	return nil
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 || face == nil {
		return trimmed
	}

	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}

	ellipsis := "..."
	ellipsisWidth := drawer.MeasureString(ellipsis).Round()
	if ellipsisWidth > maxWidth {
		return ""
	}

	runes := []rune(trimmed)
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
	if img == nil || rect.Empty() {
		return
	}
	if radius < 0 {
		radius = 0
	}
	maxRadius := rect.Dx() / 2
	if r := rect.Dy() / 2; r < maxRadius {
		maxRadius = r
	}
	if radius > maxRadius {
		radius = maxRadius
	}
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	core := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	if core.Dx() > 0 {
		imagedraw.Draw(img, core, fill, image.Point{}, imagedraw.Over)
	}

	leftRect := image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius)
	if leftRect.Dx() > 0 {
		imagedraw.Draw(img, leftRect, fill, image.Point{}, imagedraw.Over)
	}

	rightRect := image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius)
	if rightRect.Dx() > 0 {
		imagedraw.Draw(img, rightRect, fill, image.Point{}, imagedraw.Over)
	}

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, center := range corners {
		drawDisc(img, center, radius, clr)
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if drawer == nil {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, center.X, center.Y, clr)
		return
	}
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			blendPixel(img, center.X+x, center.Y+y, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if img == nil {
		return
	}
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}

	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	srcR := float64(sr) / 65535.0
	srcG := float64(sg) / 65535.0
	srcB := float64(sb) / 65535.0

	dst := img.RGBAAt(x, y)
	dstA := float64(dst.A) / 255.0

	var dstR, dstG, dstB float64
	if dstA > 0 {
		inv := 1.0 / dstA
		dstR = float64(dst.R) / 255.0 * inv
		dstG = float64(dst.G) / 255.0 * inv
		dstB = float64(dst.B) / 255.0 * inv
	}

	outA := srcA + dstA*(1-srcA)
	if outA <= 0 {
		img.SetRGBA(x, y, color.RGBA{})
		return
	}

	outR := (srcR*srcA + dstR*dstA*(1-srcA)) / outA
	outG := (srcG*srcA + dstG*dstA*(1-srcA)) / outA
	outB := (srcB*srcA + dstB*dstA*(1-srcA)) / outA

	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8(outR * outA * 255.0),
		G: floatToUint8(outG * outA * 255.0),
		B: floatToUint8(outB * outA * 255.0),
		A: floatToUint8(outA * 255.0),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
