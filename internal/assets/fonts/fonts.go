package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Faces are parsed once and shared; font.Face values from opentype are safe
// for concurrent measuring and drawing through separate drawers.
var (
	captionOnce sync.Once
	captionFace font.Face
	captionErr  error

	letterOnce sync.Once
	letterFace font.Face
	letterErr  error
)

// CaptionFace returns the regular face used for card captions and labels.
func CaptionFace() (font.Face, error) {
	captionOnce.Do(func() {
		captionFace, captionErr = newFace(goregular.TTF, 15)
	})
	return captionFace, captionErr
}

// LetterFace returns the bold face used for the big memo letter tiles.
func LetterFace() (font.Face, error) {
	letterOnce.Do(func() {
		letterFace, letterErr = newFace(gobold.TTF, 26)
	})
	return letterFace, letterErr
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build face: %w", err)
	}
	return face, nil
}
