package colormap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	legendRowHeight = 26
	legendLabelW    = 42
	legendValueW    = 56
	legendBarH      = 12
)

// LegendImage renders the loss and gain gradients as two labelled bars,
// each annotated with the smallest displayed and the largest change.
// Values are multiplied by heightFactor so labels read in rendered units.
func LegendImage(width int, l Legend, heightFactor float64, loss, gain Gradient) *image.RGBA {
	width = max(width, legendLabelW+2*legendValueW+16)
	img := image.NewRGBA(image.Rect(0, 0, width, 2*legendRowHeight+4))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	scale := heightFactor
	if scale == 0 {
		scale = 1
	}
	rows := []struct {
		label    string
		g        Gradient
		min, max float64
	}{
		{"loss", loss, l.MinLoss, l.MaxLoss},
		{"gain", gain, l.MinGain, l.MaxGain},
	}

	face := basicfont.Face7x13
	for i, row := range rows {
		top := 4 + i*legendRowHeight
		barLeft := legendLabelW + legendValueW
		barRight := width - legendValueW
		for x := barLeft; x < barRight; x++ {
			t := float64(x-barLeft) / float64(max(barRight-barLeft-1, 1))
			c := row.g.Evaluate(t)
			for y := top; y < top+legendBarH; y++ {
				img.SetRGBA(x, y, c)
			}
		}

		baseline := top + legendBarH - 1
		drawText(img, face, 2, baseline, row.label)
		drawText(img, face, legendLabelW, baseline, fmt.Sprintf("%.2f", row.min*scale))
		drawText(img, face, barRight+4, baseline, fmt.Sprintf("%.2f", row.max*scale))
	}
	return img
}

func drawText(dst draw.Image, face font.Face, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
