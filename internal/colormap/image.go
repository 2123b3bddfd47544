package colormap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Image lays out per-node colours as a size×size RGBA image, row-major.
func Image(size int, colors []color.RGBA) (*image.RGBA, error) {
	if size <= 0 || len(colors) != size*size {
		return nil, fmt.Errorf("colormap: %d colours do not fill a %dx%d image", len(colors), size, size)
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i, c := range colors {
		base := i * 4
		img.Pix[base+0] = c.R
		img.Pix[base+1] = c.G
		img.Pix[base+2] = c.B
		img.Pix[base+3] = c.A
	}
	return img, nil
}

// WritePNG encodes colours as a PNG preview.
func WritePNG(w io.Writer, size int, colors []color.RGBA) error {
	img, err := Image(size, colors)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
