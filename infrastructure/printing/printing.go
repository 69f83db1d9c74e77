package printing

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

// Code128PNG encodes value as a code128 barcode scaled to width x height pixels.
func Code128PNG(value string, width, height int) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("empty barcode value")
	}
	code, err := code128.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode code128: %w", err)
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, toNRGBA(scaled)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// gofpdf rejects paletted PNGs from barcode.Scale, so images are redrawn as NRGBA.
func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}

// PlaceImage registers png under name and draws it at x,y with size w,h.
func PlaceImage(pdf *gofpdf.Fpdf, name string, pngBytes []byte, x, y, w, h float64) {
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(pngBytes))
	pdf.ImageOptions(name, x, y, w, h, false, opt, 0, "")
}

// FitFontSize shrinks the font in half-point steps until text fits maxWidth or min is reached.
func FitFontSize(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

// Output renders the document to bytes.
func Output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
