package camera

import (
	"image"
	"image/color"
)

// FrameBytes flattens img into one luma byte per pixel, row by row. Planar
// and gray images are copied directly; anything else goes through
// color.GrayModel. The result does not alias img.
func FrameBytes(img image.Image) []byte {
	if img == nil {
		return nil
	}
	r := img.Bounds()
	if r.Empty() {
		return nil
	}
	w, h := r.Dx(), r.Dy()
	out := make([]byte, 0, w*h)

	switch im := img.(type) {
	case *image.YCbCr:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			start := im.YOffset(r.Min.X, y)
			out = append(out, im.Y[start:start+w]...)
		}
	case *image.Gray:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			start := im.PixOffset(r.Min.X, y)
			out = append(out, im.Pix[start:start+w]...)
		}
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				out = append(out, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			}
		}
	}
	return out
}
