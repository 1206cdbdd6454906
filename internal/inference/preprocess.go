package inference

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"

	"golang.org/x/image/draw"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/imaging"
)

const (
	InputSize = 224
	Channels  = 3
)

// Tensor is a single HWC image scaled to [0,1], stored row-major.
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

func (t Tensor) Validate() error {
	if t.Height != InputSize || t.Width != InputSize {
		return &InvalidImageError{Reason: fmt.Sprintf("tensor shape %dx%d, want %dx%d", t.Height, t.Width, InputSize, InputSize)}
	}
	if len(t.Data) != t.Height*t.Width*Channels {
		return &InvalidImageError{Reason: fmt.Sprintf("tensor has %d values, want %d", len(t.Data), t.Height*t.Width*Channels)}
	}
	for i, v := range t.Data {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return &InvalidImageError{Reason: fmt.Sprintf("tensor value %v at %d outside [0,1]", v, i)}
		}
	}
	return nil
}

// At returns the channel value at row y, column x.
func (t Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*Channels+c]
}

// Nested returns the tensor as [height][width][channel] for JSON encoding.
func (t Tensor) Nested() [][][]float32 {
	out := make([][][]float32, t.Height)
	for y := range out {
		row := make([][]float32, t.Width)
		for x := range row {
			i := (y*t.Width + x) * Channels
			row[x] = t.Data[i : i+Channels : i+Channels]
		}
		out[y] = row
	}
	return out
}

// Preprocess decodes a JPEG, PNG or GIF upload, flattens it to RGB and
// returns the model tensor together with the full-size RGB image.
func Preprocess(r io.Reader) (Tensor, image.Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Tensor{}, nil, &InvalidImageError{Reason: "reading upload", Err: err}
	}
	if len(raw) == 0 {
		return Tensor{}, nil, &InvalidImageError{Reason: "empty upload"}
	}

	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Tensor{}, nil, &InvalidImageError{Reason: "unsupported or corrupt image", Err: err}
	}

	rgb := imaging.ToRGB(src)

	// Nearest neighbour matches the resampling the model was trained with.
	scaled := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)

	t := Tensor{Height: InputSize, Width: InputSize, Data: make([]float32, InputSize*InputSize*Channels)}
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			p := scaled.RGBAAt(x, y)
			i := (y*InputSize + x) * Channels
			t.Data[i] = float32(p.R) / 255
			t.Data[i+1] = float32(p.G) / 255
			t.Data[i+2] = float32(p.B) / 255
		}
	}

	return t, rgb, nil
}
