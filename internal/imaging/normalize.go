package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

var ErrImageProcessing = errors.New("image processing failed")

const (
	// History derivative trades fidelity for storage footprint.
	historyMaxEdge = 200
	historyQuality = 40

	// Analysis derivative balances sign legibility against upload latency.
	analysisMaxEdge = 1024
	analysisQuality = 70
)

// HistoryDerivative re-encodes a capture for the bounded local history.
func HistoryDerivative(data []byte) ([]byte, error) {
	return derive(data, historyMaxEdge, historyQuality)
}

// AnalysisDerivative re-encodes a capture for the vision model call.
func AnalysisDerivative(data []byte) ([]byte, error) {
	return derive(data, analysisMaxEdge, analysisQuality)
}

// derive scales the longest edge down to maxEdge and re-encodes as JPEG.
// Aspect ratio is preserved and images are never upscaled: input already
// within the cap is returned unchanged.
func derive(data []byte, maxEdge, quality int) ([]byte, error) {
	orientation := exifOrientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrImageProcessing, err)
	}

	if orientation != 1 {
		img = correctOrientation(img, orientation)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge && orientation == 1 {
		return data, nil
	}

	scale := 1.0
	if w > maxEdge || h > maxEdge {
		scale = float64(maxEdge) / float64(w)
		if sy := float64(maxEdge) / float64(h); sy < scale {
			scale = sy
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrImageProcessing, err)
	}
	return buf.Bytes(), nil
}

// exifOrientation reads the EXIF orientation tag, defaulting to 1.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// correctOrientation bakes the EXIF orientation into the pixel data so the
// re-encoded JPEG renders upright without the tag.
func correctOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return flipH(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipH(rotate180(img))
	case 5:
		return flipH(rotate90(img))
	case 6:
		return rotate90(img)
	case 7:
		return flipH(rotate270(img))
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func flipH(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, b.Dy()-1-y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dy()-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(y, b.Dx()-1-x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// DecodeDataURI accepts either a bare base64 payload or a full
// data:image/...;base64, URI as sent by browser capture inputs.
func DecodeDataURI(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data URI", ErrImageProcessing)
		}
		s = s[idx+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty image payload", ErrImageProcessing)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrImageProcessing, err)
	}
	return data, nil
}
