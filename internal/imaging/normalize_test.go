package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestHistoryDerivativeCapsLongestEdge(t *testing.T) {
	src := makeJPEG(t, 800, 400)

	out, err := HistoryDerivative(src)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
	assert.Less(t, len(out), len(src))
}

func TestAnalysisDerivativeCapsLongestEdge(t *testing.T) {
	src := makeJPEG(t, 2048, 1024)

	out, err := AnalysisDerivative(src)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 512, h)
}

func TestDeriveNeverUpscales(t *testing.T) {
	src := makeJPEG(t, 100, 80)

	out, err := HistoryDerivative(src)
	require.NoError(t, err)
	assert.Equal(t, src, out, "an image within the cap is returned unchanged")
}

func TestDeriveRejectsUndecodableInput(t *testing.T) {
	_, err := HistoryDerivative([]byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageProcessing)
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	encoded := base64.StdEncoding.EncodeToString(payload)

	got, err := DecodeDataURI("data:image/jpeg;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = DecodeDataURI(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = DecodeDataURI("data:image/jpeg;base64")
	assert.ErrorIs(t, err, ErrImageProcessing)

	_, err = DecodeDataURI("")
	assert.ErrorIs(t, err, ErrImageProcessing)
}
