package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_ImageRGBAndBGR(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60}

	img, err := Frame{Data: data, Width: 2, Height: 1, Format: PixelRGB8}.Image()
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})

	img, err = Frame{Data: data, Width: 2, Height: 1, Format: PixelBGR8}.Image()
	require.NoError(t, err)
	r, _, b, _ = img.At(1, 0).RGBA()
	assert.Equal(t, uint32(60), r>>8)
	assert.Equal(t, uint32(40), b>>8)
}

func TestFrame_ImageMono(t *testing.T) {
	img, err := Frame{Data: []byte{0, 128, 255, 1}, Width: 2, Height: 2, Format: PixelMono8}.Image()
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 255}, img.At(0, 1))
}

func TestFrame_ImageJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4)), nil))

	img, err := Frame{Data: buf.Bytes(), Format: PixelJPEG}.Image()
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestFrame_ImageShortBuffer(t *testing.T) {
	_, err := Frame{Data: []byte{1, 2}, Width: 2, Height: 2, Format: PixelRGB8}.Image()
	assert.Error(t, err)
}

func TestTemperatureMatrix_CheckResolution(t *testing.T) {
	res := Resolution{Width: 512, Height: 384}

	ok := TemperatureMatrix{Width: 512, Height: 384, Values: make([]float32, 196608)}
	assert.NoError(t, ok.CheckResolution(res))

	short := TemperatureMatrix{Values: make([]float32, 196607)}
	assert.ErrorIs(t, short.CheckResolution(res), ErrResolutionMismatch)

	assert.ErrorIs(t, ok.CheckResolution(Resolution{}), ErrResolutionMismatch)
}

func TestOpError_Matching(t *testing.T) {
	cause := &VendorError{Call: "SGP_OpenIrVideo", Code: 0x10}
	err := fmt.Errorf("プレビュー開始に失敗: %w", NewOpError(ErrStreamStartFailed, KindInfrared, "start_stream", cause))

	assert.ErrorIs(t, err, ErrStreamStartFailed)
	assert.NotErrorIs(t, err, ErrInvalidState)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrStreamStartFailed, kind)

	code, ok := VendorCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x10), code)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, KindInfrared, opErr.Sensor)
	assert.Contains(t, opErr.Error(), "start_stream")
}

func TestKindOf_BareKind(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("wrap: %w", ErrCaptureBusy))
	require.True(t, ok)
	assert.Equal(t, ErrCaptureBusy, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestValidateParameter(t *testing.T) {
	assert.NoError(t, ValidateParameter(KindVisible, ParamFrameRate, 0.1))
	assert.NoError(t, ValidateParameter(KindVisible, ParamExposure, 20000))
	assert.NoError(t, ValidateParameter(KindInfrared, ParamPalette, PaletteCount))
	assert.ErrorIs(t, ValidateParameter(KindVisible, ParamPalette, 1), ErrInvalidParameter)
	assert.ErrorIs(t, ValidateParameter(KindInfrared, ParamExposure, 100), ErrInvalidParameter)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("infrared")
	assert.True(t, ok)
	assert.Equal(t, KindInfrared, k)

	_, ok = ParseKind("uv")
	assert.False(t, ok)
}
