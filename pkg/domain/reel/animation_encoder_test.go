package reel

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func testEncoderOptions() EncoderOptions {
	return EncoderOptions{
		Width:      64,
		Height:     48,
		FrameDelay: time.Second,
		Quality:    10,
	}
}

func TestAnimationEncoder_SingleFrameRoundTrip(t *testing.T) {
	encoder := NewAnimationEncoder(testEncoderOptions())

	data, err := encoder.Encode(context.Background(), []domain.FetchedImage{
		{URL: "https://img/1.png", Data: pngBytes(t, 32, 32, color.RGBA{B: 255, A: 255})},
	}, nil)
	require.NoError(t, err)

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Len(t, decoded.Image, 1)
	assert.Equal(t, 0, decoded.LoopCount)
	assert.Equal(t, []int{100}, decoded.Delay)
	assert.Equal(t, 64, decoded.Config.Width)
	assert.Equal(t, 48, decoded.Config.Height)

	r, g, b, _ := decoded.Image[0].At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}

func TestAnimationEncoder_MultipleFrames(t *testing.T) {
	opts := testEncoderOptions()
	opts.FrameDelay = 500 * time.Millisecond
	opts.Quality = 50

	encoder := NewAnimationEncoder(opts)

	images := []domain.FetchedImage{
		{URL: "https://img/1.png", Data: pngBytes(t, 32, 32, color.RGBA{R: 255, A: 255})},
		{URL: "https://img/2.png", Data: pngBytes(t, 100, 20, color.RGBA{G: 255, A: 255})},
		{URL: "https://img/3.png", Data: pngBytes(t, 10, 90, color.RGBA{B: 255, A: 255})},
	}

	progress := []FrameProgress{}

	data, err := encoder.Encode(context.Background(), images, func(p FrameProgress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Len(t, decoded.Image, 3)
	assert.Equal(t, 0, decoded.LoopCount)
	assert.Equal(t, []int{50, 50, 50}, decoded.Delay)
	assert.Equal(t, 1, bytes.Count(data, []byte("NETSCAPE2.0")))

	require.Len(t, progress, 3)
	for i, p := range progress {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, 3, p.Total)
	}
	assert.Equal(t, time.Duration(0), progress[2].ETA)
}

func TestAnimationEncoder_Errors(t *testing.T) {
	encoder := NewAnimationEncoder(testEncoderOptions())

	_, err := encoder.Encode(context.Background(), nil, nil)
	assert.True(t, domain.IsKind(err, domain.ErrorKindEncodeFailure))

	_, err = encoder.Encode(context.Background(), []domain.FetchedImage{
		{URL: "https://img/broken.png", Data: []byte("not an image")},
	}, nil)
	assert.True(t, domain.IsKind(err, domain.ErrorKindEncodeFailure))
	assert.Contains(t, err.Error(), "https://img/broken.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = encoder.Encode(ctx, []domain.FetchedImage{
		{URL: "https://img/1.png", Data: pngBytes(t, 8, 8, color.Black)},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAnimationEncoder_Defaults(t *testing.T) {
	encoder := NewAnimationEncoder(EncoderOptions{Width: 10, Height: 10})

	assert.Equal(t, DefaultFrameDelay, encoder.opts.FrameDelay)
	assert.Equal(t, DefaultQuality, encoder.opts.Quality)
}

func TestWithLoopExtension(t *testing.T) {
	var buf bytes.Buffer

	err := gif.EncodeAll(&buf, &gif.GIF{
		Image: []*image.Paletted{image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})},
		Delay: []int{10},
	})
	require.NoError(t, err)

	withoutExtension, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, -1, withoutExtension.LoopCount)

	patched := withLoopExtension(buf.Bytes(), 0)

	decoded, err := gif.DecodeAll(bytes.NewReader(patched))
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.LoopCount)
	assert.Len(t, decoded.Image, 1)

	assert.Equal(t, patched, withLoopExtension(patched, 0))
}
