package reel

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/flowbaker/runreel/pkg/domain"

	"golang.org/x/image/draw"
)

const (
	DefaultFrameDelay = time.Second
	DefaultQuality    = 10

	// Quality values above this threshold skip dithering.
	ditherQualityThreshold = 10
)

type EncoderOptions struct {
	Width      int
	Height     int
	FrameDelay time.Duration
	Quality    int
}

type FrameProgress struct {
	Index         int
	Total         int
	FrameDuration time.Duration
	Elapsed       time.Duration
	ETA           time.Duration
}

type FrameProgressFunc func(progress FrameProgress)

// AnimationEncoder turns images into a looping gif, one frame per image. Frames share a single
// drawing surface, so an encoder must only be used by one goroutine at a time.
type AnimationEncoder struct {
	opts       EncoderOptions
	normalizer *FrameNormalizer
	drawer     draw.Drawer
}

func NewAnimationEncoder(opts EncoderOptions) *AnimationEncoder {
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = DefaultFrameDelay
	}

	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}

	var drawer draw.Drawer = draw.FloydSteinberg
	if opts.Quality > ditherQualityThreshold {
		drawer = draw.Src
	}

	return &AnimationEncoder{
		opts:       opts,
		normalizer: NewFrameNormalizer(opts.Width, opts.Height),
		drawer:     drawer,
	}
}

func (e *AnimationEncoder) Encode(ctx context.Context, images []domain.FetchedImage, onFrame FrameProgressFunc) ([]byte, error) {
	if len(images) == 0 {
		return nil, domain.NewReelError(domain.ErrorKindEncodeFailure, "no frames to encode", nil)
	}

	bounds := e.normalizer.Bounds()
	delay := int(e.opts.FrameDelay / (10 * time.Millisecond))

	animation := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(images)),
		Delay:     make([]int, 0, len(images)),
		LoopCount: 0,
		Config: image.Config{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		},
	}

	total := len(images)
	startedAt := time.Now()

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewReelError(domain.ErrorKindEncodeFailure, "encoding cancelled", err)
		}

		frameStartedAt := time.Now()

		src, _, err := image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, domain.NewReelError(domain.ErrorKindEncodeFailure, fmt.Sprintf("failed to decode image %d (%s)", i+1, img.URL), err)
		}

		canvas := e.normalizer.Normalize(src)

		frame := image.NewPaletted(bounds, palette.Plan9)
		e.drawer.Draw(frame, bounds, canvas, bounds.Min)

		animation.Image = append(animation.Image, frame)
		animation.Delay = append(animation.Delay, delay)

		if onFrame != nil {
			elapsed := time.Since(startedAt)
			average := elapsed / time.Duration(i+1)

			onFrame(FrameProgress{
				Index:         i,
				Total:         total,
				FrameDuration: time.Since(frameStartedAt),
				Elapsed:       elapsed,
				ETA:           average * time.Duration(total-(i+1)),
			})
		}
	}

	var buf bytes.Buffer

	if err := gif.EncodeAll(&buf, animation); err != nil {
		return nil, domain.NewReelError(domain.ErrorKindEncodeFailure, "failed to encode gif", err)
	}

	return withLoopExtension(buf.Bytes(), animation.LoopCount), nil
}

var netscapeExtensionPrefix = []byte("\x21\xff\x0bNETSCAPE2.0")

// withLoopExtension makes sure the NETSCAPE2.0 loop block is present. image/gif only writes it
// for animations with more than one frame.
func withLoopExtension(data []byte, loopCount int) []byte {
	const screenDescriptorEnd = 13

	if len(data) < screenDescriptorEnd {
		return data
	}

	offset := screenDescriptorEnd

	if packed := data[10]; packed&0x80 != 0 {
		offset += 3 * (1 << ((packed & 0x07) + 1))
	}

	if offset > len(data) || bytes.HasPrefix(data[offset:], netscapeExtensionPrefix) {
		return data
	}

	extension := append([]byte{}, netscapeExtensionPrefix...)
	extension = append(extension, 0x03, 0x01, byte(loopCount), byte(loopCount>>8), 0x00)

	out := make([]byte, 0, len(data)+len(extension))
	out = append(out, data[:offset]...)
	out = append(out, extension...)
	out = append(out, data[offset:]...)

	return out
}
