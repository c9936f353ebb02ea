package cache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/infrastructure/imageproc"
)

// fakeEncoder returns the mean color of the image plus a constant term.
type fakeEncoder struct {
	calls  atomic.Int32
	output []float32
	err    error
}

func (f *fakeEncoder) Encode(_ context.Context, img image.Image) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.output != nil {
		return f.output, nil
	}
	var r, g, b float64
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += float64(cr)
			g += float64(cg)
			b += float64(cb)
		}
	}
	return []float32{float32(r / n), float32(g / n), float32(b / n), 1000}, nil
}

func testImage(w, h int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x) + seed, G: uint8(y) * 3, B: seed, A: 0xff})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newCache(t *testing.T, enc embedding.Encoder, opts ...Option) *FileCache {
	t.Helper()
	opts = append([]Option{WithPreprocessor(imageproc.NewPreprocessor(imageproc.WithSize(16)))}, opts...)
	c, err := NewFileCache(t.TempDir(), enc, opts...)
	require.NoError(t, err)
	return c
}

func keyOf(t *testing.T, data []byte) string {
	t.Helper()
	img, err := imageproc.Load(data)
	require.NoError(t, err)
	canonical, err := imageproc.Canonical(img)
	require.NoError(t, err)
	return Key(canonical)
}

func TestFileCache_ColdThenWarmIsBitIdentical(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)
	data := pngBytes(t, testImage(40, 30, 7))

	cold, err := c.GetOrCompute(context.Background(), data)
	require.NoError(t, err)
	warm, err := c.GetOrCompute(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, int32(1), enc.calls.Load())
	require.Len(t, warm, len(cold))
	for i := range cold {
		assert.Equal(t, math.Float32bits(cold[i]), math.Float32bits(warm[i]))
	}
	assert.FileExists(t, c.path(keyOf(t, data)))
}

func TestFileCache_ResultIsUnitLength(t *testing.T) {
	c := newCache(t, &fakeEncoder{})
	for seed := range uint8(5) {
		v, err := c.GetOrCompute(context.Background(), pngBytes(t, testImage(20, 20, seed*40)))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v.Norm(), 1e-5)
	}
}

func TestFileCache_KeyIgnoresContainer(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)
	src := testImage(12, 9, 3)

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, src))

	a, err := c.GetOrCompute(context.Background(), pngBytes(t, src))
	require.NoError(t, err)
	b, err := c.GetOrCompute(context.Background(), bmpBuf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), enc.calls.Load())
}

func TestFileCache_NonFiniteEntryIsRecomputed(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)
	data := pngBytes(t, testImage(10, 10, 1))
	key := keyOf(t, data)

	nan := float32(math.NaN())
	require.NoError(t, os.MkdirAll(filepath.Dir(c.path(key)), 0o755))
	require.NoError(t, os.WriteFile(c.path(key), EncodeVector(embedding.Vector{nan, nan, 1, 0}), 0o644))

	v, err := c.GetOrCompute(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, v.Finite())
	assert.Equal(t, int32(1), enc.calls.Load())

	stored, err := os.ReadFile(c.path(key))
	require.NoError(t, err)
	decoded, err := DecodeVector(stored)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestFileCache_TruncatedEntryIsRecomputed(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)
	data := pngBytes(t, testImage(10, 10, 2))
	key := keyOf(t, data)

	require.NoError(t, os.MkdirAll(filepath.Dir(c.path(key)), 0o755))
	require.NoError(t, os.WriteFile(c.path(key), []byte{1, 2, 3}, 0o644))

	_, err := c.GetOrCompute(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, int32(1), enc.calls.Load())
}

func TestFileCache_ValidationDisabledTrustsEntries(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc, WithValidation(false))
	data := pngBytes(t, testImage(10, 10, 4))
	key := keyOf(t, data)

	nan := float32(math.NaN())
	require.NoError(t, os.MkdirAll(filepath.Dir(c.path(key)), 0o755))
	require.NoError(t, os.WriteFile(c.path(key), EncodeVector(embedding.Vector{nan, 1}), 0o644))

	v, err := c.GetOrCompute(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, v.Finite())
	assert.Equal(t, int32(0), enc.calls.Load())
}

func TestFileCache_InvalidEmbeddingNotStored(t *testing.T) {
	for name, out := range map[string][]float32{
		"zero": {0, 0, 0},
		"nan":  {float32(math.NaN()), 1, 1},
	} {
		t.Run(name, func(t *testing.T) {
			enc := &fakeEncoder{output: out}
			c := newCache(t, enc)
			data := pngBytes(t, testImage(10, 10, 5))

			_, err := c.GetOrCompute(context.Background(), data)
			require.ErrorIs(t, err, embedding.ErrInvalidEmbedding)
			assert.NoFileExists(t, c.path(keyOf(t, data)))
		})
	}
}

func TestFileCache_InvalidImage(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)

	_, err := c.GetOrCompute(context.Background(), []byte("not an image at all"))
	require.ErrorIs(t, err, embedding.ErrInvalidImage)
	assert.Equal(t, int32(0), enc.calls.Load())
}

func TestFileCache_EncoderError(t *testing.T) {
	boom := errors.New("model unavailable")
	c := newCache(t, &fakeEncoder{err: boom})

	_, err := c.GetOrCompute(context.Background(), pngBytes(t, testImage(10, 10, 6)))
	assert.ErrorIs(t, err, boom)
}

func TestFileCache_ConcurrentSameImage(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCache(t, enc)
	data := pngBytes(t, testImage(30, 30, 9))

	var wg sync.WaitGroup
	results := make([]embedding.Vector, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), data)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), enc.calls.Load())
	for _, v := range results[1:] {
		assert.Equal(t, results[0], v)
	}
}

func TestFileCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	enc := embedding.EncoderFunc(func(ctx context.Context, _ image.Image) ([]float32, error) {
		calls.Add(1)
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return []float32{1, 2, 3}, nil
		}
	})
	c := newCache(t, enc)
	data := pngBytes(t, testImage(20, 20, 11))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, data)
		errA <- err
	}()
	<-started
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	type result struct {
		vec embedding.Vector
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), data)
		resB <- result{v, err}
	}()
	close(release)

	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, 3, got.vec.Dimension())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCodec(t *testing.T) {
	v := embedding.Vector{0.25, -1, float32(math.Inf(1))}
	decoded, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = DecodeVector([]byte{1, 2})
	assert.Error(t, err)
	_, err = DecodeVector(nil)
	assert.Error(t, err)
}
