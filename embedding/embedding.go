// Package embedding turns text into dense float32 vectors.
//
// Model files are loaded and cached by a Registry keyed on
// (model name, device); the ONNX-backed Model needs CGO and the
// onnxruntime shared library, Mock is a deterministic stand-in for
// tests and model-less environments. Func adapts any Encoder to the
// batch-in/batch-out shape the storage backend consumes.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the encode batch size used when none is set.
const DefaultBatchSize = 32

// encodeConcurrency bounds how many batches encode at once.
const encodeConcurrency = 4

// ErrEmptyText is returned when a single-text embed is asked for an
// empty string. Empty batches are valid no-ops; an empty single text is
// not.
var ErrEmptyText = errors.New("embedding: text must not be empty")

// Encoder produces vector embeddings for text. Embed and EmbedBatch
// return raw (un-normalized) vectors; normalization is applied by the
// EmbedText/EmbedTexts helpers when requested.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EncodeOptions shape a batched encode. BatchSize is purely a
// throughput knob: results are identical for any batch size. Progress,
// when set, is called after each batch with the number of texts done.
type EncodeOptions struct {
	BatchSize int
	Normalize bool
	Progress  func(done, total int)
}

// EmbedText embeds a single text. Returns ErrEmptyText for an empty
// string. With normalize the result has unit L2 norm.
func EmbedText(ctx context.Context, enc Encoder, text string, normalize bool) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vec, err := enc.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if normalize {
		NormalizeL2(vec)
	}
	return vec, nil
}

// EmbedTexts embeds a batch of texts, one vector per text in input
// order. An empty input returns an empty result without touching the
// encoder. Batches of opts.BatchSize may encode concurrently; each
// batch writes into its own pre-sized slots, so order never changes.
func EmbedTexts(ctx context.Context, enc Encoder, texts []string, opts EncodeOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, len(texts))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(encodeConcurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := enc.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			if opts.Normalize {
				for _, vec := range out[start:end] {
					NormalizeL2(vec)
				}
			}
			if opts.Progress != nil {
				mu.Lock()
				done += end - start
				opts.Progress(done, len(texts))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeL2 scales v in place to unit L2 norm. A zero vector is left
// unchanged.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
