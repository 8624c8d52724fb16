package embedding

import (
	"context"

	"go.uber.org/zap"
)

// Options fix an adapter's encode configuration at construction time.
type Options struct {
	// BatchSize sets the encode batch size (default 32).
	BatchSize int
	// Normalize L2-normalizes every vector the adapter emits.
	Normalize bool
	// ShowProgress logs per-batch progress through the adapter's logger.
	ShowProgress bool
}

// Func adapts an Encoder to the batch-in/batch-out shape the storage
// backend binds to collections. The configuration is captured once; the
// store never talks to the model directly, so any other function of the
// same shape can replace it.
type Func struct {
	enc  Encoder
	opts Options
	log  *zap.Logger
}

// NewFunc wraps enc with a fixed encode configuration. A nil logger
// disables progress logging.
func NewFunc(enc Encoder, opts Options, log *zap.Logger) *Func {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Func{enc: enc, opts: opts, log: log}
}

// Call embeds a batch of texts, one vector per text in input order. An
// empty batch returns an empty result without invoking the encoder.
// Call satisfies backend.EmbedFunc.
func (f *Func) Call(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	encOpts := EncodeOptions{
		BatchSize: f.opts.BatchSize,
		Normalize: f.opts.Normalize,
	}
	if f.opts.ShowProgress {
		encOpts.Progress = func(done, total int) {
			f.log.Info("embedding progress", zap.Int("done", done), zap.Int("total", total))
		}
	}
	return EmbedTexts(ctx, f.enc, texts, encOpts)
}

// Encoder returns the wrapped encoder.
func (f *Func) Encoder() Encoder { return f.enc }
