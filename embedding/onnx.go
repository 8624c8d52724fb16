//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Model runs a BERT-style sentence-embedding model through ONNX
// Runtime. It requires CGO and the onnxruntime shared library. A Model
// is safe for concurrent use; inference runs are serialized over one
// pre-allocated tensor set.
type Model struct {
	name       string
	device     string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	cache      *lruCache

	session             *ort.AdvancedSession
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// loadModel is the Registry's default loader.
func loadModel(name, path, device string, opts ModelOptions) (Encoder, error) {
	return NewModel(name, path, device, opts)
}

// NewModel loads the ONNX model file at path for the given device.
// InitializeEnvironment is called if not already done.
func NewModel(name, path, device string, opts ModelOptions) (*Model, error) {
	opts.applyDefaults()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	sessionOpts, err := sessionOptions(device)
	if err != nil {
		return nil, err
	}
	if sessionOpts != nil {
		defer sessionOpts.Destroy()
	}

	tokenizer := &WordTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", opts.MaxTokens)

	shape := ort.NewShape(1, int64(opts.MaxTokens))
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(opts.Dimensions)), make([]float32, opts.Dimensions))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		sessionOpts,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	m := &Model{
		name:                name,
		device:              device,
		dimensions:          opts.Dimensions,
		maxTokens:           opts.MaxTokens,
		tokenizer:           tokenizer,
		session:             session,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}
	if opts.CacheSize > 0 {
		m.cache = newLRUCache(opts.CacheSize)
	}
	return m, nil
}

func sessionOptions(device string) (*ort.SessionOptions, error) {
	switch device {
	case "", DeviceCPU:
		return nil, nil
	case DeviceCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		opts, err := ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("session options: %w", err)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("enable cuda: %w", err)
		}
		return opts, nil
	case DeviceCoreML:
		opts, err := ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("session options: %w", err)
		}
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("enable coreml: %w", err)
		}
		return opts, nil
	default:
		return nil, fmt.Errorf("unsupported device %q", device)
	}
}

// Embed returns a fresh copy of the embedding for text. Results are
// served from the model's LRU cache when possible, so embedding the
// same text twice through the same model yields identical vectors.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.cache != nil {
		if cached, ok := m.cache.get(text); ok {
			return cloneVector(cached), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	inputIDs, attentionMask, tokenTypeIDs := m.tokenizer.Tokenize(text, m.maxTokens)
	copy(m.inputIDsTensor.GetData(), inputIDs)
	copy(m.attentionMaskTensor.GetData(), attentionMask)
	copy(m.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := m.session.Run(); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	embedding := make([]float32, m.dimensions)
	copy(embedding, m.outputTensor.GetData()[:m.dimensions])
	m.mu.Unlock()

	if m.cache != nil {
		m.cache.set(text, embedding)
	}
	return cloneVector(embedding), nil
}

// EmbedBatch embeds each text in order.
func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the model's output dimensionality.
func (m *Model) Dimensions() int { return m.dimensions }

// Name returns the model name the registry loaded it under.
func (m *Model) Name() string { return m.name }

// Device returns the execution device.
func (m *Model) Device() string { return m.device }

// Close destroys the session and its tensors.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.inputIDsTensor != nil {
		_ = m.inputIDsTensor.Destroy()
		m.inputIDsTensor = nil
	}
	if m.attentionMaskTensor != nil {
		_ = m.attentionMaskTensor.Destroy()
		m.attentionMaskTensor = nil
	}
	if m.tokenTypeIDsTensor != nil {
		_ = m.tokenTypeIDsTensor.Destroy()
		m.tokenTypeIDsTensor = nil
	}
	if m.outputTensor != nil {
		_ = m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return err
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
