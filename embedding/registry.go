package embedding

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Supported devices. An empty device selects DeviceCPU.
const (
	DeviceCPU    = "cpu"
	DeviceCUDA   = "cuda"
	DeviceCoreML = "coreml"
)

// ModelLoadError indicates that a model could not be resolved or loaded
// for the requested device.
type ModelLoadError struct {
	Name   string
	Device string
	cause  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q on device %q: %v", e.Name, e.Device, e.cause)
}

func (e *ModelLoadError) Unwrap() error { return e.cause }

// ModelOptions configure a model at load time.
type ModelOptions struct {
	// MaxTokens is the tokenized sequence length. Defaults to 256.
	MaxTokens int
	// Dimensions is the model's output dimensionality. Defaults to 384
	// (all-MiniLM-L6-v2).
	Dimensions int
	// CacheSize caps the per-model text→vector LRU cache. 0 disables
	// caching.
	CacheSize int
}

func (o *ModelOptions) applyDefaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 256
	}
	if o.Dimensions <= 0 {
		o.Dimensions = 384
	}
}

// LoaderFunc loads an encoder for a resolved model path and device.
// The default loader builds ONNX models; tests inject their own.
type LoaderFunc func(name, path, device string, opts ModelOptions) (Encoder, error)

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// ModelDir is the directory model names resolve against.
	ModelDir string
	// Model holds per-model load settings.
	Model ModelOptions
	// Loader overrides the default ONNX loader.
	Loader LoaderFunc
	// Logger is optional.
	Logger *zap.Logger
}

// Registry caches loaded models keyed by (name, device) so each
// distinct model loads at most once per registry lifetime. It replaces
// ambient global model state: construct one and inject it wherever
// embeddings are needed.
type Registry struct {
	modelDir string
	model    ModelOptions
	loader   LoaderFunc
	log      *zap.Logger

	mu     sync.Mutex
	models map[registryKey]Encoder
}

type registryKey struct {
	name   string
	device string
}

// NewRegistry creates an empty model registry.
func NewRegistry(opts RegistryOptions) *Registry {
	opts.Model.applyDefaults()
	if opts.Loader == nil {
		opts.Loader = loadModel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		modelDir: opts.ModelDir,
		model:    opts.Model,
		loader:   opts.Loader,
		log:      opts.Logger,
		models:   make(map[registryKey]Encoder),
	}
}

// Get returns the cached encoder for (name, device), loading it on
// first use. Repeated calls with the same key return the same handle.
// The check-then-insert is guarded, so concurrent first use loads once.
func (r *Registry) Get(name, device string) (Encoder, error) {
	if name == "" {
		return nil, &ModelLoadError{Name: name, Device: device, cause: fmt.Errorf("model name must not be empty")}
	}
	device, err := normalizeDevice(device)
	if err != nil {
		return nil, &ModelLoadError{Name: name, Device: device, cause: err}
	}

	key := registryKey{name: name, device: device}
	r.mu.Lock()
	defer r.mu.Unlock()
	if enc, ok := r.models[key]; ok {
		return enc, nil
	}

	path := r.resolvePath(name)
	enc, err := r.loader(name, path, device, r.model)
	if err != nil {
		return nil, &ModelLoadError{Name: name, Device: device, cause: err}
	}
	r.models[key] = enc
	r.log.Info("loaded embedding model",
		zap.String("model", name),
		zap.String("device", device),
		zap.Int("dimensions", enc.Dimensions()))
	return enc, nil
}

// Close closes every cached model and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for key, enc := range r.models {
		if err := enc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close model %q: %w", key.name, err)
		}
		delete(r.models, key)
	}
	return firstErr
}

// resolvePath maps a model name to its on-disk file. Names that already
// point at an .onnx file (or an absolute path) are used as-is; bare
// names resolve to <model_dir>/<name>.onnx.
func (r *Registry) resolvePath(name string) string {
	if filepath.IsAbs(name) || strings.HasSuffix(name, ".onnx") {
		return name
	}
	return filepath.Join(r.modelDir, name+".onnx")
}

func normalizeDevice(device string) (string, error) {
	switch device {
	case "", DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA, DeviceCoreML:
		return device, nil
	default:
		return device, fmt.Errorf("unsupported device %q (supported: cpu, cuda, coreml)", device)
	}
}
