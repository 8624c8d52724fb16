//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("onnx models require CGO; build with CGO_ENABLED=1 and the onnxruntime library installed")

// Model is a stub when built without CGO (see onnx.go for the real
// implementation).
type Model struct{}

// loadModel is the Registry's default loader.
func loadModel(name, path, device string, opts ModelOptions) (Encoder, error) {
	return nil, errNoCGO
}

// NewModel fails when built without CGO.
func NewModel(name, path, device string, opts ModelOptions) (*Model, error) {
	return nil, errNoCGO
}

func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoCGO
}

func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errNoCGO
}

func (m *Model) Dimensions() int { return 0 }

func (m *Model) Name() string { return "" }

func (m *Model) Device() string { return "" }

func (m *Model) Close() error { return nil }
