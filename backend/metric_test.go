package backend

import (
	"math"
	"testing"
)

func TestMetricFromMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		want     Metric
		wantErr  bool
	}{
		{"nil defaults to cosine", nil, MetricCosine, false},
		{"absent key defaults to cosine", map[string]any{"other": 1}, MetricCosine, false},
		{"l2", map[string]any{"space": "l2"}, MetricL2, false},
		{"ip", map[string]any{"space": "ip"}, MetricIP, false},
		{"unknown metric", map[string]any{"space": "hamming"}, "", true},
		{"non-string value", map[string]any{"space": 7}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MetricFromMetadata(tt.metadata)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("MetricFromMetadata() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	if d := CosineDistance(a, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("identical vectors: distance = %v, want 0", d)
	}
	if d := CosineDistance(a, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors: distance = %v, want 1", d)
	}
	if d := CosineDistance(a, []float32{-1, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("opposite vectors: distance = %v, want 2", d)
	}
	// Scale invariance.
	if d := CosineDistance(a, []float32{5, 0}); math.Abs(d) > 1e-6 {
		t.Errorf("scaled vector: distance = %v, want 0", d)
	}
	if d := CosineDistance(a, []float32{0, 0}); d != 1 {
		t.Errorf("zero vector: distance = %v, want 1", d)
	}
}

func TestSquaredL2Distance(t *testing.T) {
	d := SquaredL2Distance([]float32{1, 2}, []float32{4, 6})
	if math.Abs(d-25) > 1e-9 {
		t.Errorf("distance = %v, want 25", d)
	}
}

func TestInnerProductDistance(t *testing.T) {
	d := InnerProductDistance([]float32{1, 0}, []float32{1, 0})
	if math.Abs(d) > 1e-9 {
		t.Errorf("unit dot: distance = %v, want 0", d)
	}
}

func TestMetricDistanceRanking(t *testing.T) {
	// All three metrics must rank a near duplicate above an unrelated
	// vector.
	query := []float32{1, 0, 0}
	near := []float32{0.9, 0.1, 0}
	far := []float32{0, 0, 1}
	for _, metric := range []Metric{MetricCosine, MetricL2, MetricIP} {
		fn, err := metric.Distance()
		if err != nil {
			t.Fatal(err)
		}
		if fn(query, near) >= fn(query, far) {
			t.Errorf("%s: near vector should rank ahead of far vector", metric)
		}
	}
}

func TestValidateAdd(t *testing.T) {
	ok := AddRequest{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float32{{1}, {2}},
		Documents:  []string{"x", "y"},
	}
	if err := ValidateAdd(ok); err != nil {
		t.Fatal(err)
	}
	bad := AddRequest{
		IDs:        []string{"a"},
		Embeddings: [][]float32{{1}, {2}},
	}
	if err := ValidateAdd(bad); err == nil {
		t.Error("expected error for ids/embeddings mismatch")
	}
	badDocs := ok
	badDocs.Documents = []string{"x"}
	if err := ValidateAdd(badDocs); err == nil {
		t.Error("expected error for documents mismatch")
	}
}
