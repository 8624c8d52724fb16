package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"sync"
	"testing"
)

// indexEncoder embeds "3" as [3, 0] and so on, so output order is
// checkable. It records batch calls.
type indexEncoder struct {
	mu      sync.Mutex
	batches [][]string
	fail    error
}

func (e *indexEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, err
	}
	return []float32{float32(n), 0}, nil
}

func (e *indexEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, texts)
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *indexEncoder) Dimensions() int { return 2 }
func (e *indexEncoder) Close() error    { return nil }

func numberedTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	return texts
}

func TestEmbedTextEmpty(t *testing.T) {
	_, err := EmbedText(context.Background(), &indexEncoder{}, "", false)
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("got %v, want ErrEmptyText", err)
	}
}

func TestEmbedTextNormalize(t *testing.T) {
	vec, err := EmbedText(context.Background(), &indexEncoder{}, "5", true)
	if err != nil {
		t.Fatal(err)
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
		t.Errorf("norm = %v, want 1", math.Sqrt(norm))
	}
}

func TestEmbedTextsEmpty(t *testing.T) {
	enc := &indexEncoder{fail: errors.New("must not be called")}
	out, err := EmbedTexts(context.Background(), enc, nil, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("got %v, want nil", out)
	}
}

func TestEmbedTextsOrder(t *testing.T) {
	// Batch sizes that divide the input evenly, leave remainders and
	// exceed it must all produce the same ordered output.
	texts := numberedTexts(25)
	for _, batchSize := range []int{0, 1, 4, 25, 100} {
		t.Run(fmt.Sprintf("batch=%d", batchSize), func(t *testing.T) {
			out, err := EmbedTexts(context.Background(), &indexEncoder{}, texts, EncodeOptions{BatchSize: batchSize})
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != len(texts) {
				t.Fatalf("len = %d, want %d", len(out), len(texts))
			}
			for i, vec := range out {
				if vec[0] != float32(i) {
					t.Fatalf("out[%d] = %v, want [%d 0]", i, vec, i)
				}
			}
		})
	}
}

func TestEmbedTextsBatching(t *testing.T) {
	enc := &indexEncoder{}
	_, err := EmbedTexts(context.Background(), enc, numberedTexts(10), EncodeOptions{BatchSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.batches) != 3 {
		t.Errorf("batches = %d, want 3 (4+4+2)", len(enc.batches))
	}
}

func TestEmbedTextsNormalize(t *testing.T) {
	out, err := EmbedTexts(context.Background(), &indexEncoder{}, numberedTexts(8), EncodeOptions{BatchSize: 3, Normalize: true})
	if err != nil {
		t.Fatal(err)
	}
	// Text "0" embeds to the zero vector, which stays zero.
	for i, vec := range out[1:] {
		var norm float64
		for _, x := range vec {
			norm += float64(x) * float64(x)
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
			t.Errorf("out[%d] norm = %v, want 1", i+1, math.Sqrt(norm))
		}
	}
}

func TestEmbedTextsProgress(t *testing.T) {
	var mu sync.Mutex
	var lastDone, calls int
	opts := EncodeOptions{
		BatchSize: 4,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if done < lastDone {
				t.Errorf("done went backwards: %d after %d", done, lastDone)
			}
			lastDone = done
			if total != 10 {
				t.Errorf("total = %d, want 10", total)
			}
		},
	}
	_, err := EmbedTexts(context.Background(), &indexEncoder{}, numberedTexts(10), opts)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("progress calls = %d, want 3", calls)
	}
	if lastDone != 10 {
		t.Errorf("final done = %d, want 10", lastDone)
	}
}

func TestEmbedTextsEncoderError(t *testing.T) {
	wantErr := errors.New("model exploded")
	_, err := EmbedTexts(context.Background(), &indexEncoder{fail: wantErr}, numberedTexts(5), EncodeOptions{})
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want wrapped encoder error", err)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0, 0}
	NormalizeL2(zero)
	if !reflect.DeepEqual(zero, []float32{0, 0, 0}) {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestMockDeterministic(t *testing.T) {
	ctx := context.Background()
	mock := NewMock(64)
	a, err := mock.Embed(ctx, "The Quick Fox")
	if err != nil {
		t.Fatal(err)
	}
	b, err := mock.Embed(ctx, "the quick fox")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("embeddings must be case-insensitively deterministic")
	}
	if len(a) != 64 {
		t.Errorf("dimensions = %d, want 64", len(a))
	}
}

func TestMockSharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	mock := NewMock(0)
	if mock.Dimensions() != 384 {
		t.Fatalf("default dimensions = %d, want 384", mock.Dimensions())
	}
	dot := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	}
	query, _ := mock.Embed(ctx, "cats and dogs")
	related, _ := mock.Embed(ctx, "dogs chase cats")
	unrelated, _ := mock.Embed(ctx, "quarterly revenue report")
	if dot(query, related) <= dot(query, unrelated) {
		t.Error("texts sharing words must score higher than unrelated texts")
	}
}
