package embedding

import (
	"reflect"
	"testing"
)

func TestWordTokenizer(t *testing.T) {
	var tok WordTokenizer
	inputIDs, attentionMask, tokenTypeIDs := tok.Tokenize("hello world", 8)

	if len(inputIDs) != 8 || len(attentionMask) != 8 || len(tokenTypeIDs) != 8 {
		t.Fatalf("lengths = %d/%d/%d, want 8", len(inputIDs), len(attentionMask), len(tokenTypeIDs))
	}
	if inputIDs[0] != tokenCLS {
		t.Errorf("inputIDs[0] = %d, want CLS (%d)", inputIDs[0], tokenCLS)
	}
	if inputIDs[3] != tokenSEP {
		t.Errorf("inputIDs[3] = %d, want SEP (%d)", inputIDs[3], tokenSEP)
	}
	// CLS, two words, SEP attended; the rest is padding.
	wantMask := []int64{1, 1, 1, 1, 0, 0, 0, 0}
	if !reflect.DeepEqual(attentionMask, wantMask) {
		t.Errorf("attentionMask = %v, want %v", attentionMask, wantMask)
	}
	for i, id := range tokenTypeIDs {
		if id != 0 {
			t.Errorf("tokenTypeIDs[%d] = %d, want 0", i, id)
		}
	}
	for _, pos := range []int{1, 2} {
		if inputIDs[pos] <= 0 || inputIDs[pos] >= vocabSize {
			t.Errorf("inputIDs[%d] = %d, outside vocabulary", pos, inputIDs[pos])
		}
	}
}

func TestWordTokenizerDeterministic(t *testing.T) {
	var tok WordTokenizer
	a, _, _ := tok.Tokenize("same words each time", 16)
	b, _, _ := tok.Tokenize("same words each time", 16)
	if !reflect.DeepEqual(a, b) {
		t.Error("tokenization must be deterministic")
	}
}

func TestWordTokenizerTruncation(t *testing.T) {
	var tok WordTokenizer
	inputIDs, attentionMask, _ := tok.Tokenize("one two three four five six", 4)

	if inputIDs[0] != tokenCLS {
		t.Errorf("inputIDs[0] = %d, want CLS", inputIDs[0])
	}
	// Positions 1 and 2 hold words, position 3 the SEP; nothing overflows.
	if inputIDs[3] != tokenSEP {
		t.Errorf("inputIDs[3] = %d, want SEP", inputIDs[3])
	}
	for i, m := range attentionMask {
		if m != 1 {
			t.Errorf("attentionMask[%d] = %d, want 1 (fully used)", i, m)
		}
	}
}

func TestWordTokenizerWhitespace(t *testing.T) {
	got := splitWords("  hello\tthere\n world  ")
	want := []string{"hello", "there", "world"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitWords = %v, want %v", got, want)
	}
	if splitWords("") != nil {
		t.Error("empty text should yield no words")
	}
}
