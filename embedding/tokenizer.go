package embedding

import (
	"hash/fnv"
	"unicode"
)

// BERT special token ids.
const (
	tokenCLS int64 = 101
	tokenSEP int64 = 102
)

// vocabSize bounds hashed token ids to a BERT-sized vocabulary.
const vocabSize = 30000

// Tokenizer produces the input_ids, attention_mask and token_type_ids
// a BERT-style model expects, padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordTokenizer splits on whitespace and hashes each word to a token
// id. It is not a WordPiece vocabulary; it trades exact token ids for
// zero external files, which is adequate for similarity workloads where
// every text is tokenized the same way.
type WordTokenizer struct{}

// Tokenize produces padded token id slices of length maxTokens with
// [CLS] and [SEP] markers.
func (t *WordTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range splitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = hashToken(word)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

// hashToken maps a word deterministically into the vocabulary range.
func hashToken(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(h.Sum32() % vocabSize)
}
