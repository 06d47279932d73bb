// Package tokenizer encodes text with a trained BPE model by replaying its
// merges in the order they were learned.
package tokenizer

// Tokenizer encodes text into token IDs.
type Tokenizer interface {
	// Encode tokenizes text and returns token IDs.
	Encode(text string) ([]int64, error)
}

// Decoder turns token IDs back into text.
type Decoder interface {
	Decode(ids []int64) (string, error)
}
