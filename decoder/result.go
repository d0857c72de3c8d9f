package decoder

// Result holds one decoded hypothesis. Tokens is the frame-wise class path
// (length T before any criterion cleanup); Words holds the word-dictionary
// ids finalized at word boundaries, empty for the lexicon-free variant.
type Result struct {
	Tokens []int
	Words  []int
	Score  float64
}
