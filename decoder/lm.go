package decoder

// LMState is an opaque handle into a language model backend. The decoder
// never interprets it; it only stores states and compares them as part of
// hypothesis merging, so backends must return comparable values.
type LMState = any

// LM is the query contract of an external language model backend.
// Implementations must tolerate concurrent calls from multiple decode
// workers, either by being read-only after construction or by being cloned
// per worker before fan-out.
type LM interface {
	// Start returns the initial state. useUnknown selects an unknown-word
	// context instead of the sentence-start context.
	Start(useUnknown bool) LMState

	// Score returns the successor state and the score of extending state
	// with the vocabulary item at index. An invalid index yields a large
	// negative score rather than an error.
	Score(state LMState, index int) (LMState, float64)

	// Index maps a surface form to its vocabulary id; unknown forms map to
	// a reserved id.
	Index(word string) int
}
