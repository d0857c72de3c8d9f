package language

import "sort"

// UnkWord is the reserved surface form for unknown words.
const UnkWord = "<unk>"

// sentenceStart marks the <s> context in an adapter state.
const sentenceStart int32 = -2

// none marks an empty history slot in an adapter state.
const none int32 = -1

// invalidScore is returned when Score is asked about an index outside the
// vocabulary. Large and negative so such extensions lose to any real one,
// but finite so accumulated hypothesis scores stay ordered.
const invalidScore = -1e5

// modelState holds the last two word ids of a hypothesis. It is a plain
// comparable value so the decoder can use it as part of a merge key.
type modelState [2]int32

// Model adapts an NGramModel to the id-indexed query contract the decoder
// uses: Start, Score and Index. The vocabulary is ordered deterministically
// (sorted unigrams, <unk> reserved) so ids are stable across runs.
// A Model is read-only after construction and safe for concurrent use.
type Model struct {
	ngram *NGramModel
	words []string
	ids   map[string]int
	unk   int
}

// NewModel builds an adapter over a loaded n-gram model.
func NewModel(ngram *NGramModel) *Model {
	words := make([]string, 0, len(ngram.Unigrams)+1)
	for w := range ngram.Unigrams {
		words = append(words, w)
	}
	sort.Strings(words)

	m := &Model{ngram: ngram, words: words, ids: make(map[string]int, len(words)+1)}
	for i, w := range words {
		m.ids[w] = i
	}
	if id, ok := m.ids[UnkWord]; ok {
		m.unk = id
	} else {
		m.unk = len(m.words)
		m.words = append(m.words, UnkWord)
		m.ids[UnkWord] = m.unk
	}
	return m
}

// Start returns the initial state at the sentence boundary. When useUnknown
// is set the context is left empty instead, which scores the first query as
// a bare unigram.
func (m *Model) Start(useUnknown bool) any {
	if useUnknown {
		return modelState{none, none}
	}
	return modelState{none, sentenceStart}
}

// Score returns the successor state and the log probability of the word at
// index given the state's history. An index outside the vocabulary yields a
// large negative score and leaves the state unchanged.
func (m *Model) Score(state any, index int) (any, float64) {
	s := state.(modelState)
	if index < 0 || index >= len(m.words) {
		return state, invalidScore
	}

	var hist []string
	for _, id := range s {
		switch {
		case id == none:
		case id == sentenceStart:
			hist = append(hist, "<s>")
		default:
			hist = append(hist, m.words[id])
		}
	}

	lp := m.ngram.LogProb(hist, m.words[index])
	return modelState{s[1], int32(index)}, lp
}

// Index returns the vocabulary id for a surface form, or the reserved
// unknown id when the form is out of vocabulary.
func (m *Model) Index(word string) int {
	if id, ok := m.ids[word]; ok {
		return id
	}
	return m.unk
}

// UnkIndex returns the reserved unknown id.
func (m *Model) UnkIndex() int {
	return m.unk
}
