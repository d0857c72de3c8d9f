package decoder

import (
	"math"
	"sort"

	"github.com/ieee0824/lexdecode-go/internal/mathutil"
)

// hyp is an active hypothesis in beam search.
type hyp struct {
	score  float64
	node   int32   // trie arena index; -1 when decoding without a lexicon
	state  LMState // opaque language model state
	parent int32   // history arena index of the committed predecessor
	token  int32   // emission class produced this frame; -1 before the first frame
	word   int32   // word finalized this frame, -1 otherwise
	blank  bool    // previous frame produced the blank class (CTC)
}

// histEntry is one committed frame of a hypothesis. Entries form an
// immutable shared-prefix tree inside the arena; the whole arena is dropped
// when the decode session ends.
type histEntry struct {
	token  int32
	word   int32
	parent int32
}

// mergeKey identifies hypotheses that are indistinguishable for future
// extensions. Last token and blank flag are part of the key because they
// govern repeat collapse and ASG transitions.
type mergeKey struct {
	node  int32
	token int32
	blank bool
	state LMState
}

// beam holds the per-session search state: the active set, the candidate
// buffer for the next frame and the history arena.
type beam struct {
	opt   *Options
	cur   []hyp
	cands []hyp
	best  float64
	hist  []histEntry
	seen  map[mergeKey]int
}

func newBeam(opt *Options) *beam {
	return &beam{
		opt:   opt,
		cur:   make([]hyp, 0, opt.BeamSize),
		cands: make([]hyp, 0, opt.BeamSize*4),
		seen:  make(map[mergeKey]int, opt.BeamSize),
	}
}

// reset prepares the candidate buffer for a new frame.
func (b *beam) reset() {
	b.cands = b.cands[:0]
	b.best = math.Inf(-1)
}

// add proposes a candidate. Candidates already more than BeamThreshold
// below the running frame best are rejected early; the final threshold cut
// happens in prune once the true best is known.
func (b *beam) add(h hyp) {
	if h.score > b.best {
		b.best = h.score
	}
	if h.score >= b.best-b.opt.BeamThreshold {
		b.cands = append(b.cands, h)
	}
}

// prune applies width pruning, threshold pruning and merging to the
// candidate buffer, commits the survivors' frames to the history arena and
// installs them as the active set. Returns the number of survivors.
func (b *beam) prune() int {
	// Stable sort keeps tie-breaking deterministic across runs.
	sort.SliceStable(b.cands, func(i, j int) bool {
		return b.cands[i].score > b.cands[j].score
	})

	cands := b.cands
	if len(cands) > b.opt.BeamSize {
		cands = cands[:b.opt.BeamSize]
	}
	threshold := b.best - b.opt.BeamThreshold
	for len(cands) > 0 && cands[len(cands)-1].score < threshold {
		cands = cands[:len(cands)-1]
	}

	// Merge hypotheses that are indistinguishable going forward. The first
	// occurrence is the best-scoring one and stays the representative;
	// log-add only changes the retained score, not the reported path.
	b.cur = b.cur[:0]
	clear(b.seen)
	for _, h := range cands {
		key := mergeKey{node: h.node, token: h.token, blank: h.blank, state: h.state}
		if i, ok := b.seen[key]; ok {
			if b.opt.LogAdd {
				b.cur[i].score = mathutil.LogAdd(b.cur[i].score, h.score)
			}
			continue
		}
		b.seen[key] = len(b.cur)
		b.cur = append(b.cur, h)
	}

	for i := range b.cur {
		b.hist = append(b.hist, histEntry{
			token:  b.cur[i].token,
			word:   b.cur[i].word,
			parent: b.cur[i].parent,
		})
		b.cur[i].parent = int32(len(b.hist) - 1)
		b.cur[i].word = -1
	}
	return len(b.cur)
}

// traceback walks the history arena from a committed entry back to the
// session start, returning the token path and finalized words in order.
func (b *beam) traceback(parent int32) (tokens, words []int) {
	for idx := parent; idx >= 0; {
		e := b.hist[idx]
		if e.token >= 0 {
			tokens = append(tokens, int(e.token))
		}
		if e.word >= 0 {
			words = append(words, int(e.word))
		}
		idx = e.parent
	}
	reverse(tokens)
	reverse(words)
	return tokens, words
}

func reverse(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
