package decoder

// WordLMDecoder constrains token sequences to lexicon prefixes and queries
// a word-level language model when a word is finalized at a silence
// boundary. While inside a word, the trie's smeared heuristic stands in for
// the LM so partially-completed words of different prefixes prune fairly;
// the heuristic is replaced by the true LM score at completion, so each
// word contributes exactly lmWeight*lmScore + wordScore.
type WordLMDecoder struct {
	engine
	trie *Trie
	unk  Label
}

// NewWordLM creates a lexicon-constrained decoder with a word-level
// language model. unk enables the unknown-word fallback at silence
// boundaries when its WordIndex is non-negative. nClasses fixes the
// expected emission class count; 0 falls back to the transition matrix
// dimension when one is present.
func NewWordLM(opt Options, trie *Trie, lm LM, sil, blank int, unk Label, transitions []float32, nClasses int) *WordLMDecoder {
	if nClasses == 0 && len(transitions) > 0 {
		for n := 1; n*n <= len(transitions); n++ {
			if n*n == len(transitions) {
				nClasses = n
			}
		}
	}
	return &WordLMDecoder{
		engine: engine{
			opt:         opt,
			lm:          lm,
			sil:         sil,
			blank:       blank,
			nClasses:    nClasses,
			transitions: transitions,
		},
		trie: trie,
		unk:  unk,
	}
}

// Decode runs beam search over a T×N row-major emission matrix.
func (d *WordLMDecoder) Decode(emissions []float32, t, n int) ([]Result, error) {
	return d.run(d, emissions, t, n)
}

// heuristic returns the smeared score accumulated on the path to node,
// measured from the root so that it cancels exactly at word completion.
func (d *WordLMDecoder) heuristic(node int32) float64 {
	return d.trie.Score(node) - d.trie.Score(d.trie.Root())
}

func (d *WordLMDecoder) extend(b *beam, h *hyp, frame []float32) {
	d.extendBlank(b, h, frame)
	d.extendRepeat(b, h, frame)

	for k := range frame {
		if k == d.blank || (int32(k) == h.token && !h.blank) {
			continue
		}

		if k == d.sil {
			d.extendSilence(b, h, frame)
			continue
		}

		next := d.trie.Child(h.node, k)
		if next < 0 {
			continue
		}
		nh := *h
		nh.score = d.base(h, k, frame) +
			d.opt.LMWeight*(d.trie.Score(next)-d.trie.Score(h.node))
		nh.node = next
		nh.token = int32(k)
		nh.word = -1
		nh.blank = false
		b.add(nh)
	}
}

// extendSilence finalizes words at the boundary: the accumulated heuristic
// is swapped for the true LM score and the trie restarts at the root.
func (d *WordLMDecoder) extendSilence(b *beam, h *hyp, frame []float32) {
	score := d.base(h, d.sil, frame) + d.opt.SilWeight

	nh := *h
	nh.node = d.trie.Root()
	nh.token = int32(d.sil)
	nh.blank = false

	labels := d.trie.Labels(h.node)
	switch {
	case len(labels) > 0:
		for _, label := range labels {
			state, lmScore := d.lm.Score(h.state, label.LMIndex)
			lh := nh
			lh.score = score + d.opt.WordScore +
				d.opt.LMWeight*(lmScore-d.heuristic(h.node))
			lh.state = state
			lh.word = int32(label.WordIndex)
			b.add(lh)
		}
	case h.node == d.trie.Root():
		nh.score = score
		nh.word = -1
		b.add(nh)
	case d.unk.WordIndex >= 0:
		state, lmScore := d.lm.Score(h.state, d.unk.LMIndex)
		nh.score = score + d.opt.UnkWeight +
			d.opt.LMWeight*(lmScore-d.heuristic(h.node))
		nh.state = state
		nh.word = int32(d.unk.WordIndex)
		b.add(nh)
	}
}

// finish force-closes an unfinished word as if a trailing silence occurred,
// without any emission score.
func (d *WordLMDecoder) finish(b *beam, h *hyp) {
	nh := *h
	nh.node = d.trie.Root()
	nh.token = -1
	nh.blank = false

	labels := d.trie.Labels(h.node)
	switch {
	case len(labels) > 0:
		for _, label := range labels {
			state, lmScore := d.lm.Score(h.state, label.LMIndex)
			lh := nh
			lh.score = h.score + d.opt.SilWeight + d.opt.WordScore +
				d.opt.LMWeight*(lmScore-d.heuristic(h.node))
			lh.state = state
			lh.word = int32(label.WordIndex)
			b.add(lh)
		}
	case h.node == d.trie.Root():
		nh.score = h.score
		nh.word = -1
		b.add(nh)
	case d.unk.WordIndex >= 0:
		state, lmScore := d.lm.Score(h.state, d.unk.LMIndex)
		nh.score = h.score + d.opt.SilWeight + d.opt.UnkWeight +
			d.opt.LMWeight*(lmScore-d.heuristic(h.node))
		nh.state = state
		nh.word = int32(d.unk.WordIndex)
		b.add(nh)
	}
}
