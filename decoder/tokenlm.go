package decoder

// TokenLMDecoder constrains token sequences to lexicon prefixes while
// scoring each token against a token-level language model. Score accrues
// continuously per token; word boundaries only delimit output segmentation.
type TokenLMDecoder struct {
	engine
	trie *Trie
	unk  Label
}

// NewTokenLM creates a lexicon-constrained decoder with a token-level
// language model. unk enables the unknown-word fallback at silence
// boundaries when its WordIndex is non-negative.
func NewTokenLM(opt Options, trie *Trie, lm LM, sil, blank int, unk Label, transitions []float32, lmIndex []int) *TokenLMDecoder {
	return &TokenLMDecoder{
		engine: engine{
			opt:         opt,
			lm:          lm,
			sil:         sil,
			blank:       blank,
			nClasses:    len(lmIndex),
			transitions: transitions,
			lmIndex:     lmIndex,
		},
		trie: trie,
		unk:  unk,
	}
}

// Decode runs beam search over a T×N row-major emission matrix.
func (d *TokenLMDecoder) Decode(emissions []float32, t, n int) ([]Result, error) {
	return d.run(d, emissions, t, n)
}

func (d *TokenLMDecoder) extend(b *beam, h *hyp, frame []float32) {
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
		state, lmScore := d.lm.Score(h.state, d.lmIndex[k])
		nh := *h
		nh.score = d.base(h, k, frame) + d.opt.LMWeight*lmScore
		nh.node = next
		nh.state = state
		nh.token = int32(k)
		nh.word = -1
		nh.blank = false
		b.add(nh)
	}
}

// extendSilence handles the word boundary: labeled nodes finalize their
// words, the root absorbs leading or repeated silence, and anywhere else
// the unknown fallback applies when configured.
func (d *TokenLMDecoder) extendSilence(b *beam, h *hyp, frame []float32) {
	state, lmScore := d.lm.Score(h.state, d.lmIndex[d.sil])
	score := d.base(h, d.sil, frame) + d.opt.SilWeight + d.opt.LMWeight*lmScore

	nh := *h
	nh.node = d.trie.Root()
	nh.state = state
	nh.token = int32(d.sil)
	nh.blank = false

	labels := d.trie.Labels(h.node)
	switch {
	case len(labels) > 0:
		for _, label := range labels {
			lh := nh
			lh.score = score + d.opt.WordScore
			lh.word = int32(label.WordIndex)
			b.add(lh)
		}
	case h.node == d.trie.Root():
		nh.score = score
		nh.word = -1
		b.add(nh)
	case d.unk.WordIndex >= 0:
		nh.score = score + d.opt.UnkWeight
		nh.word = int32(d.unk.WordIndex)
		b.add(nh)
	}
}

// finish force-closes an unfinished word as if a trailing silence occurred,
// without any emission score.
func (d *TokenLMDecoder) finish(b *beam, h *hyp) {
	nh := *h
	nh.node = d.trie.Root()
	nh.token = -1
	nh.blank = false

	labels := d.trie.Labels(h.node)
	switch {
	case len(labels) > 0:
		for _, label := range labels {
			lh := nh
			lh.score = h.score + d.opt.SilWeight + d.opt.WordScore
			lh.word = int32(label.WordIndex)
			b.add(lh)
		}
	case h.node == d.trie.Root():
		nh.score = h.score
		nh.word = -1
		b.add(nh)
	case d.unk.WordIndex >= 0:
		nh.score = h.score + d.opt.SilWeight + d.opt.UnkWeight
		nh.word = int32(d.unk.WordIndex)
		b.add(nh)
	}
}
