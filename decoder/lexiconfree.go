package decoder

// LexiconFreeDecoder scores every token directly against a token-level
// language model without any lexicon constraint. Words are recovered by the
// caller by segmenting the token sequence on silence.
type LexiconFreeDecoder struct {
	engine
}

// NewLexiconFree creates a lexicon-free decoder. lmIndex maps each emission
// class to the language model's vocabulary id; transitions is the N×N ASG
// transition matrix, nil for CTC.
func NewLexiconFree(opt Options, lm LM, sil, blank int, transitions []float32, lmIndex []int) *LexiconFreeDecoder {
	return &LexiconFreeDecoder{engine{
		opt:         opt,
		lm:          lm,
		sil:         sil,
		blank:       blank,
		nClasses:    len(lmIndex),
		transitions: transitions,
		lmIndex:     lmIndex,
		startNode:   -1,
	}}
}

// Decode runs beam search over a T×N row-major emission matrix.
func (d *LexiconFreeDecoder) Decode(emissions []float32, t, n int) ([]Result, error) {
	return d.run(d, emissions, t, n)
}

func (d *LexiconFreeDecoder) extend(b *beam, h *hyp, frame []float32) {
	d.extendBlank(b, h, frame)
	d.extendRepeat(b, h, frame)

	for k := range frame {
		if k == d.blank || (int32(k) == h.token && !h.blank) {
			continue
		}
		state, lmScore := d.lm.Score(h.state, d.lmIndex[k])
		nh := *h
		nh.score = d.base(h, k, frame) + d.opt.LMWeight*lmScore
		if k == d.sil {
			nh.score += d.opt.SilWeight
		}
		nh.state = state
		nh.token = int32(k)
		nh.word = -1
		nh.blank = false
		b.add(nh)
	}
}

// finish has no word to close without a lexicon; hypotheses pass through.
func (d *LexiconFreeDecoder) finish(b *beam, h *hyp) {
	nh := *h
	nh.token = -1
	nh.word = -1
	b.add(nh)
}
