// Package decoder implements lexicon-constrained beam-search decoding of
// acoustic emission matrices. Three variants (lexicon-free, token-LM,
// word-LM) share one beam maintenance core and differ only in how a
// hypothesis is extended per frame.
package decoder

import (
	"fmt"
	"sort"
)

// Decoder converts an emission matrix into ranked token/word hypotheses.
// Emissions are T×N row-major: frame t's score for class k is
// emissions[t*n+k]. The returned results are ordered best-first.
type Decoder interface {
	Decode(emissions []float32, t, n int) ([]Result, error)
}

// extender is the per-variant extension strategy plugged into the shared
// beam loop. extend proposes successors of h for one frame; finish
// force-closes h after the final frame, as if a trailing silence occurred.
type extender interface {
	extend(b *beam, h *hyp, frame []float32)
	finish(b *beam, h *hyp)
}

// engine holds the state common to all decoder variants.
type engine struct {
	opt         Options
	lm          LM
	sil         int
	blank       int // -1 outside CTC
	nClasses    int // 0 when not derivable from construction inputs
	transitions []float32
	lmIndex     []int // token id -> LM vocabulary id; nil for the word-LM variant
	startNode   int32 // trie root, or -1 without a lexicon
}

func (e *engine) validate(emissions []float32, t, n int) error {
	if t <= 0 {
		return fmt.Errorf("%w: frame count %d", ErrInvalidInput, t)
	}
	if e.nClasses > 0 && n != e.nClasses {
		return fmt.Errorf("%w: class count %d, configured %d", ErrInvalidInput, n, e.nClasses)
	}
	if e.sil >= n || (e.blank >= 0 && e.blank >= n) {
		return fmt.Errorf("%w: class count %d too small for markers", ErrInvalidInput, n)
	}
	if len(emissions) < t*n {
		return fmt.Errorf("%w: emission matrix has %d values, need %d", ErrInvalidInput, len(emissions), t*n)
	}
	return nil
}

// base returns h's score extended by class k's emission for this frame,
// plus the ASG transition from the previous class when applicable.
func (e *engine) base(h *hyp, k int, frame []float32) float64 {
	s := h.score + float64(frame[k])
	if e.opt.Criterion == CriterionASG && len(e.transitions) > 0 && h.token >= 0 {
		s += float64(e.transitions[int(h.token)*len(frame)+k])
	}
	return s
}

// run drives the frame-synchronous search shared by all variants.
func (e *engine) run(ext extender, emissions []float32, t, n int) ([]Result, error) {
	if err := e.validate(emissions, t, n); err != nil {
		return nil, err
	}

	b := newBeam(&e.opt)
	b.cur = append(b.cur, hyp{
		node:   e.startNode,
		state:  e.lm.Start(false),
		parent: -1,
		token:  -1,
		word:   -1,
	})

	for frame := 0; frame < t; frame++ {
		b.reset()
		row := emissions[frame*n : (frame+1)*n]
		for i := range b.cur {
			ext.extend(b, &b.cur[i], row)
		}
		if b.prune() == 0 {
			return nil, fmt.Errorf("%w at frame %d", ErrBeamCollapse, frame)
		}
	}

	// Force-close unfinished words. If nothing survives closing, report the
	// open hypotheses as they stand.
	b.reset()
	for i := range b.cur {
		ext.finish(b, &b.cur[i])
	}
	if len(b.cands) > 0 {
		b.prune()
	}

	results := make([]Result, 0, len(b.cur))
	for i := range b.cur {
		tokens, words := b.traceback(b.cur[i].parent)
		results = append(results, Result{Tokens: tokens, Words: words, Score: b.cur[i].score})
	}
	// The active set is not score-ordered after merging; rank best-first.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// extendBlank proposes the CTC blank extension: no lexicon or LM movement.
func (e *engine) extendBlank(b *beam, h *hyp, frame []float32) {
	if e.blank < 0 {
		return
	}
	nh := *h
	nh.score = e.base(h, e.blank, frame)
	nh.token = int32(e.blank)
	nh.word = -1
	nh.blank = true
	b.add(nh)
}

// extendRepeat proposes staying on the current token. Under CTC a repeat
// not separated by blank collapses into the previous output token; under
// ASG repeats collapse likewise but pick up a transition score in base.
func (e *engine) extendRepeat(b *beam, h *hyp, frame []float32) {
	k := int(h.token)
	if k < 0 || h.blank || k == e.blank {
		return
	}
	nh := *h
	nh.score = e.base(h, k, frame)
	if k == e.sil {
		nh.score += e.opt.SilWeight
	}
	nh.word = -1
	nh.blank = false
	b.add(nh)
}
