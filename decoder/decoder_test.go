package decoder

import (
	"errors"
	"math"
	"testing"

	"github.com/ieee0824/lexdecode-go/internal/mathutil"
)

// zeroLM scores every query as 0 with a constant state.
type zeroLM struct{}

func (zeroLM) Start(bool) LMState { return 0 }
func (zeroLM) Score(s LMState, _ int) (LMState, float64) {
	return s, 0
}
func (zeroLM) Index(string) int { return 0 }

// countLM charges a fixed cost per query so tests can count LM calls on the
// winning path through the accumulated score.
type countLM struct{ cost float64 }

func (countLM) Start(bool) LMState { return 0 }
func (l countLM) Score(s LMState, _ int) (LMState, float64) {
	return s.(int) + 1, l.cost
}
func (countLM) Index(string) int { return 0 }

func testOptions() Options {
	return Options{
		BeamSize:      16,
		BeamThreshold: 1000,
		LMWeight:      1.0,
	}
}

// Classes for the CTC fixtures: 0 = blank (doubling as the silence marker,
// since the vocabulary has no separate silence class), 1 = "a", 2 = "b".
func ctcTrie() *Trie {
	tr := NewTrie()
	tr.Insert([]int{1, 2}, Label{LMIndex: 0, WordIndex: 0}, 0)
	tr.Smear(SmearNone)
	return tr
}

// favoring builds a T×N emission matrix giving score 5 to the chosen class
// per frame and 0 elsewhere.
func favoring(n int, path ...int) []float32 {
	e := make([]float32, len(path)*n)
	for t, k := range path {
		e[t*n+k] = 5
	}
	return e
}

func TestWordLM_CTCSingleWord(t *testing.T) {
	d := NewWordLM(testOptions(), ctcTrie(), zeroLM{}, 0, 0, Label{LMIndex: -1, WordIndex: -1}, nil, 3)

	// Frame path a, a, blank, b, blank collapses to "ab".
	emissions := favoring(3, 1, 1, 0, 2, 0)
	results, err := d.Decode(emissions, 5, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}

	best := results[0]
	wantTokens := []int{1, 1, 0, 2, 0}
	if !equalInts(best.Tokens, wantTokens) {
		t.Errorf("Tokens = %v, want %v", best.Tokens, wantTokens)
	}
	if !equalInts(best.Words, []int{0}) {
		t.Errorf("Words = %v, want [0]", best.Words)
	}
	// Five frames of score 5 each, zero LM, no penalties.
	if math.Abs(best.Score-25) > 1e-6 {
		t.Errorf("Score = %f, want 25", best.Score)
	}
}

func TestWordLM_Deterministic(t *testing.T) {
	emissions := favoring(3, 1, 1, 0, 2, 0)
	// Mildly ambiguous emissions exercise tie-breaking.
	for i := range emissions {
		emissions[i] += float32(i%3) * 0.25
	}

	var first Result
	for run := 0; run < 2; run++ {
		d := NewWordLM(testOptions(), ctcTrie(), zeroLM{}, 0, 0, Label{LMIndex: -1, WordIndex: -1}, nil, 3)
		results, err := d.Decode(emissions, 5, 3)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if run == 0 {
			first = results[0]
			continue
		}
		if results[0].Score != first.Score ||
			!equalInts(results[0].Tokens, first.Tokens) ||
			!equalInts(results[0].Words, first.Words) {
			t.Errorf("run 2 top-1 differs: %+v vs %+v", results[0], first)
		}
	}
}

func TestWordLM_BeamBound(t *testing.T) {
	opt := testOptions()
	opt.BeamSize = 2
	d := NewWordLM(opt, ctcTrie(), zeroLM{}, 0, 0, Label{LMIndex: -1, WordIndex: -1}, nil, 3)

	results, err := d.Decode(favoring(3, 1, 1, 0, 2, 0), 5, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(results) > opt.BeamSize {
		t.Errorf("returned %d hypotheses, beam size is %d", len(results), opt.BeamSize)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not ordered best-first")
		}
	}
}

// Classes with a real silence marker: 0 = blank, 1 = silence, 2 = "a", 3 = "b".
func silTrie() *Trie {
	tr := NewTrie()
	tr.Insert([]int{2, 3}, Label{LMIndex: 0, WordIndex: 0}, 0)
	tr.Smear(SmearNone)
	return tr
}

func TestWordLM_UnknownFallback(t *testing.T) {
	opt := testOptions()
	opt.UnkWeight = -2
	unk := Label{LMIndex: 0, WordIndex: 9}
	d := NewWordLM(opt, silTrie(), zeroLM{}, 1, 0, unk, nil, 4)

	// "a" then silence: the trie position has no label, so the unknown
	// label substitutes and UnkWeight applies exactly once.
	results, err := d.Decode(favoring(4, 2, 1), 2, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	best := results[0]
	if !equalInts(best.Words, []int{9}) {
		t.Errorf("Words = %v, want [9]", best.Words)
	}
	// Two frames of 5 plus one UnkWeight.
	if math.Abs(best.Score-(10-2)) > 1e-6 {
		t.Errorf("Score = %f, want 8", best.Score)
	}
}

func TestWordLM_ForceCloseAtEnd(t *testing.T) {
	d := NewWordLM(testOptions(), silTrie(), zeroLM{}, 1, 0, Label{LMIndex: -1, WordIndex: -1}, nil, 4)

	// Without an unknown fallback the mid-word silence hypothesis dies at
	// the boundary; the winner instead consumes the silence frame as "b"
	// and has its word force-closed after the final frame.
	results, err := d.Decode(favoring(4, 2, 1), 2, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	best := results[0]
	if !equalInts(best.Tokens, []int{2, 3}) {
		t.Errorf("Tokens = %v, want [2 3]", best.Tokens)
	}
	if !equalInts(best.Words, []int{0}) {
		t.Errorf("Words = %v, want [0]", best.Words)
	}
}

func TestTokenLM_SingleWord(t *testing.T) {
	lmIndex := []int{0, 0, 0}
	d := NewTokenLM(testOptions(), ctcTrie(), countLM{cost: -1}, 0, 0,
		Label{LMIndex: -1, WordIndex: -1}, nil, lmIndex)

	results, err := d.Decode(favoring(3, 1, 1, 0, 2, 0), 5, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	best := results[0]
	if !equalInts(best.Words, []int{0}) {
		t.Errorf("Words = %v, want [0]", best.Words)
	}
	// 25 from emissions, minus one LM query per consumed token (a, b).
	if math.Abs(best.Score-23) > 1e-6 {
		t.Errorf("Score = %f, want 23", best.Score)
	}
}

func TestLexiconFree_RawPath(t *testing.T) {
	lmIndex := []int{0, 0, 0}
	d := NewLexiconFree(testOptions(), zeroLM{}, 0, 0, nil, lmIndex)

	results, err := d.Decode(favoring(3, 1, 1, 0, 2, 0), 5, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	best := results[0]
	if !equalInts(best.Tokens, []int{1, 1, 0, 2, 0}) {
		t.Errorf("Tokens = %v, want [1 1 0 2 0]", best.Tokens)
	}
	if len(best.Words) != 0 {
		t.Errorf("Words = %v, want none for lexicon-free", best.Words)
	}
}

func TestLexiconFree_ASGTransitions(t *testing.T) {
	opt := testOptions()
	opt.Criterion = CriterionASG
	// transition[lastToken][k], row-major 2×2; only 1 -> 0 is rewarded.
	transitions := []float32{0, 0, 3, 0}
	d := NewLexiconFree(opt, zeroLM{}, 0, -1, transitions, []int{0, 0})

	emissions := []float32{
		0, 2,
		1, 0,
	}
	results, err := d.Decode(emissions, 2, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	best := results[0]
	if !equalInts(best.Tokens, []int{1, 0}) {
		t.Errorf("Tokens = %v, want [1 0]", best.Tokens)
	}
	// e0[1] + transition[1][0] + e1[0] = 2 + 3 + 1
	if math.Abs(best.Score-6) > 1e-6 {
		t.Errorf("Score = %f, want 6", best.Score)
	}
}

func TestLexiconFree_LogAddMerge(t *testing.T) {
	// Under CTC both (blank, a) and (a, a) end as the same hypothesis; the
	// representative path is the best one, the score is their log-add.
	emissions := []float32{
		1, 2,
		0, 1,
	}
	s1 := float64(emissions[0] + emissions[3]) // blank, a
	s2 := float64(emissions[1] + emissions[3]) // a, a (repeat)

	opt := testOptions()
	opt.LogAdd = true
	d := NewLexiconFree(opt, zeroLM{}, 1, 0, nil, []int{0, 0})
	results, err := d.Decode(emissions, 2, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	best := results[0]
	if !equalInts(best.Tokens, []int{1, 1}) {
		t.Errorf("Tokens = %v, want [1 1]", best.Tokens)
	}
	want := mathutil.LogAdd(s1, s2)
	if math.Abs(best.Score-want) > 1e-6 {
		t.Errorf("Score = %f, want %f", best.Score, want)
	}

	// Without log-add the merged score is the max of the colliding paths.
	opt.LogAdd = false
	d = NewLexiconFree(opt, zeroLM{}, 1, 0, nil, []int{0, 0})
	results, err = d.Decode(emissions, 2, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if math.Abs(results[0].Score-s2) > 1e-6 {
		t.Errorf("Score = %f, want %f", results[0].Score, s2)
	}
}

func TestDecode_InvalidInput(t *testing.T) {
	d := NewTokenLM(testOptions(), ctcTrie(), zeroLM{}, 0, 0,
		Label{LMIndex: -1, WordIndex: -1}, nil, []int{0, 0, 0})

	if _, err := d.Decode(nil, 0, 3); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("T=0: err = %v, want ErrInvalidInput", err)
	}
	if _, err := d.Decode(make([]float32, 10), 2, 5); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("N mismatch: err = %v, want ErrInvalidInput", err)
	}
	if _, err := d.Decode(make([]float32, 3), 5, 3); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short emissions: err = %v, want ErrInvalidInput", err)
	}
}

func TestWordLM_ClassCountMismatch(t *testing.T) {
	d := NewWordLM(testOptions(), ctcTrie(), zeroLM{}, 0, 0, Label{LMIndex: -1, WordIndex: -1}, nil, 3)
	if _, err := d.Decode(make([]float32, 10), 2, 5); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("N=5 with 3 configured classes: err = %v, want ErrInvalidInput", err)
	}
}

func TestParseCriterion(t *testing.T) {
	if c, err := ParseCriterion("ctc"); err != nil || c != CriterionCTC {
		t.Errorf("ParseCriterion(ctc) = %v, %v", c, err)
	}
	if c, err := ParseCriterion("asg"); err != nil || c != CriterionASG {
		t.Errorf("ParseCriterion(asg) = %v, %v", c, err)
	}
	if _, err := ParseCriterion("seq2seq"); err == nil {
		t.Error("ParseCriterion(seq2seq) succeeded, want error")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
