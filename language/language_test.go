package language

import (
	"math"
	"strings"
	"testing"
)

const testARPA = `\data\
ngram 1=4
ngram 2=4

\1-grams:
-1.0	</s>
-1.0	<s>	0.0
-0.5	hello	-0.2
-0.7	world	0.0

\2-grams:
-0.3	<s>	hello
-0.4	hello	world
-0.6	world	</s>
-0.9	world	hello

\end\
`

func loadTestModel(t *testing.T) *NGramModel {
	t.Helper()
	m, err := LoadARPA(strings.NewReader(testARPA))
	if err != nil {
		t.Fatalf("LoadARPA: %v", err)
	}
	return m
}

func TestLoadARPA(t *testing.T) {
	m := loadTestModel(t)
	if m.Order != 2 {
		t.Errorf("Order = %d, want 2", m.Order)
	}
	if len(m.Unigrams) != 4 {
		t.Errorf("len(Unigrams) = %d, want 4", len(m.Unigrams))
	}
	if len(m.Bigrams) != 4 {
		t.Errorf("len(Bigrams) = %d, want 4", len(m.Bigrams))
	}

	// -0.5 log10 converted to natural log
	want := -0.5 * math.Ln10
	got := m.LogProb(nil, "hello")
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(hello) = %f, want %f", got, want)
	}
}

func TestLoadARPA_Empty(t *testing.T) {
	if _, err := LoadARPA(strings.NewReader("no arpa here\n")); err == nil {
		t.Error("expected error for input without \\data\\ section")
	}
}

func TestNGramModel_Backoff(t *testing.T) {
	m := loadTestModel(t)

	// Exact bigram: <s> hello = -0.3
	want := -0.3 * math.Ln10
	got := m.LogProb([]string{"<s>"}, "hello")
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(<s> -> hello) = %f, want %f", got, want)
	}

	// Missing bigram hello -> hello: backoff(hello) + unigram(hello)
	want = (-0.2 + -0.5) * math.Ln10
	got = m.LogProb([]string{"hello"}, "hello")
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogProb(hello -> hello) = %f, want %f", got, want)
	}
}

func TestNGramModel_OOV(t *testing.T) {
	m := loadTestModel(t)
	if got := m.LogProb(nil, "zzz"); got > -1e29 {
		t.Errorf("LogProb(zzz) = %f, want LogZero", got)
	}
	m.OOVLogProb = -5 * math.Ln10
	if got := m.LogProb(nil, "zzz"); math.Abs(got-m.OOVLogProb) > 1e-10 {
		t.Errorf("LogProb(zzz) = %f, want %f", got, m.OOVLogProb)
	}
}

func TestModel_IndexDeterministic(t *testing.T) {
	m := loadTestModel(t)
	a := NewModel(m)
	b := NewModel(m)
	for _, w := range []string{"hello", "world", "<s>", "</s>"} {
		if a.Index(w) != b.Index(w) {
			t.Errorf("Index(%q) differs between builds: %d vs %d", w, a.Index(w), b.Index(w))
		}
	}
	if a.Index("zzz") != a.UnkIndex() {
		t.Errorf("Index(zzz) = %d, want unk id %d", a.Index("zzz"), a.UnkIndex())
	}
}

func TestModel_Score(t *testing.T) {
	m := NewModel(loadTestModel(t))

	st := m.Start(false)
	st, got := m.Score(st, m.Index("hello"))
	want := -0.3 * math.Ln10 // bigram <s> hello
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("Score(<s>, hello) = %f, want %f", got, want)
	}

	_, got = m.Score(st, m.Index("world"))
	want = -0.4 * math.Ln10 // bigram hello world
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("Score(hello, world) = %f, want %f", got, want)
	}
}

func TestModel_ScoreInvalidIndex(t *testing.T) {
	m := NewModel(loadTestModel(t))
	st := m.Start(false)
	next, got := m.Score(st, 9999)
	if got > -1e4 {
		t.Errorf("Score(invalid) = %f, want large negative", got)
	}
	if next != st {
		t.Error("invalid index should leave state unchanged")
	}
}

func TestModel_StateComparable(t *testing.T) {
	m := NewModel(loadTestModel(t))
	a := m.Start(false)
	b := m.Start(false)
	if a != b {
		t.Error("equal start states compare unequal")
	}
	a1, _ := m.Score(a, m.Index("hello"))
	b1, _ := m.Score(b, m.Index("hello"))
	if a1 != b1 {
		t.Error("identical score paths produced unequal states")
	}
}
