package decoder

import (
	"fmt"

	"github.com/ieee0824/lexdecode-go/internal/mathutil"
)

// SmearMode selects how leaf scores propagate toward the trie root.
type SmearMode int

const (
	SmearNone SmearMode = iota
	SmearMax
	SmearLogAdd
)

// ParseSmearMode parses a smearing mode name ("none", "max", "logadd").
func ParseSmearMode(s string) (SmearMode, error) {
	switch s {
	case "none":
		return SmearNone, nil
	case "max":
		return SmearMax, nil
	case "logadd":
		return SmearLogAdd, nil
	}
	return SmearNone, fmt.Errorf("invalid smearing mode: %q", s)
}

// Label identifies a word attached to a trie node: its index in the
// language model and its index in the word dictionary.
type Label struct {
	LMIndex   int
	WordIndex int
}

type trieNode struct {
	children map[int]int32 // token id -> node index
	labels   []Label
	scores   []float64 // unigram score per label
	score    float64   // smeared heuristic
}

// Trie is a prefix tree over token sequences. Nodes live in an
// index-addressed arena; index 0 is the root and children always have a
// larger index than their parent. A built trie is read-only and may be
// shared across decode workers.
type Trie struct {
	nodes []trieNode
}

// NewTrie creates a trie holding only the root node.
func NewTrie() *Trie {
	return &Trie{nodes: []trieNode{{}}}
}

// Root returns the root node index.
func (t *Trie) Root() int32 {
	return 0
}

// NumNodes returns the number of nodes in the arena.
func (t *Trie) NumNodes() int {
	return len(t.nodes)
}

// Insert walks or creates the path for a token sequence and attaches label
// with its unigram score at the terminal node. Several labels may share one
// terminal node when words share a pronunciation.
func (t *Trie) Insert(tokens []int, label Label, score float64) {
	cur := int32(0)
	for _, tok := range tokens {
		node := &t.nodes[cur]
		if node.children == nil {
			node.children = make(map[int]int32)
		}
		next, ok := node.children[tok]
		if !ok {
			next = int32(len(t.nodes))
			node.children[tok] = next
			t.nodes = append(t.nodes, trieNode{})
		}
		cur = next
	}
	t.nodes[cur].labels = append(t.nodes[cur].labels, label)
	t.nodes[cur].scores = append(t.nodes[cur].scores, score)
}

// Child returns the child reached by token, or -1 when the extended
// sequence is not a lexicon prefix.
func (t *Trie) Child(node int32, token int) int32 {
	if next, ok := t.nodes[node].children[token]; ok {
		return next
	}
	return -1
}

// Labels returns the word labels attached to a node.
func (t *Trie) Labels(node int32) []Label {
	return t.nodes[node].labels
}

// Score returns a node's smeared heuristic score.
func (t *Trie) Score(node int32) float64 {
	return t.nodes[node].score
}

// Smear assigns each node's heuristic score from the labels in its subtree
// in a single bottom-up pass. SmearMax takes the subtree maximum, SmearLogAdd
// the log-sum-exp, and SmearNone resets every score to the neutral default.
// Children have larger arena indices than parents, so a reverse sweep
// visits every child before its parent.
func (t *Trie) Smear(mode SmearMode) {
	if mode == SmearNone {
		for i := range t.nodes {
			t.nodes[i].score = 0
		}
		return
	}

	for i := len(t.nodes) - 1; i >= 0; i-- {
		node := &t.nodes[i]
		score := mathutil.LogZero
		for _, s := range node.scores {
			if mode == SmearLogAdd {
				score = mathutil.LogAdd(score, s)
			} else if s > score {
				score = s
			}
		}
		for _, child := range node.children {
			cs := t.nodes[child].score
			if mode == SmearLogAdd {
				score = mathutil.LogAdd(score, cs)
			} else if cs > score {
				score = cs
			}
		}
		node.score = score
	}
}
