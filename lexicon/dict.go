// Package lexicon provides closed-vocabulary dictionaries and the
// word-to-pronunciation lexicon consumed by the decoder.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dictionary maps between surface strings and dense integer ids.
// Ids are assigned in insertion order starting at 0.
type Dictionary struct {
	entries []string
	index   map[string]int
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{index: make(map[string]int)}
}

// Add inserts an entry and returns its id. Re-adding an existing entry
// returns the original id.
func (d *Dictionary) Add(entry string) int {
	if id, ok := d.index[entry]; ok {
		return id
	}
	id := len(d.entries)
	d.entries = append(d.entries, entry)
	d.index[entry] = id
	return id
}

// Index returns the id of an entry, or -1 if absent.
func (d *Dictionary) Index(entry string) int {
	if id, ok := d.index[entry]; ok {
		return id
	}
	return -1
}

// Entry returns the surface string for an id. Out-of-range ids return "".
func (d *Dictionary) Entry(id int) string {
	if id < 0 || id >= len(d.entries) {
		return ""
	}
	return d.entries[id]
}

// Size returns the number of entries.
func (d *Dictionary) Size() int {
	return len(d.entries)
}

// LoadTokens reads a token dictionary, one token per line.
// Blank lines and lines starting with # are skipped.
func LoadTokens(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadTokensFile is a convenience wrapper that opens a file path.
func LoadTokensFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTokens(f)
}

// Entry represents a single pronunciation for a word.
type Entry struct {
	Word   string
	Tokens []string // token sequence spelling out the word
}

// Lexicon holds word-to-pronunciation mappings. Words preserves first-seen
// order so downstream id assignment is deterministic.
type Lexicon struct {
	Words   []string
	Entries map[string][]Entry
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{Entries: make(map[string][]Entry)}
}

// Add adds a pronunciation entry.
func (l *Lexicon) Add(word string, tokens []string) {
	if _, ok := l.Entries[word]; !ok {
		l.Words = append(l.Words, word)
	}
	l.Entries[word] = append(l.Entries[word], Entry{Word: word, Tokens: tokens})
}

// LoadLexicon reads a pronunciation lexicon from a tab-separated file.
// Format: word<TAB>token1 token2 token3 ...
// A word may appear on multiple lines, one per alternative pronunciation.
// maxWords > 0 stops loading after that many distinct words.
func LoadLexicon(r io.Reader, maxWords int) (*Lexicon, error) {
	l := NewLexicon()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 tab-separated fields, got %d", lineNum, len(parts))
		}

		word := parts[0]
		tokens := strings.Fields(parts[1])
		if len(tokens) == 0 {
			return nil, fmt.Errorf("line %d: empty pronunciation for %q", lineNum, word)
		}

		if maxWords > 0 && len(l.Words) >= maxWords {
			if _, ok := l.Entries[word]; !ok {
				break
			}
		}
		l.Add(word, tokens)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return l, nil
}

// LoadLexiconFile is a convenience wrapper that opens a file path.
func LoadLexiconFile(path string, maxWords int) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadLexicon(f, maxWords)
}

// WordDictionary builds a word dictionary over the lexicon's words in
// first-seen order, appending unkWord if it is not already present.
func (l *Lexicon) WordDictionary(unkWord string) *Dictionary {
	d := NewDictionary()
	for _, w := range l.Words {
		d.Add(w)
	}
	d.Add(unkWord)
	return d
}
