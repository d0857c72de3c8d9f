// Package lexdecode wires token dictionaries, a pronunciation lexicon and a
// language model into a ready-to-run beam-search decoding engine.
package lexdecode

import (
	"errors"
	"fmt"

	"github.com/ieee0824/lexdecode-go/batch"
	"github.com/ieee0824/lexdecode-go/decoder"
	"github.com/ieee0824/lexdecode-go/language"
	"github.com/ieee0824/lexdecode-go/lexicon"
)

// ErrConfig reports an invalid configuration value.
var ErrConfig = errors.New("invalid configuration")

// ErrLoad reports a resource file that could not be read or parsed.
var ErrLoad = errors.New("resource load failed")

// ErrValidation reports loaded resources that are inconsistent with each
// other, such as a silence token missing from the token set.
var ErrValidation = errors.New("resource validation failed")

// Config selects the decoder variant and its search parameters.
type Config struct {
	DecoderType string // "wrd", "tkn" or "free"
	Criterion   string // "ctc" or "asg"
	Smearing    string // "none", "max" or "logadd"

	SilToken   string
	BlankToken string // consulted only under ctc
	UnkWord    string
	MaxWords   int // lexicon truncation, 0 = unlimited

	BeamSize      int
	BeamThreshold float64
	LMWeight      float64
	WordScore     float64
	UnkWeight     float64
	SilWeight     float64
	LogAdd        bool
}

// DefaultConfig returns the default decoding configuration.
func DefaultConfig() Config {
	opt := decoder.DefaultOptions()
	return Config{
		DecoderType:   "wrd",
		Criterion:     "ctc",
		Smearing:      "none",
		SilToken:      "|",
		BlankToken:    "#",
		UnkWord:       language.UnkWord,
		BeamSize:      opt.BeamSize,
		BeamThreshold: opt.BeamThreshold,
		LMWeight:      opt.LMWeight,
		WordScore:     opt.WordScore,
		UnkWeight:     opt.UnkWeight,
		SilWeight:     opt.SilWeight,
	}
}

// Engine bundles the shared read-only resources behind a batch decode: the
// dictionaries, the planted trie and the language model. Decoders built
// from one engine may run concurrently.
type Engine struct {
	cfg         Config
	opt         decoder.Options
	tokens      *lexicon.Dictionary
	words       *lexicon.Dictionary // nil without a lexicon
	trie        *decoder.Trie       // nil without a lexicon
	lm          decoder.LM
	sil         int
	blank       int
	unk         decoder.Label
	lmIndex     []int
	transitions []float32
}

// New validates the configuration against the loaded resources and builds
// an engine. lex may be nil for lexicon-free decoding; transitions is the
// ASG transition matrix, nil under ctc.
func New(cfg Config, tokens *lexicon.Dictionary, lex *lexicon.Lexicon, lm decoder.LM, transitions []float32) (*Engine, error) {
	criterion, err := decoder.ParseCriterion(cfg.Criterion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	smear, err := decoder.ParseSmearMode(cfg.Smearing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	switch cfg.DecoderType {
	case "wrd":
		if lex == nil {
			return nil, fmt.Errorf("%w: decoder type wrd requires a lexicon", ErrConfig)
		}
	case "tkn", "free":
	default:
		return nil, fmt.Errorf("%w: unknown decoder type %q", ErrConfig, cfg.DecoderType)
	}

	sil := tokens.Index(cfg.SilToken)
	if sil < 0 {
		return nil, fmt.Errorf("%w: silence token %q not in token set", ErrValidation, cfg.SilToken)
	}
	blank := -1
	if criterion == decoder.CriterionCTC {
		if blank = tokens.Index(cfg.BlankToken); blank < 0 {
			return nil, fmt.Errorf("%w: blank token %q not in token set", ErrValidation, cfg.BlankToken)
		}
	}
	if criterion == decoder.CriterionASG {
		if len(transitions) == 0 {
			return nil, fmt.Errorf("%w: asg criterion requires a transition matrix", ErrConfig)
		}
		if want := tokens.Size() * tokens.Size(); len(transitions) != want {
			return nil, fmt.Errorf("%w: transition matrix has %d values, want %d for %d classes",
				ErrValidation, len(transitions), want, tokens.Size())
		}
	}

	e := &Engine{
		cfg:    cfg,
		tokens: tokens,
		lm:     lm,
		sil:    sil,
		blank:  blank,
		unk:    decoder.Label{LMIndex: -1, WordIndex: -1},
		opt: decoder.Options{
			BeamSize:      cfg.BeamSize,
			BeamThreshold: cfg.BeamThreshold,
			LMWeight:      cfg.LMWeight,
			WordScore:     cfg.WordScore,
			UnkWeight:     cfg.UnkWeight,
			SilWeight:     cfg.SilWeight,
			LogAdd:        cfg.LogAdd,
			Criterion:     criterion,
		},
		transitions: transitions,
	}

	if lex != nil && cfg.DecoderType != "free" {
		e.words = lex.WordDictionary(cfg.UnkWord)
		e.unk = decoder.Label{LMIndex: lm.Index(cfg.UnkWord), WordIndex: e.words.Index(cfg.UnkWord)}
		e.trie, err = buildTrie(lex, tokens, e.words, lm, cfg.DecoderType == "wrd", smear)
		if err != nil {
			return nil, err
		}
	}
	if cfg.DecoderType != "wrd" {
		e.lmIndex = make([]int, tokens.Size())
		for i := range e.lmIndex {
			e.lmIndex[i] = lm.Index(tokens.Entry(i))
		}
	}
	return e, nil
}

// buildTrie plants every pronunciation of every lexicon word. For word-LM
// decoding each label carries the LM score of the word from the start
// state, which the smearing pass turns into per-node heuristics.
func buildTrie(lex *lexicon.Lexicon, tokens, words *lexicon.Dictionary, lm decoder.LM, wordLM bool, smear decoder.SmearMode) (*decoder.Trie, error) {
	trie := decoder.NewTrie()
	start := lm.Start(false)

	for _, word := range lex.Words {
		lmIdx := -1
		score := -1.0
		if wordLM {
			lmIdx = lm.Index(word)
			_, score = lm.Score(start, lmIdx)
		}
		label := decoder.Label{LMIndex: lmIdx, WordIndex: words.Index(word)}

		for _, entry := range lex.Entries[word] {
			ids := make([]int, len(entry.Tokens))
			for i, tok := range entry.Tokens {
				id := tokens.Index(tok)
				if id < 0 {
					return nil, fmt.Errorf("%w: token %q in pronunciation of %q not in token set", ErrValidation, tok, word)
				}
				ids[i] = id
			}
			trie.Insert(ids, label, score)
		}
	}
	trie.Smear(smear)
	return trie, nil
}

// NewDecoder builds a fresh decoder over the engine's shared resources.
// Suitable as the per-worker factory for batch.Run.
func (e *Engine) NewDecoder() (decoder.Decoder, error) {
	switch e.cfg.DecoderType {
	case "wrd":
		return decoder.NewWordLM(e.opt, e.trie, e.lm, e.sil, e.blank, e.unk, e.transitions, e.tokens.Size()), nil
	case "tkn":
		if e.trie != nil {
			return decoder.NewTokenLM(e.opt, e.trie, e.lm, e.sil, e.blank, e.unk, e.transitions, e.lmIndex), nil
		}
		return decoder.NewLexiconFree(e.opt, e.lm, e.sil, e.blank, e.transitions, e.lmIndex), nil
	case "free":
		return decoder.NewLexiconFree(e.opt, e.lm, e.sil, e.blank, e.transitions, e.lmIndex), nil
	}
	return nil, fmt.Errorf("%w: unknown decoder type %q", ErrConfig, e.cfg.DecoderType)
}

// Vocab returns the id-to-string mappings the batch driver needs.
func (e *Engine) Vocab() batch.Vocab {
	v := batch.Vocab{Tokens: e.tokens, Words: e.words, Sil: e.sil, Blank: e.blank}
	if e.words != nil {
		v.UnkWord = e.words.Index(e.cfg.UnkWord)
	}
	return v
}

// Run decodes an emission set with this engine's configuration.
func (e *Engine) Run(set *batch.EmissionSet, opt batch.Options, sinks *batch.Sinks) (batch.Stats, error) {
	return batch.Run(set, e.NewDecoder, e.Vocab(), opt, sinks)
}

// Resources names the input files behind an engine.
type Resources struct {
	Tokens  string // token dictionary, one token per line
	Lexicon string // pronunciation lexicon, empty for lexicon-free decoding
	LM      string // ARPA n-gram model
}

// Load reads the resource files and builds an engine.
func Load(cfg Config, res Resources, transitions []float32) (*Engine, error) {
	tokens, err := lexicon.LoadTokensFile(res.Tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: tokens %s: %v", ErrLoad, res.Tokens, err)
	}
	var lex *lexicon.Lexicon
	if res.Lexicon != "" {
		lex, err = lexicon.LoadLexiconFile(res.Lexicon, cfg.MaxWords)
		if err != nil {
			return nil, fmt.Errorf("%w: lexicon %s: %v", ErrLoad, res.Lexicon, err)
		}
	}
	ngram, err := language.LoadARPAFile(res.LM)
	if err != nil {
		return nil, fmt.Errorf("%w: language model %s: %v", ErrLoad, res.LM, err)
	}
	return New(cfg, tokens, lex, language.NewModel(ngram), transitions)
}
