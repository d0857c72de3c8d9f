package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	lexdecode "github.com/ieee0824/lexdecode-go"
	"github.com/ieee0824/lexdecode-go/batch"
)

// fileConfig mirrors the command-line flags in YAML form. Flags given on
// the command line override values from the file.
type fileConfig struct {
	Tokens    string `yaml:"tokens"`
	Lexicon   string `yaml:"lexicon"`
	LM        string `yaml:"lm"`
	Emissions string `yaml:"emissions"`
	Sclite    string `yaml:"sclite"`

	DecoderType string `yaml:"decoder_type"`
	Criterion   string `yaml:"criterion"`
	Smearing    string `yaml:"smearing"`
	SilToken    string `yaml:"sil_token"`
	BlankToken  string `yaml:"blank_token"`
	UnkWord     string `yaml:"unk_word"`
	MaxWords    int    `yaml:"max_words"`

	BeamSize      int     `yaml:"beam_size"`
	BeamThreshold float64 `yaml:"beam_threshold"`
	LMWeight      float64 `yaml:"lm_weight"`
	WordScore     float64 `yaml:"word_score"`
	UnkWeight     float64 `yaml:"unk_weight"`
	SilWeight     float64 `yaml:"sil_weight"`
	LogAdd        bool    `yaml:"log_add"`

	Workers     int  `yaml:"workers"`
	Show        bool `yaml:"show"`
	ShowLetters bool `yaml:"show_letters"`
}

func defaults() fileConfig {
	d := lexdecode.DefaultConfig()
	return fileConfig{
		DecoderType:   d.DecoderType,
		Criterion:     d.Criterion,
		Smearing:      d.Smearing,
		SilToken:      d.SilToken,
		BlankToken:    d.BlankToken,
		UnkWord:       d.UnkWord,
		BeamSize:      d.BeamSize,
		BeamThreshold: d.BeamThreshold,
		LMWeight:      d.LMWeight,
		WordScore:     d.WordScore,
		UnkWeight:     d.UnkWeight,
		SilWeight:     d.SilWeight,
		Workers:       runtime.NumCPU(),
	}
}

func main() {
	def := defaults()

	configPath := flag.String("config", "", "optional YAML config file; flags override its values")
	tokens := flag.String("tokens", def.Tokens, "path to token dictionary, one token per line")
	lexiconPath := flag.String("lexicon", def.Lexicon, "path to pronunciation lexicon (empty = lexicon-free)")
	lm := flag.String("lm", def.LM, "path to language model (ARPA format)")
	emissions := flag.String("emissions", def.Emissions, "directory of emission bundles (*.bin)")
	sclite := flag.String("sclite", def.Sclite, "directory for hyp/ref/log output files (empty = disabled)")

	decoderType := flag.String("decodertype", def.DecoderType, "decoder type: wrd, tkn or free")
	criterion := flag.String("criterion", def.Criterion, "sequence criterion: ctc or asg")
	smearing := flag.String("smearing", def.Smearing, "trie smearing: none, max or logadd")
	silToken := flag.String("sil", def.SilToken, "silence token")
	blankToken := flag.String("blank", def.BlankToken, "blank token (ctc only)")
	unkWord := flag.String("unk", def.UnkWord, "unknown word surface form")
	maxWords := flag.Int("maxword", def.MaxWords, "lexicon truncation, 0 = unlimited")

	beamSize := flag.Int("beamsize", def.BeamSize, "maximum number of active hypotheses")
	beamThreshold := flag.Float64("beamthreshold", def.BeamThreshold, "prune hypotheses this far below the frame best")
	lmWeight := flag.Float64("lmweight", def.LMWeight, "language model weight")
	wordScore := flag.Float64("wordscore", def.WordScore, "per-word insertion score")
	unkWeight := flag.Float64("unkweight", def.UnkWeight, "unknown-word fallback weight")
	silWeight := flag.Float64("silweight", def.SilWeight, "per-frame silence weight")
	logAdd := flag.Bool("logadd", def.LogAdd, "combine merged hypotheses with log-add instead of max")

	workers := flag.Int("nthread", def.Workers, "number of decode workers")
	show := flag.Bool("show", def.Show, "print per-sample transcripts and error rates")
	showLetters := flag.Bool("showletters", def.ShowLetters, "include token-level lines in show output")

	flag.Parse()

	cfg := def
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fatal("read config: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fatal("parse config %s: %v", *configPath, err)
		}
	}

	// Explicit flags win over the config file.
	override := map[string]func(){
		"tokens":        func() { cfg.Tokens = *tokens },
		"lexicon":       func() { cfg.Lexicon = *lexiconPath },
		"lm":            func() { cfg.LM = *lm },
		"emissions":     func() { cfg.Emissions = *emissions },
		"sclite":        func() { cfg.Sclite = *sclite },
		"decodertype":   func() { cfg.DecoderType = *decoderType },
		"criterion":     func() { cfg.Criterion = *criterion },
		"smearing":      func() { cfg.Smearing = *smearing },
		"sil":           func() { cfg.SilToken = *silToken },
		"blank":         func() { cfg.BlankToken = *blankToken },
		"unk":           func() { cfg.UnkWord = *unkWord },
		"maxword":       func() { cfg.MaxWords = *maxWords },
		"beamsize":      func() { cfg.BeamSize = *beamSize },
		"beamthreshold": func() { cfg.BeamThreshold = *beamThreshold },
		"lmweight":      func() { cfg.LMWeight = *lmWeight },
		"wordscore":     func() { cfg.WordScore = *wordScore },
		"unkweight":     func() { cfg.UnkWeight = *unkWeight },
		"silweight":     func() { cfg.SilWeight = *silWeight },
		"logadd":        func() { cfg.LogAdd = *logAdd },
		"nthread":       func() { cfg.Workers = *workers },
		"show":          func() { cfg.Show = *show },
		"showletters":   func() { cfg.ShowLetters = *showLetters },
	}
	flag.Visit(func(f *flag.Flag) {
		if apply, ok := override[f.Name]; ok {
			apply()
		}
	})

	if cfg.Tokens == "" || cfg.LM == "" || cfg.Emissions == "" {
		fmt.Fprintln(os.Stderr, "Usage: decode -tokens TOKENS -lm LM -emissions DIR [-lexicon LEXICON]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	set, err := batch.LoadEmissionDir(cfg.Emissions)
	if err != nil {
		fatal("load emissions: %v", err)
	}
	if len(set.Samples) == 0 {
		fatal("no emission bundles under %s", cfg.Emissions)
	}

	engine, err := lexdecode.Load(lexdecode.Config{
		DecoderType:   cfg.DecoderType,
		Criterion:     cfg.Criterion,
		Smearing:      cfg.Smearing,
		SilToken:      cfg.SilToken,
		BlankToken:    cfg.BlankToken,
		UnkWord:       cfg.UnkWord,
		MaxWords:      cfg.MaxWords,
		BeamSize:      cfg.BeamSize,
		BeamThreshold: cfg.BeamThreshold,
		LMWeight:      cfg.LMWeight,
		WordScore:     cfg.WordScore,
		UnkWeight:     cfg.UnkWeight,
		SilWeight:     cfg.SilWeight,
		LogAdd:        cfg.LogAdd,
	}, lexdecode.Resources{
		Tokens:  cfg.Tokens,
		Lexicon: cfg.Lexicon,
		LM:      cfg.LM,
	}, set.Transitions)
	if err != nil {
		fatal("%v", err)
	}

	sinks := &batch.Sinks{Log: os.Stdout}
	var closers []io.Closer
	if cfg.Sclite != "" {
		base := strings.ReplaceAll(strings.Trim(filepath.ToSlash(cfg.Emissions), "/"), "/", "#")
		open := func(ext string) *os.File {
			path := filepath.Join(cfg.Sclite, base+ext)
			f, err := os.Create(path)
			if err != nil {
				fatal("open %s: %v", path, err)
			}
			closers = append(closers, f)
			return f
		}
		sinks.Hyp = open(".hyp")
		sinks.Ref = open(".ref")
		logFile := open(".log")
		sinks.Log = io.MultiWriter(os.Stdout, logFile)
	}

	stats, err := engine.Run(set, batch.Options{
		Workers:     cfg.Workers,
		Show:        cfg.Show,
		ShowLetters: cfg.ShowLetters,
	}, sinks)
	if err != nil {
		fatal("%v", err)
	}

	var buf strings.Builder
	buf.WriteString("------\n")
	fmt.Fprintf(&buf, "[Decode %s (%d samples) in %.3fs (actual decoding time %.3gs/sample) -- WER: %g, LER: %g]\n",
		cfg.Emissions, stats.Samples, stats.WallTime.Seconds(),
		stats.PerSample.Seconds(), stats.WER, stats.LER)
	for _, id := range stats.Failed {
		fmt.Fprintf(&buf, "[failed: %s]\n", id)
	}
	io.WriteString(sinks.Log, buf.String())

	for _, c := range closers {
		c.Close()
	}
	if len(stats.Failed) > 0 {
		os.Exit(2)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
