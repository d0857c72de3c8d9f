// Package batch decodes a set of emission matrices across worker threads
// and aggregates word and token error rates.
package batch

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ieee0824/lexdecode-go/decoder"
	"github.com/ieee0824/lexdecode-go/lexicon"
	"github.com/ieee0824/lexdecode-go/meter"
)

// Sample holds one utterance: its emission matrix and reference targets.
type Sample struct {
	ID          string
	Emissions   []float32 // T×N row-major
	T           int
	TokenTarget []int
	WordTarget  []string
}

// EmissionSet is a decode workload. N is shared by all samples;
// Transitions is the ASG transition matrix, empty otherwise.
type EmissionSet struct {
	Samples     []Sample
	N           int
	Transitions []float32
}

// Vocab maps decoded ids back to surface forms. Words is nil when decoding
// without a lexicon, in which case word predictions are recovered by
// segmenting the token sequence on the silence token.
type Vocab struct {
	Tokens  *lexicon.Dictionary
	Words   *lexicon.Dictionary
	Sil     int
	Blank   int // -1 outside CTC
	UnkWord int // substituted for word ids outside the dictionary
}

// Options controls the batch run.
type Options struct {
	Workers     int
	Show        bool // per-sample diagnostic lines on the log sink
	ShowLetters bool // include token-level lines in show output
}

// Sinks receives hypothesis, reference and log text. Each writer is
// guarded by its own mutex, held for a single write, so lines from
// concurrent workers never interleave; ordering across workers is
// unspecified. Nil writers are ignored.
type Sinks struct {
	Hyp io.Writer
	Ref io.Writer
	Log io.Writer

	hypMu sync.Mutex
	refMu sync.Mutex
	logMu sync.Mutex
}

func (s *Sinks) writeHyp(line string) {
	if s == nil || s.Hyp == nil {
		return
	}
	s.hypMu.Lock()
	defer s.hypMu.Unlock()
	io.WriteString(s.Hyp, line)
}

func (s *Sinks) writeRef(line string) {
	if s == nil || s.Ref == nil {
		return
	}
	s.refMu.Lock()
	defer s.refMu.Unlock()
	io.WriteString(s.Ref, line)
}

func (s *Sinks) writeLog(line string) {
	if s == nil || s.Log == nil {
		return
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	io.WriteString(s.Log, line)
}

// Stats is the aggregate outcome of a batch run. WER and LER are weighted
// by each slice's word and token counts, so the result is independent of
// the worker count.
type Stats struct {
	Samples    int
	Words      int
	Tokens     int
	WER        float64
	LER        float64
	Failed     []string // ids of samples skipped for invalid input or beam collapse
	WallTime   time.Duration
	DecodeTime time.Duration // summed across workers
	PerSample  time.Duration // average decode latency per successful sample
}

// workerStats crosses the join barrier once per worker; workers share no
// mutable counters.
type workerStats struct {
	wer, ler   float64
	words      int
	tokens     int
	samples    int
	decodeTime time.Duration
	failed     []string
}

// Run partitions the samples into contiguous slices of ceil(n/workers),
// decodes each slice on its own goroutine with a private decoder from
// factory, and merges the per-worker statistics. The trie and language
// model behind the decoders are shared read-only. Samples that fail to
// decode are reported in Stats.Failed and do not abort the batch.
func Run(set *EmissionSet, factory func() (decoder.Decoder, error), vocab Vocab, opt Options, sinks *Sinks) (Stats, error) {
	n := len(set.Samples)
	workers := opt.Workers
	if workers <= 0 {
		workers = 1
	}
	perWorker := (n + workers - 1) / workers

	var wall meter.TimeMeter
	wall.Resume()

	results := make(chan workerStats, workers)
	var wg sync.WaitGroup
	launched := 0
	for i := 0; i < workers; i++ {
		start := i * perWorker
		if start >= n {
			break
		}
		end := start + perWorker
		if end > n {
			end = n
		}

		dec, err := factory()
		if err != nil {
			wg.Wait()
			return Stats{}, fmt.Errorf("build decoder for worker %d: %w", i, err)
		}

		wg.Add(1)
		launched++
		go func(dec decoder.Decoder, slice []Sample) {
			defer wg.Done()
			results <- runSlice(dec, slice, set.N, vocab, opt, sinks)
		}(dec, set.Samples[start:end])
	}
	wg.Wait()
	close(results)
	wall.Stop()

	var stats Stats
	perWorkerStats := make([]workerStats, 0, launched)
	for ws := range results {
		perWorkerStats = append(perWorkerStats, ws)
		stats.Samples += ws.samples
		stats.Words += ws.words
		stats.Tokens += ws.tokens
		stats.DecodeTime += ws.decodeTime
		stats.Failed = append(stats.Failed, ws.failed...)
	}
	for _, ws := range perWorkerStats {
		if stats.Words > 0 {
			stats.WER += ws.wer * float64(ws.words) / float64(stats.Words)
		}
		if stats.Tokens > 0 {
			stats.LER += ws.ler * float64(ws.tokens) / float64(stats.Tokens)
		}
	}
	stats.WallTime = wall.Value()
	if stats.Samples > 0 {
		stats.PerSample = stats.DecodeTime / time.Duration(stats.Samples)
	}
	return stats, nil
}

func runSlice(dec decoder.Decoder, slice []Sample, n int, vocab Vocab, opt Options, sinks *Sinks) workerStats {
	var ws workerStats
	var werSlice, lerSlice meter.EditMeter
	var wer, ler meter.EditMeter // per-sample display meters
	var timer meter.TimeMeter

	timer.Resume()
	for si, sample := range slice {
		results, err := dec.Decode(sample.Emissions, sample.T, n)
		if err != nil {
			ws.failed = append(ws.failed, sample.ID)
			continue
		}
		best := results[0]

		letterPrediction := TokensToLetters(best.Tokens, vocab.Tokens, vocab.Blank)
		letterTarget := TokensToLetters(sample.TokenTarget, vocab.Tokens, vocab.Blank)

		var wordPrediction []string
		if vocab.Words != nil {
			wordPrediction = wordStrings(best.Words, vocab.Words, vocab.UnkWord)
		} else {
			wordPrediction = LettersToWords(letterPrediction, vocab.Tokens.Entry(vocab.Sil))
		}

		werSlice.Add(wordPrediction, sample.WordTarget)
		lerSlice.Add(letterPrediction, letterTarget)

		wordTargetStr := strings.Join(sample.WordTarget, " ")
		wordPredictionStr := strings.Join(wordPrediction, " ")

		if opt.Show {
			wer.Reset()
			ler.Reset()
			wer.Add(wordPrediction, sample.WordTarget)
			ler.Add(letterPrediction, letterTarget)

			var buf strings.Builder
			fmt.Fprintf(&buf, "|T|: %s\n", wordTargetStr)
			fmt.Fprintf(&buf, "|P|: %s\n", wordPredictionStr)
			if opt.ShowLetters {
				fmt.Fprintf(&buf, "|t|: %s\n", strings.Join(letterTarget, " "))
				fmt.Fprintf(&buf, "|p|: %s\n", strings.Join(letterPrediction, " "))
			}
			fmt.Fprintf(&buf, "[sample: %s, WER: %g%%, LER: %g%%, slice WER: %g%%, slice LER: %g%%, progress: %g%%]\n",
				sample.ID, wer.Value(), ler.Value(),
				werSlice.Value(), lerSlice.Value(),
				float64(si+1)/float64(len(slice))*100)
			sinks.writeLog(buf.String())
		}
		sinks.writeHyp(fmt.Sprintf("%s (%s)\n", wordPredictionStr, sample.ID))
		sinks.writeRef(fmt.Sprintf("%s (%s)\n", wordTargetStr, sample.ID))

		ws.words += len(sample.WordTarget)
		ws.tokens += len(sample.TokenTarget)
		ws.samples++
	}
	timer.Stop()

	ws.wer = werSlice.Value()
	ws.ler = lerSlice.Value()
	ws.decodeTime = timer.Value()
	return ws
}

// TokensToLetters maps a token id path to surface strings, removing the
// blank class and collapsing consecutive repeats. Applied symmetrically to
// predictions and references before letter error rate.
func TokensToLetters(ids []int, tokens *lexicon.Dictionary, blank int) []string {
	out := make([]string, 0, len(ids))
	prev := -1
	for _, id := range ids {
		if id == blank {
			prev = id
			continue
		}
		if id == prev {
			continue
		}
		out = append(out, tokens.Entry(id))
		prev = id
	}
	return out
}

// LettersToWords joins letters into words, splitting on the silence token.
func LettersToWords(letters []string, sil string) []string {
	var words []string
	var cur strings.Builder
	for _, l := range letters {
		if l == sil {
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteString(l)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

// wordStrings maps word ids to surface forms, substituting the unknown
// word for any id outside the dictionary.
func wordStrings(ids []int, words *lexicon.Dictionary, unk int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= words.Size() {
			id = unk
		}
		out[i] = words.Entry(id)
	}
	return out
}
