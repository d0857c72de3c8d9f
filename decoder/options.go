package decoder

import (
	"errors"
	"fmt"
)

// ErrInvalidInput reports a malformed emission matrix (non-positive frame
// count or a class count that does not match the decoder's configuration).
var ErrInvalidInput = errors.New("invalid emission input")

// ErrBeamCollapse reports that every hypothesis was pruned away before the
// end of the sequence. The batch driver skips such samples and reports them.
var ErrBeamCollapse = errors.New("beam collapsed")

// CriterionType selects the sequence criterion the emissions were trained
// with, which governs repeat and blank handling.
type CriterionType int

const (
	CriterionCTC CriterionType = iota
	CriterionASG
)

// ParseCriterion parses a criterion name ("ctc", "asg").
func ParseCriterion(s string) (CriterionType, error) {
	switch s {
	case "ctc":
		return CriterionCTC, nil
	case "asg":
		return CriterionASG, nil
	}
	return CriterionCTC, fmt.Errorf("invalid criterion: %q", s)
}

// Options holds beam search parameters shared by all decoder variants.
type Options struct {
	BeamSize      int     // maximum number of active hypotheses
	BeamThreshold float64 // drop hypotheses this far below the frame best
	LMWeight      float64 // language model scaling factor
	WordScore     float64 // fixed per-word insertion bonus
	UnkWeight     float64 // added once per unknown-word fallback
	SilWeight     float64 // added per frame producing the silence class
	LogAdd        bool    // combine merged hypothesis scores with log-add instead of max
	Criterion     CriterionType
}

// DefaultOptions returns reasonable default parameters.
func DefaultOptions() Options {
	return Options{
		BeamSize:      250,
		BeamThreshold: 25.0,
		LMWeight:      1.0,
		WordScore:     1.0,
		UnkWeight:     -1e5,
		SilWeight:     0.0,
		Criterion:     CriterionCTC,
	}
}
