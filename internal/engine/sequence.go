package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Sequence decides whether each successive trial is a target.
type Sequence interface {
	Next() (isTarget bool, err error)
}

// RandomSequence draws every trial independently with a fixed probability.
type RandomSequence struct {
	rng         *rand.Rand
	probability float64
}

// NewRandomSequence seeds from the clock when seed is zero.
func NewRandomSequence(probability float64, seed int64) *RandomSequence {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSequence{
		rng:         rand.New(rand.NewSource(seed)),
		probability: probability,
	}
}

func (s *RandomSequence) Next() (bool, error) {
	return s.rng.Float64() < s.probability, nil
}

// ScriptedSequence replays a fixed target pattern.
type ScriptedSequence struct {
	pattern []bool
	pos     int
}

// NewScriptedSequence replays pattern once.
func NewScriptedSequence(pattern []bool) *ScriptedSequence {
	return &ScriptedSequence{pattern: append([]bool(nil), pattern...)}
}

// ParsePattern reads a pattern such as "TNNT" or "T,N,N,T". T marks a
// target, N a non-target; spaces and commas are ignored.
func ParsePattern(s string) (*ScriptedSequence, error) {
	var pattern []bool
	for i, c := range strings.ToUpper(s) {
		switch c {
		case 'T':
			pattern = append(pattern, true)
		case 'N':
			pattern = append(pattern, false)
		case ' ', ',', '\t', '\n':
		default:
			return nil, fmt.Errorf("invalid trial pattern character %q at %d", c, i)
		}
	}
	return NewScriptedSequence(pattern), nil
}

// Len is the number of trials in the pattern.
func (s *ScriptedSequence) Len() int {
	return len(s.pattern)
}

func (s *ScriptedSequence) Next() (bool, error) {
	if s.pos >= len(s.pattern) {
		return false, fmt.Errorf("%w after %d trials", ErrSequenceExhausted, len(s.pattern))
	}
	isTarget := s.pattern[s.pos]
	s.pos++
	return isTarget, nil
}
