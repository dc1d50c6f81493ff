// Package advisor is the boundary to the external work/decision producer.
//
// Role engines hand the producer a task prompt and get back free-text
// reasoning that ends, by convention, in a structured decision. The text
// comes from a language model, so the parsers here are deliberately
// tolerant: they scan for markers, accept noisy surroundings, and fall back
// to a safe default rather than fail. A producer outage or an unparseable
// answer degrades a decision to its default; it never crashes a handler.
package advisor

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Producer turns a task prompt into free-text output.
// Implementations wrap an external language-model API.
type Producer interface {
	Produce(ctx context.Context, prompt string) (string, error)
}

// DefaultScore is the completion score assumed when no score can be parsed
// from the producer's output.
const DefaultScore = 50

// Ruling is an arbitration outcome: who the decision favours.
type Ruling string

const (
	// RulingWorker means the worker is paid in full.
	RulingWorker Ruling = "worker"

	// RulingEmployer means the employer is refunded in full.
	RulingEmployer Ruling = "employer"

	// RulingSplit divides the budget between the two.
	RulingSplit Ruling = "split"
)

// Arbitration is the structured decision parsed from a ruling text.
type Arbitration struct {
	Ruling    Ruling
	RefundPct int  // Percentage of the budget refunded to the employer
	Penalty   bool // Whether the worker takes a reputation penalty
}

var (
	scoreMarkerRe = regexp.MustCompile(`(?i)score\s*[:=]?\s*(\d{1,3})`)
	bareIntRe     = regexp.MustCompile(`\b(\d{1,3})\b`)
	rulingRe      = regexp.MustCompile(`(?i)ruling\s*[:=]?\s*(worker|employer|split)`)
	refundRe      = regexp.MustCompile(`(?i)refund\s*(?:pct|percent|%)?\s*[:=]?\s*(\d{1,3})`)
	penaltyRe     = regexp.MustCompile(`(?i)penalty\s*[:=]?\s*(yes|true|no|false)`)
)

// ParseScore extracts a 0-100 completion score from free text. It prefers an
// explicit "SCORE: n" marker, falls back to the first bare integer, clamps
// out-of-range values, and returns DefaultScore when nothing parses.
func ParseScore(text string) int {
	if m := scoreMarkerRe.FindStringSubmatch(text); m != nil {
		return clampScore(m[1])
	}
	if m := bareIntRe.FindStringSubmatch(text); m != nil {
		return clampScore(m[1])
	}
	return DefaultScore
}

// ParseRuling extracts an arbitration decision from free text. The safe
// default on any missing piece is an even split with no penalty: the least
// damaging outcome when the arbitrator's reasoning cannot be understood.
func ParseRuling(text string) Arbitration {
	out := Arbitration{Ruling: RulingSplit, RefundPct: 50}

	if m := rulingRe.FindStringSubmatch(text); m != nil {
		out.Ruling = Ruling(strings.ToLower(m[1]))
	} else if containsWord(text, "worker") && !containsWord(text, "employer") {
		out.Ruling = RulingWorker
	} else if containsWord(text, "employer") && !containsWord(text, "worker") {
		out.Ruling = RulingEmployer
	}

	if m := refundRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
			out.RefundPct = n
		}
	} else {
		// No explicit refund: derive it from the ruling
		switch out.Ruling {
		case RulingWorker:
			out.RefundPct = 0
		case RulingEmployer:
			out.RefundPct = 100
		}
	}

	if m := penaltyRe.FindStringSubmatch(text); m != nil {
		v := strings.ToLower(m[1])
		out.Penalty = v == "yes" || v == "true"
	}

	return out
}

func clampScore(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return DefaultScore
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func containsWord(text, word string) bool {
	return strings.Contains(strings.ToLower(text), word)
}

// Scripted is a Producer that replays canned responses in order, repeating
// the last one once exhausted. Used in tests and offline runs.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	next      int
}

// NewScripted creates a scripted producer. At least one response is
// required; an empty script produces empty output.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// Produce returns the next scripted response.
func (s *Scripted) Produce(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.responses) == 0 {
		return "", nil
	}
	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}
