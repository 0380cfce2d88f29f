package pipeline

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Progress tracks completed (date, satellite) units against the planned
// total and projects the remaining time from the mean unit duration.
type Progress struct {
	clock clockwork.Clock
	start time.Time
	done  int
	total int
}

func newProgress(clock clockwork.Clock, total int) Progress {
	return Progress{clock: clock, start: clock.Now(), total: total}
}

// Step records one finished unit.
func (p *Progress) Step() { p.done++ }

func (p *Progress) Done() int  { return p.done }
func (p *Progress) Total() int { return p.total }

// Elapsed is the wall time since the run started.
func (p *Progress) Elapsed() time.Duration {
	if p.clock == nil {
		return 0
	}
	return p.clock.Since(p.start)
}

// Remaining estimates elapsed/done × (total − done). It is zero before the
// first unit completes.
func (p *Progress) Remaining() time.Duration {
	if p.done == 0 || p.done >= p.total {
		return 0
	}
	per := p.Elapsed() / time.Duration(p.done)
	return per * time.Duration(p.total-p.done)
}
