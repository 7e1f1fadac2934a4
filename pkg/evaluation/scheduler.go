package evaluation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"interviewer/pkg/logx"
)

// Passer runs one evaluation pass. *Evaluator implements it.
type Passer interface {
	Evaluate(ctx context.Context, req Request) Result
}

// Scheduler launches evaluation passes without waiting for them.
//
// A dispatched pass is detached from the caller: it keeps running after the request
// that started it returns, and it is never cancelled. Readers of the store see its
// result whenever it commits, so a plan returned alongside a reply may lag behind the
// evaluation of that same reply.
type Scheduler struct {
	evaluator Passer
	wg        sync.WaitGroup
	inFlight  atomic.Int64
	logger    *logx.Logger

	// OnDone, when set, observes each finished pass. Tests use it to synchronise.
	OnDone func(Request, Result)
}

// NewScheduler returns a scheduler running passes on evaluator.
func NewScheduler(evaluator Passer) *Scheduler {
	return &Scheduler{
		evaluator: evaluator,
		logger:    logx.NewLogger("scheduler"),
	}
}

// Dispatch starts a pass for req and returns immediately.
func (s *Scheduler) Dispatch(ctx context.Context, req Request) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	s.inFlight.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)

		res := s.evaluator.Evaluate(detached, req)
		logx.Debug(logx.WithSessionKey(detached, req.SessionKey), "evaluation",
			"pass finished: updated=%t applied=%d skipped=%d", res.Updated, res.Applied, res.Skipped)
		if s.OnDone != nil {
			s.OnDone(req, res)
		}
	}()
}

// InFlight returns the number of passes still running.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Wait blocks until every dispatched pass finishes or timeout elapses. It reports
// whether the drain completed; passes still running after a timeout are abandoned.
func (s *Scheduler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("shutdown: %d evaluation passes still running after %s", s.InFlight(), timeout)
		return false
	}
}
