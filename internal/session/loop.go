package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"calmh.dev/qibla/internal/chime"
	"calmh.dev/qibla/internal/config"
	"golang.org/x/exp/slog"
)

// Loop runs one Session per Serve call. The fix stream, the heading
// stream and the frame ticker are consumed by the same goroutine, so
// returning from Serve drops all of them together and the session state
// with them.
type Loop struct {
	Fixes     <-chan Fix
	Headings  <-chan Sample
	Tuning    config.Tuning
	Synth     chime.Synth
	Logger    *slog.Logger
	StaticFix *Fix

	// OnUpdate receives published snapshots from the loop goroutine. It
	// must not block.
	OnUpdate func(Snapshot)

	current atomic.Pointer[Session]
}

func (l *Loop) String() string {
	return fmt.Sprintf("session-loop@%p", l)
}

// Current returns the running session, or nil between sessions.
func (l *Loop) Current() *Session {
	return l.current.Load()
}

func (l *Loop) Serve(ctx context.Context) error {
	cue := chime.NewCuePlayer(l.Synth, l.Tuning.Cooldown.Std(), l.Logger)
	s := New(l.Tuning, cue, l.Logger)
	l.current.Store(s)
	sessionsStarted.Inc()
	s.logger.Info("Session started")

	defer func() {
		l.current.CompareAndSwap(s, nil)
		s.Reset()
		s.logger.Info("Session ended")
	}()

	if l.StaticFix != nil {
		if _, err := s.SetFix(*l.StaticFix); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(l.Tuning.FrameInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case f := <-l.Fixes:
			if _, err := s.SetFix(f); err != nil && !errors.Is(err, ErrFixLatched) {
				s.logger.Warn("Ignoring position", "error", err)
			}

		case sample := <-l.Headings:
			s.PushHeading(sample)

		case now := <-ticker.C:
			if snap, publish := s.Tick(now); publish && l.OnUpdate != nil {
				l.OnUpdate(snap)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
