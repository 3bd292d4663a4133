// Package session ties bearing, heading smoothing, animation, alignment and
// the alignment cue together for one compass session.
package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"calmh.dev/qibla/internal/alignment"
	"calmh.dev/qibla/internal/chime"
	"calmh.dev/qibla/internal/config"
	"calmh.dev/qibla/internal/geometry"
	"calmh.dev/qibla/internal/heading"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// ErrFixLatched is returned by SetFix once the session already has a
// position.
var ErrFixLatched = errors.New("session already has a fix")

// Sample is one compass reading in degrees from north.
type Sample struct {
	Degrees float64
	Source  string
}

// Fix is one position report.
type Fix struct {
	geometry.Coordinate
	Source string
}

// Snapshot is the read-only state handed to the presentation layer.
type Snapshot struct {
	Session    string              `json:"session"`
	HasFix     bool                `json:"has_fix"`
	Observer   geometry.Coordinate `json:"observer"`
	Bearing    float64             `json:"bearing_deg"`
	DistanceKm float64             `json:"distance_km"`
	HasHeading bool                `json:"has_heading"`
	Smoothed   float64             `json:"smoothed_deg"`
	Displayed  float64             `json:"displayed_deg"`
	Aligned    bool                `json:"aligned"`
	Diff       float64             `json:"diff_deg"`
	Cardinal   string              `json:"cardinal,omitempty"`
}

// Session owns all state of one compass session. Samples may be pushed
// from any goroutine; Tick belongs to a single frame loop.
type Session struct {
	id     string
	tuning config.Tuning
	cue    *chime.CuePlayer
	logger *slog.Logger
	agg    *heading.Aggregator

	mut       sync.Mutex
	hasFix    bool
	observer  geometry.Coordinate
	bearing   geometry.BearingResult
	anim      *heading.Animator
	det       *alignment.Detector
	last      alignment.Result
	displayed float64
	hasShown  bool
}

func New(tuning config.Tuning, cue *chime.CuePlayer, logger *slog.Logger) *Session {
	id := uuid.New().String()
	anim := heading.NewAnimator()
	anim.Lerp = tuning.LerpFactor
	anim.DeadZone = tuning.DeadZone
	anim.MinUpdateInterval = tuning.MinUpdateInterval.Std()
	det := alignment.NewDetector()
	det.Enter = tuning.EnterTolerance
	det.Exit = tuning.ExitTolerance

	return &Session{
		id:     id,
		tuning: tuning,
		cue:    cue,
		logger: logger.With("module", "session", "session", id),
		agg:    heading.NewAggregator(tuning.Window),
		anim:   anim,
		det:    det,
	}
}

func (s *Session) ID() string {
	return s.id
}

// SetFix latches the observer position and computes the bearing to the
// destination. Only the first valid fix of a session is used.
func (s *Session) SetFix(f Fix) (geometry.BearingResult, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.hasFix {
		return s.bearing, ErrFixLatched
	}
	res, err := geometry.BearingAndDistance(f.Coordinate, s.tuning.Destination)
	if err != nil {
		fixesRejected.WithLabelValues(f.Source).Inc()
		return geometry.BearingResult{}, fmt.Errorf("fix from %s: %w", f.Source, err)
	}

	s.hasFix = true
	s.observer = f.Coordinate
	s.bearing = res
	fixesAccepted.WithLabelValues(f.Source).Inc()
	targetBearing.Set(res.BearingDegrees)
	targetDistance.Set(res.DistanceKm)
	s.logger.Info("Position fixed", "source", f.Source, "observer", f.Coordinate.String(),
		"bearing", res.BearingDegrees, "distance_km", res.RoundedDistanceKm())
	return res, nil
}

// PushHeading feeds one compass sample into the smoothing window and
// returns the smoothed heading. Non-finite samples are skipped.
func (s *Session) PushHeading(sample Sample) (float64, bool) {
	samplesInput.WithLabelValues(sample.Source).Inc()
	mean, ok := s.agg.Push(sample.Degrees)
	if !ok {
		samplesRejected.WithLabelValues(sample.Source).Inc()
		return mean, false
	}
	smoothedHeading.Set(mean)
	return mean, true
}

// Tick advances the displayed heading by one frame, evaluates alignment
// and fires the cue on entry. The snapshot should be published when
// publish is true.
func (s *Session) Tick(now time.Time) (snap Snapshot, publish bool) {
	target, ok := s.agg.Mean()
	if !ok {
		return s.Snapshot(), false
	}

	s.mut.Lock()
	displayed, publish := s.anim.Tick(target, now)
	s.displayed = displayed
	s.hasShown = true

	var res alignment.Result
	hasFix, bearing := s.hasFix, s.bearing.BearingDegrees
	if hasFix {
		res = s.det.Evaluate(bearing, displayed)
		if res.State != s.last.State {
			publish = true
			alignedState.Set(float64(res.State))
			s.logger.Debug("Alignment changed", "state", res.State, "diff", res.Diff)
		}
		s.last = res
	}
	snap = s.snapshotLocked(target)
	s.mut.Unlock()

	if publish {
		displayedHeading.Set(displayed)
		updatesPublished.Inc()
	}
	if res.JustEntered {
		alignmentsEntered.Inc()
		s.logger.Info("Aligned", "bearing", bearing, "heading", math.Round(displayed))
	}
	if hasFix {
		s.cue.MaybePlay(res.JustEntered, now)
	}
	return snap, publish
}

// TestSound plays the cue immediately, ignoring alignment and cooldown.
func (s *Session) TestSound(now time.Time) chime.Outcome {
	return s.cue.TestSound(now)
}

func (s *Session) Snapshot() Snapshot {
	target, _ := s.agg.Mean()
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.snapshotLocked(target)
}

func (s *Session) snapshotLocked(smoothed float64) Snapshot {
	snap := Snapshot{
		Session:    s.id,
		HasFix:     s.hasFix,
		HasHeading: s.hasShown,
		Smoothed:   smoothed,
		Displayed:  s.displayed,
	}
	if s.hasFix {
		snap.Observer = s.observer
		snap.Bearing = s.bearing.BearingDegrees
		snap.DistanceKm = s.bearing.DistanceKm
		snap.Cardinal = geometry.CardinalDirection(int(s.bearing.BearingDegrees))
		snap.Aligned = s.last.State == alignment.Aligned
		snap.Diff = s.last.Diff
	}
	return snap
}

// Reset returns the session to its initial state: no fix, empty window,
// no displayed heading, not aligned, no cue cooldown.
func (s *Session) Reset() {
	s.agg.Reset()
	s.mut.Lock()
	s.hasFix = false
	s.observer = geometry.Coordinate{}
	s.bearing = geometry.BearingResult{}
	s.anim.Reset()
	s.det.Reset()
	s.last = alignment.Result{}
	s.displayed = 0
	s.hasShown = false
	s.mut.Unlock()
	s.cue.Reset()
	alignedState.Set(0)
}
