// Package chime plays the alignment cue.
package chime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/exp/slog"
)

// DefaultCooldown is the minimum time between two alignment cues.
const DefaultCooldown = 3 * time.Second

// ErrAudioUnavailable is returned by a Synth that cannot produce sound.
var ErrAudioUnavailable = errors.New("audio unavailable")

var (
	chimesPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "chime",
		Name:      "played_total",
	}, []string{"trigger"})
	chimesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "chime",
		Name:      "skipped_total",
	}, []string{"reason"})
	chimeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "chime",
		Name:      "failures_total",
	})
)

// Tone is one note of a motif, starting Offset after the motif begins.
type Tone struct {
	Frequency float64
	Offset    time.Duration
	Duration  time.Duration
}

// Motif is the ascending C major arpeggio played on alignment.
var Motif = []Tone{
	{Frequency: 523.25, Offset: 0, Duration: 600 * time.Millisecond},
	{Frequency: 659.25, Offset: 150 * time.Millisecond, Duration: 600 * time.Millisecond},
	{Frequency: 783.99, Offset: 300 * time.Millisecond, Duration: 600 * time.Millisecond},
	{Frequency: 1046.50, Offset: 450 * time.Millisecond, Duration: 600 * time.Millisecond},
}

// Length is the time from the first tone's start to the last tone's end.
func Length(tones []Tone) time.Duration {
	var end time.Duration
	for _, t := range tones {
		if e := t.Offset + t.Duration; e > end {
			end = e
		}
	}
	return end
}

// A Synth schedules tones for playback and returns without waiting for
// them to finish.
type Synth interface {
	Schedule(tones []Tone) error
}

type Outcome int

const (
	Played Outcome = iota
	SkippedNotEntered
	SkippedCooldown
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Played:
		return "played"
	case SkippedNotEntered:
		return "not-entered"
	case SkippedCooldown:
		return "cooldown"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// CuePlayer rate limits the alignment cue. It is safe for concurrent use.
type CuePlayer struct {
	synth    Synth
	cooldown time.Duration
	logger   *slog.Logger

	mut       sync.Mutex
	lastFired time.Time
}

func NewCuePlayer(synth Synth, cooldown time.Duration, logger *slog.Logger) *CuePlayer {
	return &CuePlayer{
		synth:    synth,
		cooldown: cooldown,
		logger:   logger.With("module", "chime"),
	}
}

// MaybePlay plays the motif when justEntered is set and the cooldown has
// expired. Audio failures are logged and reported as Unavailable.
func (p *CuePlayer) MaybePlay(justEntered bool, now time.Time) Outcome {
	if !justEntered {
		return SkippedNotEntered
	}

	p.mut.Lock()
	if !p.lastFired.IsZero() && now.Sub(p.lastFired) < p.cooldown {
		p.mut.Unlock()
		chimesSkipped.WithLabelValues(SkippedCooldown.String()).Inc()
		p.logger.Debug("Alignment cue in cooldown", "since", now.Sub(p.lastFired))
		return SkippedCooldown
	}
	p.lastFired = now
	p.mut.Unlock()

	return p.play("alignment")
}

// TestSound plays the motif regardless of cooldown and restarts the
// cooldown at now.
func (p *CuePlayer) TestSound(now time.Time) Outcome {
	p.mut.Lock()
	p.lastFired = now
	p.mut.Unlock()

	return p.play("test")
}

// Reset forgets the last cue time.
func (p *CuePlayer) Reset() {
	p.mut.Lock()
	p.lastFired = time.Time{}
	p.mut.Unlock()
}

func (p *CuePlayer) play(trigger string) Outcome {
	if err := p.synth.Schedule(Motif); err != nil {
		chimeFailures.Inc()
		p.logger.Warn("Alignment cue not played", "trigger", trigger, "error", err)
		return Unavailable
	}
	chimesPlayed.WithLabelValues(trigger).Inc()
	p.logger.Debug("Alignment cue played", "trigger", trigger)
	return Played
}

// Muted is a Synth that only logs.
type Muted struct {
	Logger *slog.Logger
}

func (m Muted) Schedule(tones []Tone) error {
	if m.Logger != nil {
		m.Logger.Info("Chime (muted)", "tones", len(tones), "length", Length(tones))
	}
	return nil
}
