package chime

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
	"golang.org/x/exp/slog"
)

const (
	sampleRate = beep.SampleRate(44100)
	// Gain of each tone at its onset; four overlapping tones stay below 1.
	toneGain = 0.2
)

// Decay scales a streamer by gain·exp(-t/tau), t counted in samples from
// the first Stream call.
type Decay struct {
	Streamer beep.Streamer
	Gain     float64
	// factor is the per-sample multiplier exp(-1/(tau·rate)).
	factor float64
	level  float64
}

// NewDecay returns an envelope that falls to 1/e of gain after tau.
func NewDecay(s beep.Streamer, rate beep.SampleRate, gain float64, tau time.Duration) *Decay {
	factor := 0.0
	if n := tau.Seconds() * float64(rate); n > 0 {
		factor = math.Exp(-1 / n)
	}
	return &Decay{Streamer: s, Gain: gain, factor: factor, level: 1}
}

func (d *Decay) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = d.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		g := d.Gain * d.level
		samples[i][0] *= g
		samples[i][1] *= g
		d.level *= d.factor
	}
	return n, ok
}

func (d *Decay) Err() error {
	return d.Streamer.Err()
}

// Speaker is a Synth playing through the system audio device. The device
// is opened on first use; if that fails every later Schedule returns
// ErrAudioUnavailable without retrying.
type Speaker struct {
	logger  *slog.Logger
	once    sync.Once
	initErr error
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	return &Speaker{logger: logger.With("module", "speaker")}
}

func (s *Speaker) init() {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		s.initErr = fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		s.logger.Warn("Audio output disabled", "error", err)
		return
	}
	s.logger.Debug("Audio output initialized", "rate", int(sampleRate))
}

func (s *Speaker) Schedule(tones []Tone) error {
	s.once.Do(s.init)
	if s.initErr != nil {
		return s.initErr
	}

	mix, err := Render(sampleRate, tones)
	if err != nil {
		return err
	}
	speaker.Play(mix)
	return nil
}

// Render builds a single streamer playing all tones at their offsets.
func Render(rate beep.SampleRate, tones []Tone) (beep.Streamer, error) {
	streams := make([]beep.Streamer, 0, len(tones))
	for _, t := range tones {
		sine, err := generators.SineTone(rate, t.Frequency)
		if err != nil {
			return nil, fmt.Errorf("tone %.2f Hz: %w", t.Frequency, err)
		}
		note := NewDecay(beep.Take(rate.N(t.Duration), sine), rate, toneGain, t.Duration/4)
		streams = append(streams, beep.Seq(beep.Silence(rate.N(t.Offset)), note))
	}
	return beep.Mix(streams...), nil
}
