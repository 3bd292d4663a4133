package testchime

import (
	"context"
	"time"

	"calmh.dev/qibla/internal/chime"
	"golang.org/x/exp/slog"
)

type CLI struct {
	Repeat   int           `default:"1" help:"Number of times to play the chime"`
	Interval time.Duration `default:"2s" help:"Pause between repeats"`
}

func (cli *CLI) Run(ctx context.Context, logger *slog.Logger) error {
	return cli.play(ctx, chime.NewSpeaker(logger), logger)
}

func (cli *CLI) play(ctx context.Context, synth chime.Synth, logger *slog.Logger) error {
	cue := chime.NewCuePlayer(synth, 0, logger)
	wait := chime.Length(chime.Motif) + cli.Interval

	for i := 0; i < cli.Repeat; i++ {
		if i > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if cue.TestSound(time.Now()) == chime.Unavailable {
			return chime.ErrAudioUnavailable
		}
		logger.Info("Played chime", "n", i+1)
	}

	// Playback is asynchronous; let the last motif finish.
	select {
	case <-time.After(chime.Length(chime.Motif)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
