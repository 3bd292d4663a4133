// Package config loads the tuning file for the compass session.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"calmh.dev/qibla/internal/alignment"
	"calmh.dev/qibla/internal/chime"
	"calmh.dev/qibla/internal/geometry"
	"calmh.dev/qibla/internal/heading"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration that decodes from strings such as "50ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Tuning holds the session parameters.
type Tuning struct {
	Destination       geometry.Coordinate `yaml:"destination" toml:"destination"`
	Window            int                 `yaml:"window" toml:"window"`
	LerpFactor        float64             `yaml:"lerp_factor" toml:"lerp_factor"`
	DeadZone          float64             `yaml:"dead_zone" toml:"dead_zone"`
	MinUpdateInterval Duration            `yaml:"min_update_interval" toml:"min_update_interval"`
	FrameInterval     Duration            `yaml:"frame_interval" toml:"frame_interval"`
	EnterTolerance    float64             `yaml:"enter_tolerance" toml:"enter_tolerance"`
	// ExitTolerance above EnterTolerance adds exit hysteresis. Zero means
	// the same as EnterTolerance.
	ExitTolerance float64  `yaml:"exit_tolerance" toml:"exit_tolerance"`
	Cooldown      Duration `yaml:"cooldown" toml:"cooldown"`
}

func Default() Tuning {
	return Tuning{
		Destination:       geometry.Kaaba,
		Window:            heading.DefaultWindow,
		LerpFactor:        heading.DefaultLerpFactor,
		DeadZone:          heading.DefaultDeadZone,
		MinUpdateInterval: Duration(heading.DefaultMinUpdateInterval),
		FrameInterval:     Duration(time.Second / 60),
		EnterTolerance:    alignment.DefaultTolerance,
		Cooldown:          Duration(chime.DefaultCooldown),
	}
}

// Load reads a yaml or toml file, chosen by extension, on top of the
// defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bs, &t)
	case ".toml":
		err = toml.Unmarshal(bs, &t)
	default:
		return t, fmt.Errorf("config %s: unknown format %q: %w", path, ext, ErrInvalid)
	}
	if err != nil {
		return t, fmt.Errorf("config %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("config %s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if err := t.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if t.Window < 1 {
		return fmt.Errorf("window %d: %w", t.Window, ErrInvalid)
	}
	if t.LerpFactor <= 0 || t.LerpFactor > 1 {
		return fmt.Errorf("lerp_factor %v: %w", t.LerpFactor, ErrInvalid)
	}
	if t.DeadZone < 0 {
		return fmt.Errorf("dead_zone %v: %w", t.DeadZone, ErrInvalid)
	}
	if t.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval %v: %w", t.FrameInterval.Std(), ErrInvalid)
	}
	if t.MinUpdateInterval < 0 || t.Cooldown < 0 {
		return fmt.Errorf("negative interval: %w", ErrInvalid)
	}
	if t.EnterTolerance <= 0 || t.EnterTolerance > 180 {
		return fmt.Errorf("enter_tolerance %v: %w", t.EnterTolerance, ErrInvalid)
	}
	if t.ExitTolerance != 0 && t.ExitTolerance < t.EnterTolerance {
		return fmt.Errorf("exit_tolerance %v below enter_tolerance %v: %w", t.ExitTolerance, t.EnterTolerance, ErrInvalid)
	}
	return nil
}
