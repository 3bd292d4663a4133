package bearing

import (
	"fmt"
	"io"
	"os"

	"calmh.dev/qibla/internal/config"
	"calmh.dev/qibla/internal/geometry"
	"golang.org/x/exp/slog"
)

type CLI struct {
	Lat    float64 `required:"" help:"Observer latitude in decimal degrees"`
	Lon    float64 `required:"" help:"Observer longitude in decimal degrees"`
	Config string  `help:"Tuning file (YAML or TOML) for a different destination" type:"path" placeholder:"FILE" env:"QIBLA_CONFIG"`
}

func (cli *CLI) Run(logger *slog.Logger) error {
	return cli.print(os.Stdout, logger)
}

func (cli *CLI) print(w io.Writer, logger *slog.Logger) error {
	tuning, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	observer := geometry.Coordinate{Lat: cli.Lat, Lon: cli.Lon}
	res, err := geometry.BearingAndDistance(observer, tuning.Destination)
	if err != nil {
		return err
	}
	logger.Debug("Computed bearing", "observer", observer.String(), "destination", tuning.Destination.String())

	fmt.Fprintf(w, "Bearing:  %.0f° (%s)\n", res.BearingDegrees, geometry.CardinalDirection(int(res.BearingDegrees)))
	fmt.Fprintf(w, "Distance: %.0f km\n", res.RoundedDistanceKm())
	return nil
}
