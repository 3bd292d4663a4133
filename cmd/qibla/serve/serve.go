package serve

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"calmh.dev/qibla/internal/chime"
	"calmh.dev/qibla/internal/config"
	"calmh.dev/qibla/internal/geometry"
	"calmh.dev/qibla/internal/session"
	"github.com/thejerf/suture/v4"
	"golang.org/x/exp/slog"
)

type CLI struct {
	InputTCPConnect []string `help:"TCP connect input addresses (e.g., 172.16.1.2:2000)" placeholder:"ADDR" group:"Input" env:"QIBLA_INPUT_TCP_CONNECT"`
	InputUDPListen  []int    `help:"UDP broadcast input listen ports (e.g., 2000)" placeholder:"PORT" group:"Input" env:"QIBLA_INPUT_UDP_LISTEN"`
	InputSerial     []string `help:"Serial port inputs (e.g., /dev/ttyS0)" placeholder:"DEV" group:"Input" env:"QIBLA_INPUT_SERIAL"`
	InputStdin      bool     `help:"Read NMEA from standard input" group:"Input"`
	InputAIS        bool     `name:"input-ais" help:"Use own ship AIS (VDO) position reports for position and heading" group:"Input" env:"QIBLA_INPUT_AIS"`

	StaticPosition string `help:"Fixed observer position instead of GPS (e.g., 59.33,18.07)" placeholder:"LAT,LON" group:"Position" env:"QIBLA_STATIC_POSITION"`

	Config string `help:"Tuning file (YAML or TOML)" type:"path" placeholder:"FILE" group:"Tuning" env:"QIBLA_CONFIG"`
	Mute   bool   `help:"Do not play the alignment chime" group:"Tuning" env:"QIBLA_MUTE"`

	HTTPListen string `name:"http-listen" default:"127.0.0.1:9140" help:"HTTP listen address for state, websocket and metrics" placeholder:"ADDR" group:"HTTP" env:"QIBLA_HTTP_LISTEN"`
}

func (cli *CLI) Run(ctx context.Context, logger *slog.Logger) error {
	logger = logger.With("module", "serve")

	tuning, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	staticFix, err := parseStaticPosition(cli.StaticPosition)
	if err != nil {
		return err
	}

	sup := suture.New("main", suture.Spec{
		EventHook: func(ev suture.Event) {
			logger.Error(ev.String())
		},
	})

	input := make(chan string, 4096)
	sentences := newRouter(input)

	if cli.InputStdin {
		logger.Info("Reading NMEA from stdin")
		sup.Add(streamSentences("stdin", os.Stdin, input))
	}

	for _, addr := range cli.InputTCPConnect {
		logger.Info("Reading NMEA from TCP", "addr", addr)
		sup.Add(tcpSentences(addr, input))
	}

	for _, port := range cli.InputUDPListen {
		logger.Info("Reading NMEA from UDP", "port", port)
		sup.Add(udpSentences(port, input))
	}

	for _, dev := range cli.InputSerial {
		logger.Info("Reading NMEA from serial device", "dev", dev)
		sup.Add(serialSentences(dev, input))
	}

	fixes := make(chan session.Fix, 16)
	headings := make(chan session.Sample, 256)

	sup.Add(nmeaDecoder(sentences.Route("instruments", isInstrumentSentence), fixes, headings))
	if cli.InputAIS {
		logger.Info("Using own ship AIS reports")
		sup.Add(ownShipDecoder(sentences.Route("ais", isAISSentence), fixes, headings))
	}
	sup.Add(sentences)

	var synth chime.Synth = chime.NewSpeaker(logger)
	if cli.Mute {
		logger.Info("Alignment chime muted")
		synth = chime.Muted{Logger: logger}
	}

	hub := newHub()
	loop := &session.Loop{
		Fixes:     fixes,
		Headings:  headings,
		Tuning:    tuning,
		Synth:     synth,
		Logger:    logger,
		StaticFix: staticFix,
		OnUpdate:  hub.Publish,
	}
	if staticFix != nil {
		logger.Info("Using static position", "position", staticFix.Coordinate.String())
	}
	logger.Info("Computing bearing", "destination", tuning.Destination.String())
	sup.Add(loop)

	if cli.HTTPListen != "" {
		url := &url.URL{Scheme: "http", Host: cli.HTTPListen, Path: "/state"}
		logger.Info("Serving state, websocket and metrics", "url", url.String())
		sup.Add(&httpServer{addr: cli.HTTPListen, loop: loop, hub: hub, logger: logger})
	}

	return sup.Serve(ctx)
}

// parseStaticPosition parses "lat,lon". The empty string means no static
// position.
func parseStaticPosition(s string) (*session.Fix, error) {
	if s == "" {
		return nil, nil
	}
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("static position %q: expected LAT,LON", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, fmt.Errorf("static position latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return nil, fmt.Errorf("static position longitude: %w", err)
	}
	c := geometry.Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("static position: %w", err)
	}
	return &session.Fix{Coordinate: c, Source: "static"}, nil
}
