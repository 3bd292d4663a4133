package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"calmh.dev/qibla/internal/geometry"
	"calmh.dev/qibla/internal/session"
	"github.com/BertoldVdb/go-ais"
	nmea "github.com/adrianmo/go-nmea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rawHeading = newLiveGauge(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "sensors",
		Name:      "raw_heading_degrees",
	}))
	rawLatitude = newLiveGauge(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "sensors",
		Name:      "raw_latitude_degrees",
	}))
	rawLongitude = newLiveGauge(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "sensors",
		Name:      "raw_longitude_degrees",
	}))

	sensorReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "sensors",
		Name:      "readings_total",
	}, []string{"source"})
	sensorDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "sensors",
		Name:      "readings_dropped_total",
	}, []string{"kind"})
)

// AIS "not available" markers.
const (
	aisNoLatitude  = 91
	aisNoLongitude = 181
	aisNoHeading   = 511
)

// reading is what one sentence contributed; either side may be nil.
type reading struct {
	fix     *session.Fix
	heading *session.Sample
}

// decodeNMEA extracts compass headings and position fixes from
// instrument sentences. Invalid or unrelated sentences yield nothing.
func decodeNMEA(line string) (reading, bool) {
	sent, err := nmea.Parse(line)
	if err != nil {
		return reading{}, false
	}
	source := strings.ToLower(sent.DataType())

	switch sent.DataType() {
	case nmea.TypeHDT:
		hdt := sent.(nmea.HDT)
		return reading{heading: &session.Sample{Degrees: hdt.Heading, Source: source}}, true

	case nmea.TypeHDG:
		hdg := sent.(nmea.HDG)
		return reading{heading: &session.Sample{Degrees: hdg.Heading, Source: source}}, true

	case nmea.TypeHDM:
		hdm := sent.(nmea.HDM)
		return reading{heading: &session.Sample{Degrees: hdm.Heading, Source: source}}, true

	case nmea.TypeGLL:
		gll := sent.(nmea.GLL)
		if gll.Validity == "A" {
			return fixReading(gll.Latitude, gll.Longitude, source), true
		}

	case nmea.TypeRMC:
		rmc := sent.(nmea.RMC)
		if rmc.Validity == "A" {
			return fixReading(rmc.Latitude, rmc.Longitude, source), true
		}

	case nmea.TypeGGA:
		gga := sent.(nmea.GGA)
		if gga.FixQuality != nmea.Invalid {
			return fixReading(gga.Latitude, gga.Longitude, source), true
		}
	}
	return reading{}, false
}

func fixReading(lat, lon float64, source string) reading {
	return reading{fix: &session.Fix{Coordinate: geometry.Coordinate{Lat: lat, Lon: lon}, Source: source}}
}

// positionReport holds the fields shared by class A and class B position
// reports.
type positionReport struct {
	Latitude    float64
	Longitude   float64
	TrueHeading uint16
}

// decodeOwnShip extracts our own position and true heading from AIS VDO
// position reports.
func decodeOwnShip(dec *ais.Codec, line string) (reading, bool) {
	sent, err := nmea.Parse(line)
	if err != nil {
		return reading{}, false
	}
	vdmvdo, ok := sent.(nmea.VDMVDO)
	if !ok || vdmvdo.DataType() != nmea.TypeVDO || vdmvdo.NumFragments > 1 {
		return reading{}, false
	}
	pkt := dec.DecodePacket(vdmvdo.Payload)
	if pkt == nil {
		return reading{}, false
	}
	switch pkt.GetHeader().MessageID {
	case 1, 2, 3, 18:
	default:
		return reading{}, false
	}

	// The report types differ but name their fields alike.
	bs, err := json.Marshal(pkt)
	if err != nil {
		return reading{}, false
	}
	var rep positionReport
	if err := json.Unmarshal(bs, &rep); err != nil {
		return reading{}, false
	}

	var r reading
	if rep.Latitude != aisNoLatitude && rep.Longitude != aisNoLongitude {
		r.fix = &session.Fix{Coordinate: geometry.Coordinate{Lat: rep.Latitude, Lon: rep.Longitude}, Source: "ais"}
	}
	if rep.TrueHeading != aisNoHeading {
		r.heading = &session.Sample{Degrees: float64(rep.TrueHeading), Source: "ais"}
	}
	return r, r.fix != nil || r.heading != nil
}

// sensorDecoder turns sentence lines into fixes and heading samples for
// the session loop.
type sensorDecoder struct {
	name     string
	c        <-chan string
	decode   func(line string) (reading, bool)
	fixes    chan<- session.Fix
	headings chan<- session.Sample
}

func nmeaDecoder(c <-chan string, fixes chan<- session.Fix, headings chan<- session.Sample) *sensorDecoder {
	return &sensorDecoder{name: "nmea", c: c, decode: decodeNMEA, fixes: fixes, headings: headings}
}

func ownShipDecoder(c <-chan string, fixes chan<- session.Fix, headings chan<- session.Sample) *sensorDecoder {
	dec := ais.CodecNew(false, false)
	return &sensorDecoder{
		name:     "ais",
		c:        c,
		decode:   func(line string) (reading, bool) { return decodeOwnShip(dec, line) },
		fixes:    fixes,
		headings: headings,
	}
}

func (d *sensorDecoder) String() string {
	return fmt.Sprintf("sensor-decoder(%s)@%p", d.name, d)
}

func (d *sensorDecoder) Serve(ctx context.Context) error {
	for {
		select {
		case line := <-d.c:
			r, ok := d.decode(line)
			if !ok {
				continue
			}
			if r.heading != nil {
				sensorReadings.WithLabelValues(r.heading.Source).Inc()
				rawHeading.Set(r.heading.Degrees)
				select {
				case d.headings <- *r.heading:
				default:
					sensorDropped.WithLabelValues("heading").Inc()
				}
			}
			if r.fix != nil {
				sensorReadings.WithLabelValues(r.fix.Source).Inc()
				rawLatitude.Set(r.fix.Lat)
				rawLongitude.Set(r.fix.Lon)
				select {
				case d.fixes <- *r.fix:
				default:
					sensorDropped.WithLabelValues("fix").Inc()
				}
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// liveGauge is registered while it is being updated and disappears from
// the metrics output once its sensor goes quiet.
type liveGauge struct {
	gauge      prometheus.Gauge
	mut        sync.Mutex
	unregister *time.Timer
}

func newLiveGauge(gauge prometheus.Gauge) *liveGauge {
	return &liveGauge{
		gauge: gauge,
	}
}

const gaugeLifeTime = 5 * time.Second

func (g *liveGauge) Set(v float64) {
	g.gauge.Set(v)

	g.mut.Lock()
	defer g.mut.Unlock()

	if g.unregister == nil {
		_ = prometheus.Register(g.gauge)
		g.unregister = time.AfterFunc(gaugeLifeTime, func() {
			g.mut.Lock()
			defer g.mut.Unlock()
			prometheus.Unregister(g.gauge)
			g.unregister = nil
		})
	} else {
		g.unregister.Reset(gaugeLifeTime)
	}
}
