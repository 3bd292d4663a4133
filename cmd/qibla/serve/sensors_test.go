package serve

import (
	"context"
	"testing"
	"time"

	"calmh.dev/qibla/internal/session"
	"github.com/BertoldVdb/go-ais"
)

func TestDecodeNMEAHeadings(t *testing.T) {
	cases := []struct {
		line   string
		deg    float64
		source string
	}{
		{`$HEHDT,61.0,T*18`, 61, "hdt"},
		{`$HCHDG,98.3,0.0,E,12.6,W*57`, 98.3, "hdg"},
		{`$HCHDM,238.5,M*25`, 238.5, "hdm"},
	}

	for _, tc := range cases {
		r, ok := decodeNMEA(tc.line)
		if !ok {
			t.Errorf("%s: not decoded", tc.line)
			continue
		}
		if r.fix != nil {
			t.Errorf("%s: unexpected fix", tc.line)
		}
		if r.heading == nil || r.heading.Degrees != tc.deg || r.heading.Source != tc.source {
			t.Errorf("%s: bad heading %+v", tc.line, r.heading)
		}
	}
}

func TestDecodeNMEAFixes(t *testing.T) {
	cases := []string{
		`$GPGLL,2100.000,N,03900.000,E,123519.00,A,A*6D`,
		`$GPRMC,123519,A,2100.000,N,03900.000,E,022.4,084.4,230394,003.1,W*61`,
		`$GPGGA,123519,2100.000,N,03900.000,E,1,08,0.9,545.4,M,46.9,M,,*4C`,
	}

	for _, line := range cases {
		r, ok := decodeNMEA(line)
		if !ok || r.fix == nil {
			t.Errorf("%s: no fix", line)
			continue
		}
		if r.fix.Lat != 21 || r.fix.Lon != 39 {
			t.Errorf("%s: bad position %v", line, r.fix.Coordinate)
		}
	}
}

func TestDecodeNMEAIgnores(t *testing.T) {
	cases := []string{
		// no fix
		`$GPGLL,2100.000,N,03900.000,E,123519.00,V,N*75`,
		`$GPGGA,123519,2100.000,N,03900.000,E,0,00,,,M,,M,,*59`,
		// bad checksum
		`$HEHDT,61.0,T*19`,
		// unrelated
		`$YDXDR,C,4.4,C,Air,P,98950,P,Baro,C,5.4,C,ENV_INSIDE_T*1E`,
		`garbage`,
	}

	for _, line := range cases {
		if r, ok := decodeNMEA(line); ok {
			t.Errorf("%s: unexpected reading %+v", line, r)
		}
	}
}

func TestDecodeOwnShip(t *testing.T) {
	dec := ais.CodecNew(false, false)

	r, ok := decodeOwnShip(dec, `!AIVDO,1,1,,,13m62@000jRjQj0<12h2I1rt0000,0*3C`)
	if !ok {
		t.Fatal("position report not decoded")
	}
	if r.fix == nil || r.fix.Lat != 21 || r.fix.Lon != 39 {
		t.Errorf("bad fix %+v", r.fix)
	}
	if r.heading == nil || r.heading.Degrees != 61 {
		t.Errorf("bad heading %+v", r.heading)
	}

	// Heading not available
	r, ok = decodeOwnShip(dec, `!AIVDO,1,1,,,13m62@000jRjQj0<12h2I?vt0000,0*36`)
	if !ok || r.fix == nil {
		t.Fatal("position not decoded")
	}
	if r.heading != nil {
		t.Errorf("unexpected heading %+v", r.heading)
	}

	// Position not available
	r, ok = decodeOwnShip(dec, `!AIVDO,1,1,,,13m62@000jdtSF0l4Q@2I1rt0000,0*24`)
	if !ok || r.heading == nil {
		t.Fatal("heading not decoded")
	}
	if r.fix != nil {
		t.Errorf("unexpected fix %+v", r.fix)
	}

	// Other ships are not us
	if r, ok := decodeOwnShip(dec, `!AIVDM,1,1,,A,13m62@000jRjQj0<12h2I1rt0000,0*7F`); ok {
		t.Errorf("VDM decoded as own ship: %+v", r)
	}
}

func TestSensorDecoderForwards(t *testing.T) {
	lines := make(chan string, 4)
	fixes := make(chan session.Fix, 4)
	headings := make(chan session.Sample, 4)
	d := nmeaDecoder(lines, fixes, headings)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx)

	lines <- `$HEHDT,61.0,T*18`
	lines <- `$GPGLL,2100.000,N,03900.000,E,123519.00,A,A*6D`

	select {
	case s := <-headings:
		if s.Degrees != 61 {
			t.Error("bad heading", s.Degrees)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no heading")
	}
	select {
	case f := <-fixes:
		if f.Source != "gll" {
			t.Error("bad source", f.Source)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no fix")
	}
}
