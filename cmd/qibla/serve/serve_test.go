package serve

import (
	"errors"
	"testing"

	"calmh.dev/qibla/internal/geometry"
)

func TestParseStaticPosition(t *testing.T) {
	fix, err := parseStaticPosition("")
	if err != nil || fix != nil {
		t.Fatal("empty position should be no position", fix, err)
	}

	fix, err = parseStaticPosition("59.33, 18.07")
	if err != nil {
		t.Fatal(err)
	}
	if fix.Lat != 59.33 || fix.Lon != 18.07 || fix.Source != "static" {
		t.Error("bad fix", fix)
	}

	fix, err = parseStaticPosition("-6.2,106.8")
	if err != nil {
		t.Fatal(err)
	}
	if fix.Lat != -6.2 {
		t.Error("bad latitude", fix.Lat)
	}

	for _, bad := range []string{"59.33", "north,east", "59.33,east", "91,0", "0,-181"} {
		if _, err := parseStaticPosition(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}

	if _, err := parseStaticPosition("95,0"); !errors.Is(err, geometry.ErrInvalidCoordinate) {
		t.Error("expected invalid coordinate, got", err)
	}
}
