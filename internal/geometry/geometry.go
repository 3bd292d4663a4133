// Package geometry computes great-circle bearings and distances between
// coordinates on a spherical Earth.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371

// ErrInvalidCoordinate is returned for latitudes outside [-90,90],
// longitudes outside [-180,180] and non-finite values.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Kaaba is the fixed destination all bearings are computed towards.
var Kaaba = Coordinate{Lat: 21.422487, Lon: 39.826206}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v: %w", c.Lat, ErrInvalidCoordinate)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v: %w", c.Lon, ErrInvalidCoordinate)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// BearingResult is the direction and distance from an observer to the
// destination. BearingDegrees is rounded to a whole degree; DistanceKm
// keeps full precision.
type BearingResult struct {
	BearingDegrees float64 `json:"bearing_deg"`
	DistanceKm     float64 `json:"distance_km"`
}

// RoundedDistanceKm is the distance for display.
func (r BearingResult) RoundedDistanceKm() float64 {
	return math.Round(r.DistanceKm)
}

// BearingAndDistance returns the initial great-circle bearing and the
// haversine distance from observer to destination.
func BearingAndDistance(observer, destination Coordinate) (BearingResult, error) {
	if err := observer.Validate(); err != nil {
		return BearingResult{}, fmt.Errorf("observer: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return BearingResult{}, fmt.Errorf("destination: %w", err)
	}
	// Whole degrees; 359.5 and up folds onto 0.
	bearing := math.Mod(math.Round(Course(observer, destination)), 360)
	return BearingResult{
		BearingDegrees: bearing,
		DistanceKm:     Distance(observer, destination),
	}, nil
}

// Distance is the haversine great-circle distance in kilometers.
func Distance(p0, p1 Coordinate) float64 {
	lat0 := p0.Lat * math.Pi / 180
	lat1 := p1.Lat * math.Pi / 180
	dLat := lat1 - lat0
	dLon := (p1.Lon - p0.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat0)*math.Cos(lat1)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Course is the unrounded initial bearing from p0 to p1, in [0,360).
func Course(p0, p1 Coordinate) float64 {
	// β = atan2(X,Y),
	// X = cos θb * sin ∆L
	// Y = cos θa * sin θb – sin θa * cos θb * cos ∆L
	p0.Lat *= math.Pi / 180
	p0.Lon *= math.Pi / 180
	p1.Lat *= math.Pi / 180
	p1.Lon *= math.Pi / 180
	X := math.Cos(p1.Lat) * math.Sin(p1.Lon-p0.Lon)
	Y := math.Cos(p0.Lat)*math.Sin(p1.Lat) - math.Sin(p0.Lat)*math.Cos(p1.Lat)*math.Cos(p1.Lon-p0.Lon)
	v := math.Atan2(X, Y) / math.Pi * 180
	return math.Mod(v+360, 360)
}

func CardinalDirection(degrees int) string {
	if degrees < 23 {
		return "N"
	} else if degrees < 68 {
		return "NE"
	} else if degrees < 113 {
		return "E"
	} else if degrees < 158 {
		return "SE"
	} else if degrees < 203 {
		return "S"
	} else if degrees < 248 {
		return "SW"
	} else if degrees < 293 {
		return "W"
	} else if degrees < 338 {
		return "NW"
	} else {
		return "N"
	}
}
