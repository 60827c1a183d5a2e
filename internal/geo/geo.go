// Package geo implements coordinate parsing and great-circle distance math
// for the settlement engine.
//
// Listings carry their location as fixed 9-character signed-degree strings
// (for example "+001.3143"), the wire format the upstream order books use.
// Distance feeds the transmission-loss estimate, which in turn decides both
// eligibility and settlement amounts.
//
// Energy quantities use shopspring/decimal like all monetary values in this
// codebase. The transcendental haversine math runs in float64 and the result
// is immediately converted back to decimal and rounded.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrMalformedLocation is returned when a coordinate string violates the
// fixed 9-character signed-degree format.
var ErrMalformedLocation = errors.New("geo: location must be a 9-character signed-degree string")

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// CoordinateLen is the fixed length of a latitude or longitude string.
const CoordinateLen = 9

var (
	// LossCoefficient scales energy lost in transit per kWh per km.
	LossCoefficient = decimal.NewFromFloat(8.3e-5)

	// EnergyScale is the number of decimal places energy results are
	// rounded to after float64 math.
	EnergyScale int32 = 8
)

// ParseCoordinate validates and parses a fixed-format coordinate string.
// The string must be exactly 9 characters, start with an explicit sign, and
// parse as a decimal degree value.
func ParseCoordinate(s string) (float64, error) {
	if len(s) != CoordinateLen {
		return 0, fmt.Errorf("%w: got %d characters", ErrMalformedLocation, len(s))
	}
	if s[0] != '+' && s[0] != '-' {
		return 0, fmt.Errorf("%w: missing leading sign in %q", ErrMalformedLocation, s)
	}
	deg, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrMalformedLocation, s)
	}
	return deg, nil
}

// Haversine computes the great-circle distance in kilometers between two
// points given in decimal degrees.
func Haversine(lat1, long1, lat2, long2 float64) float64 {
	const degToRad = math.Pi / 180

	rLat1 := lat1 * degToRad
	rLat2 := lat2 * degToRad
	dLat := (lat2 - lat1) * degToRad
	dLong := (long2 - long1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*
			math.Sin(dLong/2)*math.Sin(dLong/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Distance parses two fixed-format coordinate pairs and returns their
// great-circle distance in kilometers.
func Distance(lat1, long1, lat2, long2 string) (float64, error) {
	la1, err := ParseCoordinate(lat1)
	if err != nil {
		return 0, err
	}
	lo1, err := ParseCoordinate(long1)
	if err != nil {
		return 0, err
	}
	la2, err := ParseCoordinate(lat2)
	if err != nil {
		return 0, err
	}
	lo2, err := ParseCoordinate(long2)
	if err != nil {
		return 0, err
	}
	return Haversine(la1, lo1, la2, lo2), nil
}

// TransmissionLoss estimates the energy lost transporting amount kWh over
// distanceKm kilometers: amount * distance * LossCoefficient.
func TransmissionLoss(amount decimal.Decimal, distanceKm float64) decimal.Decimal {
	return amount.
		Mul(decimal.NewFromFloat(distanceKm)).
		Mul(LossCoefficient).
		Round(EnergyScale)
}

// GrossEnergy is the total a producer must supply to deliver amount kWh:
// the requested amount plus the transmission loss.
func GrossEnergy(amount decimal.Decimal, distanceKm float64) decimal.Decimal {
	return amount.Add(TransmissionLoss(amount, distanceKm))
}
