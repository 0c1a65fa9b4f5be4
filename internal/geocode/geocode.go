// Package geocode resolves free-text property addresses to coordinates.
package geocode

//go:generate mockgen -destination=mocks/mock_geocoder.go -package=mocks wisebox-backend/internal/geocode Geocoder

import (
	"context"
	"errors"
)

var (
	ErrNoMatch      = errors.New("address not found")
	ErrEmptyAddress = errors.New("address is empty")
)

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Dhaka is the map center used before an address is resolved.
var Dhaka = Coordinates{Lat: 23.8103, Lng: 90.4125}

func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}
