package geocode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinLifecycle(t *testing.T) {
	var p Pin
	assert.Equal(t, Dhaka, p.Position())

	p.Resolve(Coordinates{Lat: 23.75, Lng: 90.37})
	assert.True(t, p.Resolved)
	assert.Equal(t, Coordinates{Lat: 23.75, Lng: 90.37}, p.Position())

	p.Move(Coordinates{Lat: 23.76, Lng: 90.38})
	assert.Equal(t, Coordinates{Lat: 23.76, Lng: 90.38}, p.Position())

	p.Fail(errors.New("timeout"))
	assert.False(t, p.Resolved)
	assert.Equal(t, "timeout", p.LastError)
	assert.Equal(t, Coordinates{Lat: 23.76, Lng: 90.38}, p.Position())

	p.Resolve(Coordinates{Lat: 24, Lng: 90})
	assert.Nil(t, p.Override)
	assert.Empty(t, p.LastError)
	assert.Equal(t, Coordinates{Lat: 24, Lng: 90}, p.Position())
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Dhaka.Valid())
	assert.False(t, Coordinates{Lat: 91}.Valid())
	assert.False(t, Coordinates{Lng: -181}.Valid())
}
