package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *MapboxClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewMapboxClient("tok", "BD")
	require.NotNil(t, c)
	c.endpoint = srv.URL + "/geocoding/v5/mapbox.places"
	return c
}

func TestMapboxGeocode(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"place_name":"Dhanmondi, Dhaka","center":[90.3742,23.7461]}]}`))
	})

	coords, err := c.Geocode(context.Background(), "  Road 27, Dhanmondi ")
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Lat: 23.7461, Lng: 90.3742}, coords)
	assert.Equal(t, "/geocoding/v5/mapbox.places/Road%2027%2C%20Dhanmondi.json", gotPath)
	assert.Contains(t, gotQuery, "access_token=tok")
	assert.Contains(t, gotQuery, "country=bd")
	assert.Contains(t, gotQuery, "limit=1")
}

func TestMapboxGeocodeFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	})
	_, err := c.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = c.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Authorized - Invalid Token"}`, http.StatusUnauthorized)
	})
	_, err = c.Geocode(context.Background(), "Dhaka")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestNewMapboxClientWithoutToken(t *testing.T) {
	assert.Nil(t, NewMapboxClient(" ", "BD"))
	var c *MapboxClient
	_, err := c.Geocode(context.Background(), "Dhaka")
	assert.Error(t, err)
}
