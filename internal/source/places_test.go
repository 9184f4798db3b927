package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
)

func testPlaces(baseURL, apiKey string) *Places {
	return NewPlaces(config.PlacesConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		PageSize:       2,
		PageInterval:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
	}, testLogger())
}

func TestPlaces_FetchAll_Paginates(t *testing.T) {
	pages := map[string]string{
		"0": `{"results":[
			{"place_id":"p1","name":"5th & Mission Garage","category":"parking_garage","address":"833 Mission St","location":{"lat":37.7821,"lng":-122.4058},"capacity":2585},
			{"place_id":"p2","name":"Surface Lot","category":"parking_lot","location":{"lat":37.78,"lng":-122.41}}
		]}`,
		"2": `{"results":[{"place_id":"p3","name":"Ghost","category":"parking_lot","location":{"lat":0,"lng":0}}]}`,
		"3": `{"results":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "parking", r.URL.Query().Get("query"))

		body, ok := pages[r.URL.Query().Get("offset")]
		require.True(t, ok, "unexpected offset %s", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := testPlaces(srv.URL, "test-key")
	assert.Equal(t, domain.SourcePlaces, p.Name())

	candidates, skipped, err := p.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 1, skipped, "the null island listing is skipped")

	garage := candidates[0]
	assert.Equal(t, "place-p1", garage.SourceID)
	assert.Equal(t, domain.SourcePlaces, garage.PrimarySource)
	assert.Equal(t, domain.SpotTypeGarage, garage.SpotType)
	assert.Equal(t, "833 Mission St", garage.Address)
	assert.Equal(t, 2585, garage.Capacity)
	assert.Equal(t, 0.85, garage.Confidence)

	lot := candidates[1]
	assert.Equal(t, domain.SpotTypeLot, lot.SpotType)
	assert.Equal(t, "Surface Lot", lot.Address, "name stands in for a missing address")
}

func TestPlaces_FetchAll_MissingAPIKey(t *testing.T) {
	p := testPlaces("http://places.invalid", "")
	_, _, err := p.FetchAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestPlaces_SearchNearby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nearby", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "37.7821", r.URL.Query().Get("lat"))
		assert.Equal(t, "-122.4058", r.URL.Query().Get("lng"))
		assert.Equal(t, "500", r.URL.Query().Get("radius"))

		_, _ = w.Write([]byte(`{"results":[
			{"place_id":"p9","name":"Jessie Square Garage","category":"parking_garage","address":"223 Stevenson St","location":{"lat":37.7867,"lng":-122.4036},"capacity":450}
		]}`))
	}))
	defer srv.Close()

	p := testPlaces(srv.URL, "test-key")
	spots, err := p.SearchNearby(context.Background(), 37.7821, -122.4058, 500)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, "place-p9", spots[0].SourceID)
	assert.Equal(t, 450, spots[0].Capacity)
}

func TestPlaces_SearchNearby_MissingAPIKey(t *testing.T) {
	p := testPlaces("http://places.invalid", "")
	_, err := p.SearchNearby(context.Background(), 37.78, -122.41, 500)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}
