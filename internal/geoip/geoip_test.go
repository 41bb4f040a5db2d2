package geoip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMissingPath(t *testing.T) {
	_, err := Init("testdata/does-not-exist.mmdb")
	assert.Error(t, err)
}

func TestFallbackLookup(t *testing.T) {
	g, err := Init("testdata/fallback.json")
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	loc := g.Lookup(net.ParseIP("192.0.2.44"))
	assert.Equal(t, Location{Country: "US", Region: "CA", City: "San Francisco"}, loc)

	loc = g.Lookup(net.ParseIP("198.51.100.7"))
	assert.Equal(t, "DE", loc.Country)
	assert.Equal(t, "Berlin", loc.City)

	assert.Equal(t, Location{}, g.Lookup(net.ParseIP("10.0.0.1")))
}

func TestFallbackCountry(t *testing.T) {
	g, err := Init("testdata/fallback.json")
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	assert.Equal(t, "GB", g.Country(net.ParseIP("203.0.113.9")))
	assert.Equal(t, "", g.Country(net.ParseIP("10.0.0.1")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var g *GeoIP
	assert.Equal(t, Location{}, g.Lookup(net.ParseIP("192.0.2.1")))
	assert.Equal(t, "", g.Country(net.ParseIP("192.0.2.1")))
	assert.NoError(t, g.Close())
}
