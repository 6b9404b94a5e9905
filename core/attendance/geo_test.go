package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	// one degree of latitude is ~111.19 km on the mean-radius sphere
	const degLat = 111194.93

	anchorLat, anchorLon := 12.9716, 77.5946

	tests := []struct {
		name     string
		lat, lon float64
		want     float64 // meters
	}{
		{name: "same point", lat: anchorLat, lon: anchorLon, want: 0},
		{name: "80m north", lat: anchorLat + 80/degLat, lon: anchorLon, want: 80},
		{name: "150m north", lat: anchorLat + 150/degLat, lon: anchorLon, want: 150},
		{name: "1km north", lat: anchorLat + 1000/degLat, lon: anchorLon, want: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineDistance(anchorLat, anchorLon, tt.lat, tt.lon)
			assert.InDelta(t, tt.want, got, 0.5)

			// symmetric
			rev := haversineDistance(tt.lat, tt.lon, anchorLat, anchorLon)
			assert.InDelta(t, got, rev, 1e-9)
		})
	}
}
