package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexes = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"id":"A","pop":"12"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
 {"type":"Feature","properties":{"id":7},"geometry":{"type":"Polygon","coordinates":[[[10,10],[14,10],[14,14],[10,14],[10,10]],[[11,11],[13,11],[13,13],[11,13],[11,11]]]}},
 {"type":"Feature","properties":null,"geometry":{"type":"Point","coordinates":[5,-3]}}
]}`

func TestParseFeatureCollection(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(hexes))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.NotNil(t, fc.Features[2].Properties)
}

func TestParseSingleFeature(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(`{"type":"Feature","properties":{"id":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "x", fc.Features[0].Properties["id"])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseFeatureCollection([]byte(`not json`))
	assert.Error(t, err)
}

func TestNumberTreatsMissingAsNaN(t *testing.T) {
	p := geojson.Properties{"a": 0.4, "b": nil, "c": "1.5", "d": "", "e": "abc"}
	assert.Equal(t, 0.4, Number(p, "a"))
	assert.True(t, math.IsNaN(Number(p, "b")))
	assert.Equal(t, 1.5, Number(p, "c"))
	assert.True(t, math.IsNaN(Number(p, "d")))
	assert.True(t, math.IsNaN(Number(p, "e")))
	assert.True(t, math.IsNaN(Number(p, "missing")))
	assert.True(t, math.IsNaN(Number(nil, "a")))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "A", KeyString("A"))
	assert.Equal(t, "7", KeyString(float64(7)))
	assert.Equal(t, "0.25", KeyString(0.25))
	assert.Equal(t, "true", KeyString(true))
	assert.Equal(t, "", KeyString(nil))
}

func TestBounds(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(hexes))
	require.NoError(t, err)
	b, err := Bounds(fc)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{0, -3}, b.Min)
	assert.Equal(t, orb.Point{14, 14}, b.Max)
}

func TestBoundsEmpty(t *testing.T) {
	_, err := Bounds(geojson.NewFeatureCollection())
	assert.ErrorIs(t, err, ErrEmptyBounds)
	_, err = Bounds(nil)
	assert.ErrorIs(t, err, ErrEmptyBounds)
	_, err = BoundOfPoints(nil)
	assert.ErrorIs(t, err, ErrEmptyBounds)
}

func TestPadRatio(t *testing.T) {
	b := PadRatio(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 20}}, 0.2)
	assert.InDelta(t, -2, b.Min.X(), 1e-9)
	assert.InDelta(t, -4, b.Min.Y(), 1e-9)
	assert.InDelta(t, 12, b.Max.X(), 1e-9)
	assert.InDelta(t, 24, b.Max.Y(), 1e-9)
}

func TestFeaturesAtRespectsHoles(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(hexes))
	require.NoError(t, err)

	hit := FeaturesAt(fc, orb.Point{1, 1})
	require.Len(t, hit, 1)
	assert.Equal(t, "A", hit[0].Properties["id"])

	assert.Len(t, FeaturesAt(fc, orb.Point{10.5, 10.5}), 1)
	assert.Empty(t, FeaturesAt(fc, orb.Point{12, 12}), "point inside the hole")
	assert.Empty(t, FeaturesAt(fc, orb.Point{5, -3}), "points never contain")
	assert.Empty(t, FeaturesAt(fc, orb.Point{50, 50}))
}
