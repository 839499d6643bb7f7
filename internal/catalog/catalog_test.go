package catalog

import (
	"context"
	"errors"
	"testing"

	"cdi-map/internal/geo"
	"cdi-map/internal/source"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `[
  {"slug":"rome","name":"Roma","center":[41.9,12.5],"zoom":11},
  {"slug":"milan"},
  {"slug":"bad slug"},
  {"slug":"rome","name":"Duplicate"},
  {"slug":"turin","layers":[
     {"name":"Population","url":"data/turin/pop.geojson","valueProp":"pop"},
     {"name":"CDI","join":{"csv":"data/turin/other.csv"}}
  ]}
]`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	rome, ok := c.Lookup("rome")
	require.True(t, ok)
	assert.Equal(t, "Roma", rome.Name)
	assert.Equal(t, LatLon{41.9, 12.5}, rome.Center)
	assert.Equal(t, 11, rome.Zoom)

	milan, ok := c.Lookup("milan")
	require.True(t, ok)
	assert.Equal(t, "Milan", milan.Name)
	assert.Equal(t, DefaultCenter, milan.Center)
	assert.Equal(t, DefaultZoom, milan.Zoom)
	require.Len(t, milan.Layers, 1)
	l := milan.Layers[0]
	assert.Equal(t, "CDI (hex grid)", l.Name)
	assert.Equal(t, "data/milan/hexes.geojson", l.GeometryURL)
	require.NotNil(t, l.Join)
	assert.Equal(t, JoinSpec{
		TableURL:          "data/milan/cdi.csv",
		TableKeyColumn:    "hexagon_id",
		GeometryKeyColumn: "id",
		ValueColumn:       "CDI",
	}, *l.Join)
	assert.Equal(t, "CDI", l.ColorColumn())
}

func TestParseExplicitLayers(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)
	turin, ok := c.Lookup("turin")
	require.True(t, ok)
	require.Len(t, turin.Layers, 2)

	pop := turin.Layers[0]
	assert.Nil(t, pop.Join)
	assert.Equal(t, "pop", pop.ValueProperty)
	assert.Equal(t, "pop", pop.ColorColumn())

	cdi := turin.Layers[1]
	require.NotNil(t, cdi.Join)
	assert.Equal(t, "data/turin/hexes.geojson", cdi.GeometryURL)
	assert.Equal(t, "data/turin/other.csv", cdi.Join.TableURL)
	assert.Equal(t, "hexagon_id", cdi.Join.TableKeyColumn)
}

func TestRegionsKeepManifestOrder(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)
	var slugs []string
	for _, r := range c.Regions() {
		slugs = append(slugs, r.Slug)
	}
	assert.Equal(t, []string{"rome", "milan", "turin"}, slugs)
}

func TestReturnedDefinitionsAreIsolated(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)

	milan, _ := c.Lookup("milan")
	milan.Layers[0].Name = "changed"
	milan.Layers[0].Join.TableURL = "changed.csv"
	milan.Layers = append(milan.Layers, LayerDefinition{Name: "extra"})

	all := c.Regions()
	all[1].Layers[0].Join.ValueColumn = "changed"
	found := c.Search("mil")
	require.Len(t, found, 1)
	found[0].Layers[0].Join.GeometryKeyColumn = "changed"

	again, _ := c.Lookup("milan")
	require.Len(t, again.Layers, 1)
	assert.Equal(t, "CDI (hex grid)", again.Layers[0].Name)
	assert.Equal(t, *DefaultLayer("milan").Join, *again.Layers[0].Join)
}

func TestResolveUnknown(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)
	_, err = c.Resolve("paris")
	assert.ErrorIs(t, err, ErrUnknownRegion)
	r, err := c.Resolve("milan")
	require.NoError(t, err)
	assert.Equal(t, "milan", r.Slug)
}

func TestSearch(t *testing.T) {
	c, err := Parse([]byte(manifest))
	require.NoError(t, err)
	assert.Len(t, c.Search(""), 3)
	got := c.Search("  MIL ")
	require.Len(t, got, 1)
	assert.Equal(t, "milan", got[0].Slug)
	assert.Empty(t, c.Search("zzz"))
}

func TestBounds(t *testing.T) {
	c, err := Parse([]byte(`[{"slug":"a","center":[40,10]},{"slug":"b","center":[50,20]}]`))
	require.NoError(t, err)
	b, err := c.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 8, b.Min.X(), 1e-9)
	assert.InDelta(t, 38, b.Min.Y(), 1e-9)
	assert.InDelta(t, 22, b.Max.X(), 1e-9)
	assert.InDelta(t, 52, b.Max.Y(), 1e-9)

	_, err = Empty().Bounds()
	assert.ErrorIs(t, err, geo.ErrEmptyBounds)
}

func TestLatLonPoint(t *testing.T) {
	assert.Equal(t, orb.Point{12.5, 41.9}, LatLon{41.9, 12.5}.Point())
}

func TestLoadManifestErrors(t *testing.T) {
	missing := source.FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return nil, source.ErrNotFound
	})
	c, err := Load(context.Background(), missing, "data/index.json")
	require.Error(t, err)
	assert.True(t, source.IsKind(err, source.KindManifest))
	assert.Equal(t, 0, c.Len())

	garbage := source.FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return []byte(`{"not":"an array"}`), nil
	})
	c, err = Load(context.Background(), garbage, "data/index.json")
	require.Error(t, err)
	assert.True(t, source.IsKind(err, source.KindManifest))
	assert.False(t, errors.Is(err, source.ErrNotFound))
	assert.Equal(t, 0, c.Len())
}

func TestLayerLabel(t *testing.T) {
	assert.Equal(t, "1 layer", LayerLabel(1))
	assert.Equal(t, "3 layers", LayerLabel(3))
}

func TestNearest(t *testing.T) {
	c, err := Parse([]byte(`[
		{"slug":"rome","center":[41.9,12.5]},
		{"slug":"milan","center":[45.46,9.19]},
		{"slug":"naples","center":[40.85,14.27]},
		{"slug":"turin","center":[45.07,7.68]},
		{"slug":"bologna","center":[44.49,11.34]}
	]`))
	require.NoError(t, err)

	r, km, ok := c.Nearest(orb.Point{9.0, 45.5})
	require.True(t, ok)
	assert.Equal(t, "milan", r.Slug)
	assert.Less(t, km, 20.0)

	r, _, _ = c.Nearest(orb.Point{14.2, 40.9})
	assert.Equal(t, "naples", r.Slug)

	r, km, _ = c.Nearest(orb.Point{12.5, 41.9})
	assert.Equal(t, "rome", r.Slug)
	assert.InDelta(t, 0, km, 1e-6)

	for _, def := range c.Regions() {
		got, _, _ := c.Nearest(def.Center.Point())
		assert.Equal(t, def.Slug, got.Slug)
	}

	_, _, ok = Empty().Nearest(orb.Point{0, 0})
	assert.False(t, ok)
}
