package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/tripgeo/internal/neighbourhood"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"neighborhood": "Chelsea", "borough": "Manhattan", "boroughCode": "1"},
      "geometry": {"type": "Polygon", "coordinates": [[[-74.01, 40.74], [-74.01, 40.76], [-73.99, 40.76], [-73.99, 40.74], [-74.01, 40.74]]]}
    },
    {
      "type": "Feature",
      "id": "greenpoint",
      "properties": {"neighborhood": "Greenpoint", "borough": "Brooklyn"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-73.96, 40.72], [-73.96, 40.74], [-73.94, 40.74], [-73.94, 40.72], [-73.96, 40.72]]]]}
    },
    {
      "type": "Feature",
      "properties": {"neighborhood": "Unnamed"},
      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [0, 1], [1, 1], [0, 0]]]}
    }
  ]
}`

func TestBoundaryGeoJSON_ReadBoundaries(t *testing.T) {
	src := &BoundaryGeoJSON{Path: writeFile(t, "nyc.geojson", sampleGeoJSON)}

	boundaries, err := src.ReadBoundaries(context.Background())
	require.NoError(t, err)
	require.Len(t, boundaries, 2)

	assert.Equal(t, "Chelsea", boundaries[0].Neighbourhood)
	assert.Equal(t, "Manhattan", boundaries[0].Borough)
	assert.Equal(t, "feature 0", boundaries[0].Source)
	_, ok := boundaries[0].Geometry.(*geom.Polygon)
	assert.True(t, ok)

	assert.Equal(t, "greenpoint", boundaries[1].Source)
	_, ok = boundaries[1].Geometry.(*geom.MultiPolygon)
	assert.True(t, ok)

	cat, err := neighbourhood.NewCatalog(boundaries, neighbourhood.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestBoundaryGeoJSON_CustomKeys(t *testing.T) {
	content := `{"type":"FeatureCollection","features":[{"type":"Feature",
	  "properties":{"ntaname":"Astoria","boroname":"Queens"},
	  "geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}}]}`
	src := &BoundaryGeoJSON{Path: writeFile(t, "nta.json", content), NeighbourhoodKey: "ntaname", BoroughKey: "boroname"}

	boundaries, err := src.ReadBoundaries(context.Background())
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "Astoria", boundaries[0].Neighbourhood)
	assert.Equal(t, "Queens", boundaries[0].Borough)
}

func TestBoundaryGeoJSON_Invalid(t *testing.T) {
	_, err := (&BoundaryGeoJSON{Path: writeFile(t, "bad.geojson", "{not json")}).ReadBoundaries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")

	_, err = (&BoundaryGeoJSON{Path: filepath.Join(t.TempDir(), "missing.geojson")}).ReadBoundaries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read geojson")
}

func writeShapefile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nyc.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NTANAME", 40),
		shp.StringField("BORONAME", 20),
	}))

	polys := []struct {
		name, borough string
		parts         [][]shp.Point
	}{
		{"Chelsea", "Manhattan", [][]shp.Point{
			{{X: -74.01, Y: 40.74}, {X: -74.01, Y: 40.76}, {X: -73.99, Y: 40.76}, {X: -73.99, Y: 40.74}, {X: -74.01, Y: 40.74}},
		}},
		{"Broad Channel", "Queens", [][]shp.Point{
			{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}},
			{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5}},
		}},
		{"", "Queens", [][]shp.Point{
			{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}},
		}},
	}
	for _, p := range polys {
		n := w.Write((*shp.Polygon)(shp.NewPolyLine(p.parts)))
		require.NoError(t, w.WriteAttribute(int(n), 0, p.name))
		require.NoError(t, w.WriteAttribute(int(n), 1, p.borough))
	}
	w.Close()
	return path
}

func TestBoundaryShapefile_ReadBoundaries(t *testing.T) {
	src := &BoundaryShapefile{Path: writeShapefile(t), NeighbourhoodField: "ntaname", BoroughField: "boroname"}

	boundaries, err := src.ReadBoundaries(context.Background())
	require.NoError(t, err)
	require.Len(t, boundaries, 2)

	assert.Equal(t, "Chelsea", boundaries[0].Neighbourhood)
	assert.Equal(t, "Manhattan", boundaries[0].Borough)

	poly, ok := boundaries[1].Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
	assert.Equal(t, 5, poly.LinearRing(0).NumCoords(), "only the first part is kept")
}

func TestBoundaryShapefile_MissingFields(t *testing.T) {
	_, err := (&BoundaryShapefile{Path: writeShapefile(t)}).ReadBoundaries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOpenBoundaries(t *testing.T) {
	r, err := OpenBoundaries("nyc.geojson", "", "")
	require.NoError(t, err)
	assert.IsType(t, &BoundaryGeoJSON{}, r)

	r, err = OpenBoundaries("NYC.SHP", "ntaname", "boroname")
	require.NoError(t, err)
	assert.IsType(t, &BoundaryShapefile{}, r)

	_, err = OpenBoundaries("nyc.kml", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported boundary format")
}
