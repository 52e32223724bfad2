package source

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/neighbourhood"
)

// Default property keys of the NYC neighbourhoods GeoJSON.
const (
	DefaultNeighbourhoodKey = "neighborhood"
	DefaultBoroughKey       = "borough"
)

// BoundaryGeoJSON reads neighbourhood boundaries from a GeoJSON
// FeatureCollection.
type BoundaryGeoJSON struct {
	Path             string
	NeighbourhoodKey string
	BoroughKey       string
}

// ReadBoundaries decodes every feature. Features without a neighbourhood or
// borough name are skipped with a warning; geometry problems are left to the
// catalog, which treats them as fatal.
func (s *BoundaryGeoJSON) ReadBoundaries(ctx context.Context) ([]neighbourhood.Boundary, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "source: read geojson")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "source: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "source: decode geojson")
	}

	nKey := orDefault(s.NeighbourhoodKey, DefaultNeighbourhoodKey)
	bKey := orDefault(s.BoroughKey, DefaultBoroughKey)
	log := zap.L().With(zap.String("component", "source.geojson"), zap.String("path", s.Path))

	boundaries := make([]neighbourhood.Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := f.ID
		if id == "" {
			id = "feature " + strconv.Itoa(i)
		}

		name := stringProperty(f.Properties, nKey)
		borough := stringProperty(f.Properties, bKey)
		if name == "" || borough == "" {
			log.Warn("source: skipping boundary without names",
				zap.String("feature", id),
				zap.String("neighbourhood", name),
				zap.String("borough", borough),
			)
			continue
		}

		boundaries = append(boundaries, neighbourhood.Boundary{
			Neighbourhood: name,
			Borough:       borough,
			Geometry:      f.Geometry,
			Source:        id,
		})
	}

	log.Info("source: boundaries loaded",
		zap.Int("features", len(fc.Features)),
		zap.Int("boundaries", len(boundaries)),
	)
	return boundaries, nil
}

func stringProperty(props map[string]interface{}, key string) string {
	v, ok := props[key].(string)
	if !ok {
		return ""
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
