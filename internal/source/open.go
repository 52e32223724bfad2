package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tripgeo/internal/neighbourhood"
)

// BoundaryReader is implemented by every boundary format.
type BoundaryReader interface {
	ReadBoundaries(ctx context.Context) ([]neighbourhood.Boundary, error)
}

// OpenBoundaries picks a boundary reader from the file extension.
func OpenBoundaries(path, neighbourhoodKey, boroughKey string) (BoundaryReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return &BoundaryGeoJSON{Path: path, NeighbourhoodKey: neighbourhoodKey, BoroughKey: boroughKey}, nil
	case ".shp":
		return &BoundaryShapefile{Path: path, NeighbourhoodField: neighbourhoodKey, BoroughField: boroughKey}, nil
	default:
		return nil, eris.Errorf("source: unsupported boundary format %q", filepath.Ext(path))
	}
}
