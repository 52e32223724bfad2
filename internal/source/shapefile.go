package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/neighbourhood"
)

// BoundaryShapefile reads neighbourhood boundaries from an ESRI shapefile.
// Attribute names are matched case-insensitively.
type BoundaryShapefile struct {
	Path               string
	NeighbourhoodField string
	BoroughField       string
}

// ReadBoundaries reads every polygon record. Only the first part of a
// multi-part polygon is kept as its ring.
func (s *BoundaryShapefile) ReadBoundaries(ctx context.Context) ([]neighbourhood.Boundary, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	nField := orDefault(s.NeighbourhoodField, DefaultNeighbourhoodKey)
	bField := orDefault(s.BoroughField, DefaultBoroughKey)
	nIdx := fieldIndex(reader, nField)
	bIdx := fieldIndex(reader, bField)
	if nIdx < 0 || bIdx < 0 {
		return nil, eris.Errorf("source: shapefile fields (%s, %s) not found", nField, bField)
	}

	log := zap.L().With(zap.String("component", "source.shapefile"), zap.String("path", s.Path))

	var boundaries []neighbourhood.Boundary
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "source: read shapefile")
		}

		n, shape := reader.Shape()
		id := "record " + strconv.Itoa(n)
		name := strings.TrimSpace(reader.Attribute(nIdx))
		borough := strings.TrimSpace(reader.Attribute(bIdx))
		if name == "" || borough == "" {
			log.Warn("source: skipping boundary without names", zap.String("record", id))
			continue
		}

		boundaries = append(boundaries, neighbourhood.Boundary{
			Neighbourhood: name,
			Borough:       borough,
			Geometry:      shapeToPolygon(shape),
			Source:        id,
		})
	}

	log.Info("source: boundaries loaded", zap.Int("boundaries", len(boundaries)))
	return boundaries, nil
}

// shapeToPolygon converts the first part of a shapefile polygon to a
// geom.Polygon. Other shape types yield nil, which the catalog rejects.
func shapeToPolygon(s shp.Shape) geom.T {
	p, ok := s.(*shp.Polygon)
	if !ok || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	end := int32(len(p.Points))
	if p.NumParts > 1 {
		end = p.Parts[1]
	}

	flat := make([]float64, 0, 2*(end-p.Parts[0]))
	for _, pt := range p.Points[p.Parts[0]:end] {
		flat = append(flat, pt.X, pt.Y)
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
