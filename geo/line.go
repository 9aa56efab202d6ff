package geo

import (
	"fmt"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/twpayne/go-polyline"

	"tidbyt.dev/txc/model"
)

// Line returns the points that make up a line through the given
// stop locations, skipping unknown ones. Nil if fewer than two
// points remain.
func Line(points []*model.Point) []model.Point {
	line := []model.Point{}
	for _, p := range points {
		if p != nil {
			line = append(line, *p)
		}
	}
	if len(line) < 2 {
		return nil
	}
	return line
}

// LineStringJSON renders points as a GeoJSON LineString. Empty
// string when there is no line.
func LineStringJSON(points []model.Point) string {
	if len(points) < 2 {
		return ""
	}
	coords := make([]geometry.Point, 0, len(points))
	for _, p := range points {
		coords = append(coords, geometry.Point{X: p.Lon, Y: p.Lat})
	}
	return geojson.NewLineString(geometry.NewLine(coords, nil)).JSON()
}

// ParseLineString is the inverse of LineStringJSON.
func ParseLineString(s string) ([]model.Point, error) {
	if s == "" {
		return nil, nil
	}
	obj, err := geojson.Parse(s, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parsing line geometry: %w", err)
	}
	ls, ok := obj.(*geojson.LineString)
	if !ok {
		return nil, fmt.Errorf("geometry is %T, not a LineString", obj)
	}
	base := ls.Base()
	points := make([]model.Point, 0, base.NumPoints())
	for i := 0; i < base.NumPoints(); i++ {
		p := base.PointAt(i)
		points = append(points, model.Point{Lon: p.X, Lat: p.Y})
	}
	return points, nil
}

// EncodePolyline encodes points with the Google polyline algorithm.
func EncodePolyline(points []model.Point) string {
	if len(points) == 0 {
		return ""
	}
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// Bounds returns the bounding box of all known points, or nil if
// none are known.
func Bounds(points []*model.Point) *model.BoundingBox {
	var bbox *model.BoundingBox
	for _, p := range points {
		if p == nil {
			continue
		}
		if bbox == nil {
			bbox = &model.BoundingBox{MinLon: p.Lon, MinLat: p.Lat, MaxLon: p.Lon, MaxLat: p.Lat}
			continue
		}
		bbox.MinLon = min(bbox.MinLon, p.Lon)
		bbox.MinLat = min(bbox.MinLat, p.Lat)
		bbox.MaxLon = max(bbox.MaxLon, p.Lon)
		bbox.MaxLat = max(bbox.MaxLat, p.Lat)
	}
	return bbox
}

// BoundsJSON renders a bounding box as a GeoJSON polygon.
func BoundsJSON(bbox *model.BoundingBox) string {
	if bbox == nil {
		return ""
	}
	return geojson.NewRect(geometry.Rect{
		Min: geometry.Point{X: bbox.MinLon, Y: bbox.MinLat},
		Max: geometry.Point{X: bbox.MaxLon, Y: bbox.MaxLat},
	}).JSON()
}

// ParseBounds is the inverse of BoundsJSON.
func ParseBounds(s string) (*model.BoundingBox, error) {
	if s == "" {
		return nil, nil
	}
	obj, err := geojson.Parse(s, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing bounding box: %w", err)
	}
	rect := obj.Rect()
	return &model.BoundingBox{
		MinLon: rect.Min.X,
		MinLat: rect.Min.Y,
		MaxLon: rect.Max.X,
		MaxLat: rect.Max.Y,
	}, nil
}
