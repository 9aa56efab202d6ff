package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"tidbyt.dev/txc/geo"
	"tidbyt.dev/txc/model"
)

// Reference data exports, as published by NaPTAN and NPTG.

type StopPointCSV struct {
	AtcoCode    string `csv:"ATCOCode"`
	CommonName  string `csv:"CommonName"`
	Easting     string `csv:"Easting"`
	Northing    string `csv:"Northing"`
	Longitude   string `csv:"Longitude"`
	Latitude    string `csv:"Latitude"`
	LocalityID  string `csv:"NptgLocalityCode"`
	AdminAreaID string `csv:"AdministrativeAreaCode"`
}

type LocalityCSV struct {
	ID          string `csv:"NptgLocalityCode"`
	Name        string `csv:"LocalityName"`
	AdminAreaID string `csv:"AdministrativeAreaCode"`
}

type AdminAreaCSV struct {
	ID   string `csv:"AdministrativeAreaCode"`
	Name string `csv:"AdministrativeAreaName"`
}

func unmarshalCSV(data io.Reader, out interface{}) error {
	// LazyCSVReader survives sloppy quoting. The BOM reader strips
	// unicode BOMs if present.
	return gocsv.UnmarshalCSV(gocsv.LazyCSVReader(bom.NewReader(data)), out)
}

// ParseStopPointsCSV reads a NaPTAN stops export. Rows with WGS84
// coordinates use them directly, otherwise grid coordinates are
// converted.
func ParseStopPointsCSV(data io.Reader) ([]*model.StopPoint, error) {
	rows := []*StopPointCSV{}
	if err := unmarshalCSV(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	seen := map[string]bool{}
	stops := make([]*model.StopPoint, 0, len(rows))
	for i, row := range rows {
		code := strings.TrimSpace(row.AtcoCode)
		if code == "" {
			return nil, fmt.Errorf("empty ATCOCode (row %d)", i+1)
		}
		if seen[code] {
			return nil, fmt.Errorf("repeated ATCOCode '%s'", code)
		}
		seen[code] = true

		geometry, err := csvGeometry(row)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing location (row %d)", i+1)
		}

		stops = append(stops, &model.StopPoint{
			AtcoCode:    code,
			CommonName:  strings.TrimSpace(row.CommonName),
			Geometry:    geometry,
			LocalityID:  strings.TrimSpace(row.LocalityID),
			AdminAreaID: strings.TrimSpace(row.AdminAreaID),
		})
	}

	return stops, nil
}

func csvGeometry(row *StopPointCSV) (*model.Point, error) {
	parse := func(a, b string) (float64, float64, bool, error) {
		a, b = strings.TrimSpace(a), strings.TrimSpace(b)
		if a == "" || b == "" {
			return 0, 0, false, nil
		}
		x, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, 0, false, err
		}
		y, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return 0, 0, false, err
		}
		return x, y, true, nil
	}

	lon, lat, ok, err := parse(row.Longitude, row.Latitude)
	if err != nil {
		return nil, err
	}
	if ok {
		return &model.Point{Lon: lon, Lat: lat}, nil
	}

	easting, northing, ok, err := parse(row.Easting, row.Northing)
	if err != nil {
		return nil, err
	}
	if ok {
		p := geo.GridToWGS84(easting, northing)
		return &p, nil
	}

	return nil, nil
}

func ParseLocalitiesCSV(data io.Reader) ([]*model.Locality, error) {
	rows := []*LocalityCSV{}
	if err := unmarshalCSV(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling localities csv: %w", err)
	}

	seen := map[string]bool{}
	localities := make([]*model.Locality, 0, len(rows))
	for i, row := range rows {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			return nil, fmt.Errorf("empty NptgLocalityCode (row %d)", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("repeated NptgLocalityCode '%s'", id)
		}
		seen[id] = true

		localities = append(localities, &model.Locality{
			ID:          id,
			Name:        strings.TrimSpace(row.Name),
			AdminAreaID: strings.TrimSpace(row.AdminAreaID),
		})
	}

	return localities, nil
}

func ParseAdminAreasCSV(data io.Reader) ([]*model.AdminArea, error) {
	rows := []*AdminAreaCSV{}
	if err := unmarshalCSV(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling admin areas csv: %w", err)
	}

	seen := map[string]bool{}
	areas := make([]*model.AdminArea, 0, len(rows))
	for i, row := range rows {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			return nil, fmt.Errorf("empty AdministrativeAreaCode (row %d)", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("repeated AdministrativeAreaCode '%s'", id)
		}
		seen[id] = true

		areas = append(areas, &model.AdminArea{
			ID:   id,
			Name: strings.TrimSpace(row.Name),
		})
	}

	return areas, nil
}
