package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"tidbyt.dev/txc/geo"
	"tidbyt.dev/txc/model"
)

// Shared implementation of Storage for the SQL backends. Queries are
// written with ? placeholders and rebound by the dialect.

const (
	dateLayout = "2006-01-02"

	// Joins list columns. Can't appear in XML text.
	listSeparator = "\x1f"

	lookupBatchSize = 500
)

type dialect interface {
	rebind(query string) string

	// Condition matching column against any of the values, with its
	// parameters.
	anyOf(column string, values []string) (string, []interface{})

	bulkInsert(tx *sql.Tx, table string, columns []string, rows [][]interface{}) error

	// Column type of auto incrementing primary keys.
	serialPrimaryKey() string
}

const schema = `
CREATE TABLE IF NOT EXISTS stop_point (
    id SERIAL_PRIMARY_KEY,
    atco_code TEXT NOT NULL UNIQUE,
    common_name TEXT NOT NULL,
    lon DOUBLE PRECISION,
    lat DOUBLE PRECISION,
    locality_id TEXT NOT NULL,
    admin_area_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS locality (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    admin_area_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS admin_area (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_link (
    id SERIAL_PRIMARY_KEY,
    from_stop TEXT NOT NULL,
    to_stop TEXT NOT NULL,
    UNIQUE (from_stop, to_stop)
);

CREATE TABLE IF NOT EXISTS revision (
    id SERIAL_PRIMARY_KEY,
    name TEXT NOT NULL,
    organisation_name TEXT NOT NULL,
    schema_version TEXT NOT NULL DEFAULT '',
    creation_datetime TEXT NOT NULL DEFAULT '',
    modification_datetime TEXT NOT NULL DEFAULT '',
    line_count INTEGER NOT NULL DEFAULT 0,
    line_names TEXT NOT NULL DEFAULT '',
    stop_count INTEGER NOT NULL DEFAULT 0,
    timing_point_count INTEGER NOT NULL DEFAULT 0,
    first_expiring_service TEXT NOT NULL DEFAULT '',
    last_expiring_service TEXT NOT NULL DEFAULT '',
    first_service_start TEXT NOT NULL DEFAULT '',
    bounding_box TEXT NOT NULL DEFAULT '',
    most_common_localities TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS service (
    id SERIAL_PRIMARY_KEY,
    revision_id INTEGER NOT NULL,
    file_id TEXT NOT NULL,
    code TEXT NOT NULL,
    type TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    line_names TEXT NOT NULL,
    description TEXT NOT NULL,
    mode TEXT NOT NULL,
    operator_ref TEXT NOT NULL,
    origin TEXT NOT NULL,
    destination TEXT NOT NULL,
    public_use BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS service_pattern (
    id SERIAL_PRIMARY_KEY,
    revision_id INTEGER NOT NULL,
    pattern_key TEXT NOT NULL,
    service_code TEXT NOT NULL,
    route_hash TEXT NOT NULL,
    file_id TEXT NOT NULL,
    journey_pattern_id TEXT NOT NULL,
    direction TEXT NOT NULL,
    origin TEXT NOT NULL,
    destination TEXT NOT NULL,
    description TEXT NOT NULL,
    line_name TEXT NOT NULL,
    flexible BOOLEAN NOT NULL,
    geometry TEXT NOT NULL,
    polyline TEXT NOT NULL,
    length_km DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS service_pattern_service_link (
    revision_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL,
    service_link_id INTEGER NOT NULL,
    sequence INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS service_service_pattern (
    revision_id INTEGER NOT NULL,
    service_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS service_pattern_locality (
    revision_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL,
    locality_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_pattern_admin_area (
    revision_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL,
    admin_area_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS serviced_organisation (
    id SERIAL_PRIMARY_KEY,
    revision_id INTEGER NOT NULL,
    file_id TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vehicle_journey (
    id SERIAL_PRIMARY_KEY,
    revision_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL,
    code TEXT NOT NULL,
    private_code TEXT NOT NULL,
    line_ref TEXT NOT NULL,
    direction TEXT NOT NULL,
    block_number TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    departure_day_shift INTEGER NOT NULL,
    flexible BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS operating_profile (
    revision_id INTEGER NOT NULL,
    vehicle_journey_id INTEGER NOT NULL,
    day TEXT NOT NULL,
    holidays_only BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS date_exception (
    revision_id INTEGER NOT NULL,
    vehicle_journey_id INTEGER NOT NULL,
    date TEXT NOT NULL,
    operating BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS serviced_organisation_vehicle_journey (
    id SERIAL_PRIMARY_KEY,
    revision_id INTEGER NOT NULL,
    serviced_organisation_id INTEGER NOT NULL,
    vehicle_journey_id INTEGER NOT NULL,
    operating_on_working_days BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS serviced_organisation_working_days (
    revision_id INTEGER NOT NULL,
    serviced_organisation_vehicle_journey_id INTEGER NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flexible_operation_period (
    revision_id INTEGER NOT NULL,
    vehicle_journey_id INTEGER NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_pattern_stop (
    revision_id INTEGER NOT NULL,
    service_pattern_id INTEGER NOT NULL,
    vehicle_journey_id INTEGER,
    sequence INTEGER NOT NULL,
    atco_code TEXT NOT NULL,
    naptan_id INTEGER NOT NULL,
    common_name TEXT NOT NULL,
    lon DOUBLE PRECISION,
    lat DOUBLE PRECISION,
    locality_id TEXT NOT NULL,
    admin_area_id TEXT NOT NULL,
    offset_seconds INTEGER NOT NULL,
    departure_time TEXT,
    is_timing_point BOOLEAN NOT NULL,
    activity TEXT NOT NULL,
    bus_stop_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS booking_arrangement (
    revision_id INTEGER NOT NULL,
    service_id INTEGER NOT NULL,
    description TEXT NOT NULL,
    phone TEXT NOT NULL,
    email TEXT NOT NULL,
    web_address TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS service_pattern_stop_pattern ON service_pattern_stop (service_pattern_id, vehicle_journey_id);
`

// Tables in the order they're dropped when clearing a database.
var allTables = append([]string{
	"stop_point",
	"locality",
	"admin_area",
	"service_link",
	"revision",
}, RevisionTables...)

func createSchema(db *sql.DB, d dialect) error {
	_, err := db.Exec(strings.ReplaceAll(schema, "SERIAL_PRIMARY_KEY", d.serialPrimaryKey()))
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

type sqlStorage struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStorage) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(s.d.rebind(query), args...)
}

func (s *sqlStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("closing db: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func joinList(values []string) string {
	return strings.Join(values, listSeparator)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

func pointColumns(p *model.Point) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lon, Valid: true}, sql.NullFloat64{Float64: p.Lat, Valid: true}
}

// Empty strings and zero ids are stored as NULL.
func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func columnsPoint(lon, lat sql.NullFloat64) *model.Point {
	if !lon.Valid || !lat.Valid {
		return nil
	}
	return &model.Point{Lon: lon.Float64, Lat: lat.Float64}
}

// Runs fn over values in batches small enough for any driver's
// parameter limit.
func inLookupBatches(values []string, fn func(batch []string) error) error {
	for start := 0; start < len(values); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(values))
		if err := fn(values[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStorage) WriteStopPoints(stops []*model.StopPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.d.rebind(`
INSERT INTO stop_point (atco_code, common_name, lon, lat, locality_id, admin_area_id)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (atco_code) DO UPDATE SET
    common_name = excluded.common_name,
    lon = excluded.lon,
    lat = excluded.lat,
    locality_id = excluded.locality_id,
    admin_area_id = excluded.admin_area_id`)
	for _, stop := range stops {
		lon, lat := pointColumns(stop.Geometry)
		_, err := tx.Exec(query, stop.AtcoCode, stop.CommonName, lon, lat, stop.LocalityID, stop.AdminAreaID)
		if err != nil {
			return fmt.Errorf("writing stop point %s: %w", stop.AtcoCode, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *sqlStorage) WriteLocalities(localities []*model.Locality) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.d.rebind(`
INSERT INTO locality (id, name, admin_area_id) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, admin_area_id = excluded.admin_area_id`)
	for _, l := range localities {
		_, err := tx.Exec(query, l.ID, l.Name, l.AdminAreaID)
		if err != nil {
			return fmt.Errorf("writing locality %s: %w", l.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *sqlStorage) WriteAdminAreas(areas []*model.AdminArea) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.d.rebind(`
INSERT INTO admin_area (id, name) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name`)
	for _, a := range areas {
		_, err := tx.Exec(query, a.ID, a.Name)
		if err != nil {
			return fmt.Errorf("writing admin area %s: %w", a.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *sqlStorage) StopPoints(atcoCodes []string) ([]*model.StopPoint, error) {
	stops := []*model.StopPoint{}
	err := inLookupBatches(atcoCodes, func(batch []string) error {
		cond, params := s.d.anyOf("atco_code", batch)
		rows, err := s.query(`
SELECT id, atco_code, common_name, lon, lat, locality_id, admin_area_id
FROM stop_point WHERE `+cond, params...)
		if err != nil {
			return fmt.Errorf("querying stop points: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			stop := &model.StopPoint{}
			var lon, lat sql.NullFloat64
			err := rows.Scan(&stop.ID, &stop.AtcoCode, &stop.CommonName, &lon, &lat, &stop.LocalityID, &stop.AdminAreaID)
			if err != nil {
				return fmt.Errorf("scanning stop point: %w", err)
			}
			stop.Geometry = columnsPoint(lon, lat)
			stops = append(stops, stop)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(stops, func(i, j int) bool { return stops[i].AtcoCode < stops[j].AtcoCode })
	return stops, nil
}

func (s *sqlStorage) Localities(ids []string) ([]*model.Locality, error) {
	localities := []*model.Locality{}
	err := inLookupBatches(ids, func(batch []string) error {
		cond, params := s.d.anyOf("id", batch)
		rows, err := s.query(`SELECT id, name, admin_area_id FROM locality WHERE `+cond, params...)
		if err != nil {
			return fmt.Errorf("querying localities: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			l := &model.Locality{}
			if err := rows.Scan(&l.ID, &l.Name, &l.AdminAreaID); err != nil {
				return fmt.Errorf("scanning locality: %w", err)
			}
			localities = append(localities, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(localities, func(i, j int) bool { return localities[i].ID < localities[j].ID })
	return localities, nil
}

func (s *sqlStorage) AdminAreas(ids []string) ([]*model.AdminArea, error) {
	areas := []*model.AdminArea{}
	err := inLookupBatches(ids, func(batch []string) error {
		cond, params := s.d.anyOf("id", batch)
		rows, err := s.query(`SELECT id, name FROM admin_area WHERE `+cond, params...)
		if err != nil {
			return fmt.Errorf("querying admin areas: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			a := &model.AdminArea{}
			if err := rows.Scan(&a.ID, &a.Name); err != nil {
				return fmt.Errorf("scanning admin area: %w", err)
			}
			areas = append(areas, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas, nil
}

func (s *sqlStorage) ServiceLinks(pairs []model.StopPair) ([]*model.ServiceLink, error) {
	wanted := map[model.StopPair]bool{}
	froms := []string{}
	for _, p := range pairs {
		if !wanted[p] {
			froms = append(froms, p.From)
		}
		wanted[p] = true
	}

	links := []*model.ServiceLink{}
	err := inLookupBatches(froms, func(batch []string) error {
		cond, params := s.d.anyOf("from_stop", batch)
		rows, err := s.query(`SELECT id, from_stop, to_stop FROM service_link WHERE `+cond, params...)
		if err != nil {
			return fmt.Errorf("querying service links: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			l := &model.ServiceLink{}
			if err := rows.Scan(&l.ID, &l.FromStop, &l.ToStop); err != nil {
				return fmt.Errorf("scanning service link: %w", err)
			}
			if wanted[l.Pair()] {
				wanted[l.Pair()] = false
				links = append(links, l)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

func (s *sqlStorage) CreateRevision(name, organisationName string) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		s.d.rebind(`INSERT INTO revision (name, organisation_name) VALUES (?, ?) RETURNING id`),
		name, organisationName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating revision: %w", err)
	}
	return id, nil
}

func (s *sqlStorage) GetRevision(id int64) (*model.Revision, error) {
	rev := &model.Revision{}
	var creation, modification, firstExpiring, lastExpiring, firstStart string
	var lineNames, bbox, mostCommon string
	err := s.db.QueryRow(s.d.rebind(`
SELECT
    id,
    name,
    organisation_name,
    schema_version,
    creation_datetime,
    modification_datetime,
    line_count,
    line_names,
    stop_count,
    timing_point_count,
    first_expiring_service,
    last_expiring_service,
    first_service_start,
    bounding_box,
    most_common_localities
FROM revision WHERE id = ?`), id).Scan(
		&rev.ID,
		&rev.Name,
		&rev.OrganisationName,
		&rev.Report.SchemaVersion,
		&creation,
		&modification,
		&rev.Report.LineCount,
		&lineNames,
		&rev.Report.StopCount,
		&rev.Report.TimingPointCount,
		&firstExpiring,
		&lastExpiring,
		&firstStart,
		&bbox,
		&mostCommon,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting revision %d: %w", id, err)
	}

	report := &rev.Report
	report.Name = rev.Name
	report.LineNames = splitList(lineNames)
	report.MostCommonLocalities = splitList(mostCommon)
	for _, ts := range []struct {
		dst *time.Time
		src string
	}{
		{&report.CreationDateTime, creation},
		{&report.ModificationDateTime, modification},
		{&report.FirstExpiringService, firstExpiring},
		{&report.LastExpiringService, lastExpiring},
		{&report.FirstServiceStart, firstStart},
	} {
		*ts.dst, err = parseTime(ts.src)
		if err != nil {
			return nil, fmt.Errorf("parsing revision timestamp: %w", err)
		}
	}
	report.BoundingBox, err = geo.ParseBounds(bbox)
	if err != nil {
		return nil, err
	}

	return rev, nil
}

func (s *sqlStorage) ListRevisionNames(prefix string) ([]string, error) {
	rows, err := s.query(
		`SELECT name FROM revision WHERE substr(name, 1, ?) = ?`,
		utf8.RuneCountInString(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning revision name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Collation differs between backends.
	sort.Strings(names)
	return names, nil
}

func (s *sqlStorage) ListServices(revisionID int64) ([]*model.Service, error) {
	rows, err := s.query(`
SELECT id, file_id, code, type, start_date, end_date, line_names, description,
    mode, operator_ref, origin, destination, public_use
FROM service WHERE revision_id = ? ORDER BY id`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	services := []*model.Service{}
	for rows.Next() {
		svc := &model.Service{}
		var serviceType, start, end, lineNames string
		err := rows.Scan(
			&svc.ID, &svc.FileID, &svc.Code, &serviceType, &start, &end, &lineNames, &svc.Description,
			&svc.Mode, &svc.OperatorRef, &svc.Origin, &svc.Destination, &svc.PublicUse,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		if serviceType == model.ServiceTypeFlexible.String() {
			svc.Type = model.ServiceTypeFlexible
		}
		svc.LineNames = splitList(lineNames)
		if svc.StartDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("parsing service start: %w", err)
		}
		if svc.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("parsing service end: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *sqlStorage) ListServicePatterns(revisionID int64) ([]*model.ServicePattern, error) {
	rows, err := s.query(`
SELECT id, pattern_key, service_code, route_hash, file_id, journey_pattern_id, direction,
    origin, destination, description, line_name, flexible, geometry, polyline, length_km
FROM service_pattern WHERE revision_id = ? ORDER BY id`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("listing service patterns: %w", err)
	}
	defer rows.Close()

	patterns := []*model.ServicePattern{}
	byID := map[int64]*model.ServicePattern{}
	for rows.Next() {
		sp := &model.ServicePattern{RevisionID: revisionID}
		var geometry string
		err := rows.Scan(
			&sp.ID, &sp.Key, &sp.ServiceCode, &sp.RouteHash, &sp.FileID, &sp.JourneyPatternID, &sp.Direction,
			&sp.Origin, &sp.Destination, &sp.Description, &sp.LineName, &sp.Flexible, &geometry, &sp.Polyline, &sp.LengthKm,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning service pattern: %w", err)
		}
		sp.Geometry, err = geo.ParseLineString(geometry)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, sp)
		byID[sp.ID] = sp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.scanPatternRollups(revisionID, byID)
	if err != nil {
		return nil, err
	}

	return patterns, nil
}

// Attaches localities, admin areas and service links to patterns.
func (s *sqlStorage) scanPatternRollups(revisionID int64, byID map[int64]*model.ServicePattern) error {
	for _, q := range []struct {
		query string
		add   func(sp *model.ServicePattern, a, b string)
	}{
		{
			`SELECT service_pattern_id, locality_id, '' FROM service_pattern_locality
WHERE revision_id = ? ORDER BY service_pattern_id, locality_id`,
			func(sp *model.ServicePattern, a, _ string) { sp.LocalityIDs = append(sp.LocalityIDs, a) },
		},
		{
			`SELECT service_pattern_id, admin_area_id, '' FROM service_pattern_admin_area
WHERE revision_id = ? ORDER BY service_pattern_id, admin_area_id`,
			func(sp *model.ServicePattern, a, _ string) { sp.AdminAreaIDs = append(sp.AdminAreaIDs, a) },
		},
		{
			`SELECT spl.service_pattern_id, sl.from_stop, sl.to_stop
FROM service_pattern_service_link spl
JOIN service_link sl ON sl.id = spl.service_link_id
WHERE spl.revision_id = ? ORDER BY spl.service_pattern_id, spl.sequence`,
			func(sp *model.ServicePattern, a, b string) {
				sp.ServiceLinks = append(sp.ServiceLinks, model.StopPair{From: a, To: b})
			},
		},
	} {
		rows, err := s.query(q.query, revisionID)
		if err != nil {
			return fmt.Errorf("querying service pattern rollups: %w", err)
		}
		for rows.Next() {
			var id int64
			var a, b string
			if err := rows.Scan(&id, &a, &b); err != nil {
				rows.Close()
				return fmt.Errorf("scanning service pattern rollup: %w", err)
			}
			if sp, ok := byID[id]; ok {
				q.add(sp, a, b)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStorage) ListVehicleJourneys(revisionID int64) ([]*VehicleJourney, error) {
	rows, err := s.query(`
SELECT id, service_pattern_id, code, private_code, line_ref, direction, block_number,
    departure_time, departure_day_shift, flexible
FROM vehicle_journey WHERE revision_id = ? ORDER BY id`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("listing vehicle journeys: %w", err)
	}
	defer rows.Close()

	journeys := []*VehicleJourney{}
	for rows.Next() {
		vj := &VehicleJourney{}
		err := rows.Scan(
			&vj.ID, &vj.ServicePatternID, &vj.Code, &vj.PrivateCode, &vj.LineRef, &vj.Direction, &vj.BlockNumber,
			&vj.DepartureTime, &vj.DepartureDayShift, &vj.Flexible,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning vehicle journey: %w", err)
		}
		journeys = append(journeys, vj)
	}
	return journeys, rows.Err()
}

func (s *sqlStorage) ListServicePatternStops(servicePatternID, vehicleJourneyID int64) ([]*model.ServicePatternStop, error) {
	journeyFilter := "vehicle_journey_id IS NULL"
	args := []interface{}{servicePatternID}
	if vehicleJourneyID != 0 {
		journeyFilter = "vehicle_journey_id = ?"
		args = append(args, vehicleJourneyID)
	}

	rows, err := s.query(`
SELECT service_pattern_id, vehicle_journey_id, sequence, atco_code, naptan_id, common_name,
    lon, lat, locality_id, admin_area_id, offset_seconds, departure_time, is_timing_point,
    activity, bus_stop_type
FROM service_pattern_stop
WHERE service_pattern_id = ? AND `+journeyFilter+`
ORDER BY sequence`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing service pattern stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.ServicePatternStop{}
	for rows.Next() {
		row := &model.ServicePatternStop{}
		var lon, lat sql.NullFloat64
		var vehicleJourneyID sql.NullInt64
		var departure sql.NullString
		var offset int64
		var activity, busStopType string
		err := rows.Scan(
			&row.ServicePatternID, &vehicleJourneyID, &row.Sequence, &row.AtcoCode, &row.NaptanID, &row.CommonName,
			&lon, &lat, &row.LocalityID, &row.AdminAreaID, &offset, &departure, &row.IsTimingPoint,
			&activity, &busStopType,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning service pattern stop: %w", err)
		}
		row.VehicleJourneyID = vehicleJourneyID.Int64
		row.DepartureTime = departure.String
		row.Geometry = columnsPoint(lon, lat)
		row.Offset = time.Duration(offset) * time.Second
		row.Activity = model.ParseStopActivity(activity)
		row.BusStopType = model.BusStopType(busStopType)
		stops = append(stops, row)
	}
	return stops, rows.Err()
}

func (s *sqlStorage) RevisionCounts(revisionID int64) (map[string]int, error) {
	counts := map[string]int{}
	for _, table := range RevisionTables {
		var n int
		err := s.db.QueryRow(
			s.d.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE revision_id = ?`, table)),
			revisionID,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *sqlStorage) GetWriter(revisionID int64) (Writer, error) {
	var exists int
	err := s.db.QueryRow(s.d.rebind(`SELECT COUNT(*) FROM revision WHERE id = ?`), revisionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up revision: %w", err)
	}
	if exists == 0 {
		return nil, ErrRevisionNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	return &sqlWriter{tx: tx, d: s.d, revisionID: revisionID}, nil
}

type sqlWriter struct {
	tx         *sql.Tx
	d          dialect
	revisionID int64
}

// Inserts one row per args and returns the generated ids.
func (w *sqlWriter) insertReturning(query string, args [][]interface{}) ([]int64, error) {
	stmt, err := w.tx.Prepare(w.d.rebind(query + " RETURNING id"))
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(args))
	for _, a := range args {
		var id int64
		if err := stmt.QueryRow(a...).Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (w *sqlWriter) bulkInsert(table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	err := w.d.bulkInsert(w.tx, table, append([]string{"revision_id"}, columns...), rows)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func (w *sqlWriter) ClearRevision() error {
	for _, table := range RevisionTables {
		_, err := w.tx.Exec(
			w.d.rebind(fmt.Sprintf(`DELETE FROM %s WHERE revision_id = ?`, table)),
			w.revisionID,
		)
		if err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func (w *sqlWriter) CreateServices(services []*model.Service) ([]int64, error) {
	args := make([][]interface{}, 0, len(services))
	for _, svc := range services {
		args = append(args, []interface{}{
			w.revisionID, svc.FileID, svc.Code, svc.Type.String(), formatDate(svc.StartDate), formatDate(svc.EndDate),
			joinList(svc.LineNames), svc.Description, svc.Mode, svc.OperatorRef, svc.Origin, svc.Destination, svc.PublicUse,
		})
	}
	ids, err := w.insertReturning(`
INSERT INTO service (revision_id, file_id, code, type, start_date, end_date, line_names,
    description, mode, operator_ref, origin, destination, public_use)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
	if err != nil {
		return nil, fmt.Errorf("creating services: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) CreateServiceLinks(pairs []model.StopPair) ([]int64, error) {
	args := make([][]interface{}, 0, len(pairs))
	for _, p := range pairs {
		args = append(args, []interface{}{p.From, p.To})
	}
	ids, err := w.insertReturning(`
INSERT INTO service_link (from_stop, to_stop) VALUES (?, ?)
ON CONFLICT (from_stop, to_stop) DO UPDATE SET from_stop = excluded.from_stop`, args)
	if err != nil {
		return nil, fmt.Errorf("creating service links: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) CreateServicePatterns(patterns []*model.ServicePattern) ([]int64, error) {
	args := make([][]interface{}, 0, len(patterns))
	for _, sp := range patterns {
		args = append(args, []interface{}{
			w.revisionID, sp.Key, sp.ServiceCode, sp.RouteHash, sp.FileID, sp.JourneyPatternID, sp.Direction,
			sp.Origin, sp.Destination, sp.Description, sp.LineName, sp.Flexible,
			geo.LineStringJSON(sp.Geometry), sp.Polyline, sp.LengthKm,
		})
	}
	ids, err := w.insertReturning(`
INSERT INTO service_pattern (revision_id, pattern_key, service_code, route_hash, file_id, journey_pattern_id,
    direction, origin, destination, description, line_name, flexible, geometry, polyline, length_km)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
	if err != nil {
		return nil, fmt.Errorf("creating service patterns: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) AddServicePatternLinks(rows []ServicePatternLink) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.ServicePatternID, r.ServiceLinkID, r.Sequence})
	}
	return w.bulkInsert(TableServicePatternServiceLink, []string{"service_pattern_id", "service_link_id", "sequence"}, values)
}

func (w *sqlWriter) AddServiceServicePatterns(rows []ServiceServicePattern) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.ServiceID, r.ServicePatternID})
	}
	return w.bulkInsert(TableServiceServicePattern, []string{"service_id", "service_pattern_id"}, values)
}

func (w *sqlWriter) AddServicePatternLocalities(rows []ServicePatternLocality) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.ServicePatternID, r.LocalityID})
	}
	return w.bulkInsert(TableServicePatternLocality, []string{"service_pattern_id", "locality_id"}, values)
}

func (w *sqlWriter) AddServicePatternAdminAreas(rows []ServicePatternAdminArea) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.ServicePatternID, r.AdminAreaID})
	}
	return w.bulkInsert(TableServicePatternAdminArea, []string{"service_pattern_id", "admin_area_id"}, values)
}

func (w *sqlWriter) CreateServicedOrganisations(orgs []*model.ServicedOrganisation) ([]int64, error) {
	args := make([][]interface{}, 0, len(orgs))
	for _, so := range orgs {
		args = append(args, []interface{}{w.revisionID, so.FileID, so.Code, so.Name})
	}
	ids, err := w.insertReturning(`
INSERT INTO serviced_organisation (revision_id, file_id, code, name) VALUES (?, ?, ?, ?)`, args)
	if err != nil {
		return nil, fmt.Errorf("creating serviced organisations: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) CreateVehicleJourneys(journeys []*VehicleJourney) ([]int64, error) {
	args := make([][]interface{}, 0, len(journeys))
	for _, vj := range journeys {
		args = append(args, []interface{}{
			w.revisionID, vj.ServicePatternID, vj.Code, vj.PrivateCode, vj.LineRef, vj.Direction, vj.BlockNumber,
			vj.DepartureTime, vj.DepartureDayShift, vj.Flexible,
		})
	}
	ids, err := w.insertReturning(`
INSERT INTO vehicle_journey (revision_id, service_pattern_id, code, private_code, line_ref, direction,
    block_number, departure_time, departure_day_shift, flexible)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
	if err != nil {
		return nil, fmt.Errorf("creating vehicle journeys: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) AddOperatingProfiles(rows []OperatingProfile) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.VehicleJourneyID, r.Day, r.HolidaysOnly})
	}
	return w.bulkInsert(TableOperatingProfile, []string{"vehicle_journey_id", "day", "holidays_only"}, values)
}

func (w *sqlWriter) AddDateExceptions(rows []DateException) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.VehicleJourneyID, formatDate(r.Date), r.Operating})
	}
	return w.bulkInsert(TableDateException, []string{"vehicle_journey_id", "date", "operating"}, values)
}

func (w *sqlWriter) CreateServicedOrganisationVehicleJourneys(rows []ServicedOrganisationVehicleJourney) ([]int64, error) {
	args := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		args = append(args, []interface{}{w.revisionID, r.ServicedOrganisationID, r.VehicleJourneyID, r.OperatingOnWorkingDays})
	}
	ids, err := w.insertReturning(`
INSERT INTO serviced_organisation_vehicle_journey (revision_id, serviced_organisation_id,
    vehicle_journey_id, operating_on_working_days)
VALUES (?, ?, ?, ?)`, args)
	if err != nil {
		return nil, fmt.Errorf("creating serviced organisation vehicle journeys: %w", err)
	}
	return ids, nil
}

func (w *sqlWriter) AddServicedOrganisationWorkingDays(rows []ServicedOrganisationWorkingDays) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{
			w.revisionID, r.ServicedOrganisationVehicleJourneyID, formatDate(r.StartDate), formatDate(r.EndDate),
		})
	}
	return w.bulkInsert(
		TableServicedOrganisationWorkingDays,
		[]string{"serviced_organisation_vehicle_journey_id", "start_date", "end_date"},
		values,
	)
}

func (w *sqlWriter) AddFlexibleOperationPeriods(rows []FlexibleOperationPeriod) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.VehicleJourneyID, r.StartTime, r.EndTime})
	}
	return w.bulkInsert(TableFlexibleOperationPeriod, []string{"vehicle_journey_id", "start_time", "end_time"}, values)
}

func (w *sqlWriter) AddServicePatternStops(rows []*model.ServicePatternStop) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		lon, lat := pointColumns(r.Geometry)
		values = append(values, []interface{}{
			w.revisionID, r.ServicePatternID, nullID(r.VehicleJourneyID), r.Sequence, r.AtcoCode, r.NaptanID, r.CommonName,
			lon, lat, r.LocalityID, r.AdminAreaID, int64(r.Offset / time.Second), nullString(r.DepartureTime), r.IsTimingPoint,
			r.Activity.String(), string(r.BusStopType),
		})
	}
	return w.bulkInsert(TableServicePatternStop, []string{
		"service_pattern_id", "vehicle_journey_id", "sequence", "atco_code", "naptan_id", "common_name",
		"lon", "lat", "locality_id", "admin_area_id", "offset_seconds", "departure_time", "is_timing_point",
		"activity", "bus_stop_type",
	}, values)
}

func (w *sqlWriter) AddBookingArrangements(rows []BookingArrangement) error {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{w.revisionID, r.ServiceID, r.Description, r.Phone, r.Email, r.WebAddress})
	}
	return w.bulkInsert(TableBookingArrangement, []string{"service_id", "description", "phone", "email", "web_address"}, values)
}

func (w *sqlWriter) UpdateRevision(name string, report model.ETLReport) error {
	_, err := w.tx.Exec(w.d.rebind(`
UPDATE revision SET
    name = ?,
    schema_version = ?,
    creation_datetime = ?,
    modification_datetime = ?,
    line_count = ?,
    line_names = ?,
    stop_count = ?,
    timing_point_count = ?,
    first_expiring_service = ?,
    last_expiring_service = ?,
    first_service_start = ?,
    bounding_box = ?,
    most_common_localities = ?
WHERE id = ?`),
		name,
		report.SchemaVersion,
		formatTime(report.CreationDateTime),
		formatTime(report.ModificationDateTime),
		report.LineCount,
		joinList(report.LineNames),
		report.StopCount,
		report.TimingPointCount,
		formatTime(report.FirstExpiringService),
		formatTime(report.LastExpiringService),
		formatTime(report.FirstServiceStart),
		geo.BoundsJSON(report.BoundingBox),
		joinList(report.MostCommonLocalities),
		w.revisionID,
	)
	if err != nil {
		return fmt.Errorf("updating revision: %w", err)
	}
	return nil
}

func (w *sqlWriter) Commit() error {
	err := w.tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (w *sqlWriter) Rollback() error {
	err := w.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}
