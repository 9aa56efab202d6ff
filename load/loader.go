package load

import (
	"errors"
	"fmt"
	"log/slog"

	"tidbyt.dev/txc/logging"
	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
	"tidbyt.dev/txc/storage"
	"tidbyt.dev/txc/transform"
)

const DefaultBatchSize = 2000

// ErrNoResultsLoaded is raised when a run has no lines. Nothing is
// written in that case.
var ErrNoResultsLoaded = errors.New("No results were loaded")

// Loader persists transformed runs into a revision.
type Loader struct {
	Store storage.Storage

	// Rows per bulk create call. DefaultBatchSize if zero.
	BatchSize int

	Logger *slog.Logger
}

func (l *Loader) batchSize() int {
	if l.BatchSize > 0 {
		return l.BatchSize
	}
	return DefaultBatchSize
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return logging.Discard()
}

// Applies fn to consecutive batches of rows.
func inBatches[T any](rows []T, size int, fn func(batch []T) error) error {
	for start := 0; start < len(rows); start += size {
		if err := fn(rows[start:min(start+size, len(rows))]); err != nil {
			return err
		}
	}
	return nil
}

// Like inBatches, for create calls returning one id per row.
func createInBatches[T any](rows []T, size int, create func(batch []T) ([]int64, error)) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	err := inBatches(rows, size, func(batch []T) error {
		batchIDs, err := create(batch)
		if err != nil {
			return err
		}
		if len(batchIDs) != len(batch) {
			return fmt.Errorf("created %d rows, got %d ids", len(batch), len(batchIDs))
		}
		ids = append(ids, batchIDs...)
		return nil
	})
	return ids, err
}

type orgKey struct {
	fileID string
	code   string
}

// Identifiers generated while loading, by natural key.
type loadState struct {
	services      map[string]int64
	links         map[model.StopPair]int64
	patterns      map[string]int64
	organisations map[orgKey]*model.ServicedOrganisation
	journeys      map[string]int64
}

// Load replaces the revision's contents with the result and returns
// the run's report. Links maps stop pairs to service links known
// before the run. Newly created ones are added to it once the run
// is committed.
//
// A result with no lines fails with ErrNoResultsLoaded before
// anything is written.
func (l *Loader) Load(revisionID int64, res *transform.Result, links map[model.StopPair]int64) (*model.ETLReport, error) {
	log := l.logger().With(slog.Int64("revision_id", revisionID))

	if res.Bundle.LineCount == 0 {
		return nil, ErrNoResultsLoaded
	}

	rev, err := l.Store.GetRevision(revisionID)
	if err != nil {
		return nil, fmt.Errorf("getting revision: %w", err)
	}

	report := BuildReport(res)
	name, err := l.feedName(rev, report)
	if err != nil {
		return nil, err
	}
	report.Name = name

	done := logging.Stage(log, "load")

	w, err := l.Store.GetWriter(revisionID)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}
	defer logging.SafeRollbackWithLogging(w, log, "load")

	state := &loadState{
		services:      map[string]int64{},
		links:         map[model.StopPair]int64{},
		patterns:      map[string]int64{},
		organisations: map[orgKey]*model.ServicedOrganisation{},
		journeys:      map[string]int64{},
	}
	for pair, id := range links {
		state.links[pair] = id
	}

	err = w.ClearRevision()
	if err != nil {
		return nil, fmt.Errorf("clearing revision: %w", err)
	}

	for _, step := range []struct {
		name string
		fn   func(storage.Writer, *transform.Result, *loadState) error
	}{
		{"services", l.loadServices},
		{"service links", l.loadServiceLinks},
		{"service patterns", l.loadServicePatterns},
		{"serviced organisations", l.loadServicedOrganisations},
		{"vehicle journeys", l.loadVehicleJourneys},
		{"calendars", l.loadCalendars},
		{"serviced organisation journeys", l.loadServicedOrganisationJourneys},
		{"flexible operation periods", l.loadFlexiblePeriods},
		{"service pattern stops", l.loadServicePatternStops},
		{"booking arrangements", l.loadBookingArrangements},
	} {
		err = step.fn(w, res, state)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", step.name, err)
		}
	}

	err = w.UpdateRevision(name, report)
	if err != nil {
		return nil, fmt.Errorf("updating revision: %w", err)
	}

	err = w.Commit()
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	for pair, id := range state.links {
		links[pair] = id
	}

	done(
		slog.String("name", name),
		slog.Int("services", len(state.services)),
		slog.Int("service_patterns", len(state.patterns)),
		slog.Int("vehicle_journeys", len(state.journeys)),
	)

	return &report, nil
}

// Derives the revision's name, disambiguated against other
// revisions. A revision being reloaded keeps its name if it was
// derived from the same candidate.
func (l *Loader) feedName(rev *model.Revision, report model.ETLReport) (string, error) {
	candidate := FeedName(
		rev.OrganisationName,
		report.MostCommonLocalities,
		report.FirstServiceStart,
		report.LineCount,
		report.LineNames,
	)
	if candidate == "" || isVariant(rev.Name, candidate) {
		return rev.Name, nil
	}

	names, err := l.Store.ListRevisionNames(candidate)
	if err != nil {
		return "", fmt.Errorf("listing revision names: %w", err)
	}

	return ResolveName(candidate, names), nil
}

func (l *Loader) loadServices(w storage.Writer, res *transform.Result, state *loadState) error {
	services := res.Bundle.Services
	ids, err := createInBatches(services, l.batchSize(), w.CreateServices)
	if err != nil {
		return err
	}
	for i, svc := range services {
		svc.ID = ids[i]
		state.services[svc.Key()] = ids[i]
	}
	return nil
}

// Creates the service links not already known, including any only
// referenced by a service pattern.
func (l *Loader) loadServiceLinks(w storage.Writer, res *transform.Result, state *loadState) error {
	pairs := append([]model.StopPair{}, res.ServiceLinks...)
	for _, sp := range res.ServicePatterns {
		pairs = append(pairs, sp.ServiceLinks...)
	}

	missing := []model.StopPair{}
	seen := map[model.StopPair]bool{}
	for _, p := range pairs {
		if _, ok := state.links[p]; ok || seen[p] {
			continue
		}
		seen[p] = true
		missing = append(missing, p)
	}

	ids, err := createInBatches(missing, l.batchSize(), w.CreateServiceLinks)
	if err != nil {
		return err
	}
	for i, p := range missing {
		state.links[p] = ids[i]
	}
	return nil
}

// Creates service patterns and their associations with links,
// services, localities and admin areas.
func (l *Loader) loadServicePatterns(w storage.Writer, res *transform.Result, state *loadState) error {
	patterns := res.ServicePatterns
	ids, err := createInBatches(patterns, l.batchSize(), w.CreateServicePatterns)
	if err != nil {
		return err
	}

	linkRows := []storage.ServicePatternLink{}
	localityRows := []storage.ServicePatternLocality{}
	areaRows := []storage.ServicePatternAdminArea{}
	for i, sp := range patterns {
		sp.ID = ids[i]
		state.patterns[sp.Key] = sp.ID

		for seq, pair := range sp.ServiceLinks {
			linkRows = append(linkRows, storage.ServicePatternLink{
				ServicePatternID: sp.ID,
				ServiceLinkID:    state.links[pair],
				Sequence:         seq,
			})
		}
		for _, id := range distinct(sp.LocalityIDs) {
			localityRows = append(localityRows, storage.ServicePatternLocality{ServicePatternID: sp.ID, LocalityID: id})
		}
		for _, id := range distinct(sp.AdminAreaIDs) {
			areaRows = append(areaRows, storage.ServicePatternAdminArea{ServicePatternID: sp.ID, AdminAreaID: id})
		}
	}

	serviceRows := []storage.ServiceServicePattern{}
	for _, ssp := range res.ServiceServicePatterns {
		serviceID, ok := state.services[ssp.ServiceKey]
		if !ok {
			l.logger().Warn("service pattern references unknown service", slog.String("service", ssp.ServiceKey))
			continue
		}
		ssp.ServiceID = serviceID
		ssp.ServicePatternID = state.patterns[ssp.ServicePatternKey]
		serviceRows = append(serviceRows, storage.ServiceServicePattern{
			ServiceID:        ssp.ServiceID,
			ServicePatternID: ssp.ServicePatternID,
		})
	}

	if err := inBatches(linkRows, l.batchSize(), w.AddServicePatternLinks); err != nil {
		return err
	}
	if err := inBatches(serviceRows, l.batchSize(), w.AddServiceServicePatterns); err != nil {
		return err
	}
	if err := inBatches(localityRows, l.batchSize(), w.AddServicePatternLocalities); err != nil {
		return err
	}
	return inBatches(areaRows, l.batchSize(), w.AddServicePatternAdminAreas)
}

func distinct(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (l *Loader) loadServicedOrganisations(w storage.Writer, res *transform.Result, state *loadState) error {
	orgs := res.Bundle.ServicedOrganisations
	ids, err := createInBatches(orgs, l.batchSize(), w.CreateServicedOrganisations)
	if err != nil {
		return err
	}
	for i, so := range orgs {
		so.ID = ids[i]
		state.organisations[orgKey{so.FileID, so.Code}] = so
	}
	return nil
}

func (l *Loader) loadVehicleJourneys(w storage.Writer, res *transform.Result, state *loadState) error {
	journeys := res.Bundle.VehicleJourneys
	rows := make([]*storage.VehicleJourney, 0, len(journeys))
	for _, vj := range journeys {
		row := &storage.VehicleJourney{
			ServicePatternID:  state.patterns[vj.ServicePatternKey],
			Code:              vj.Code,
			PrivateCode:       vj.PrivateCode,
			LineRef:           vj.LineRef,
			Direction:         vj.Direction,
			BlockNumber:       vj.BlockNumber,
			DepartureDayShift: vj.DepartureDayShift,
			Flexible:          vj.Flexible,
		}
		if !vj.Flexible {
			row.DepartureTime = parse.FormatClock(vj.DepartureTime)
		}
		rows = append(rows, row)
	}

	ids, err := createInBatches(rows, l.batchSize(), w.CreateVehicleJourneys)
	if err != nil {
		return err
	}
	for i, vj := range journeys {
		vj.ID = ids[i]
		state.journeys[vj.Key()] = ids[i]
	}
	return nil
}

// Operating profiles and date exceptions.
func (l *Loader) loadCalendars(w storage.Writer, res *transform.Result, _ *loadState) error {
	profiles := []storage.OperatingProfile{}
	exceptions := []storage.DateException{}
	for _, vj := range res.Bundle.VehicleJourneys {
		p := vj.Profile
		if p == nil {
			continue
		}
		for _, day := range p.DaysOfWeek {
			profiles = append(profiles, storage.OperatingProfile{VehicleJourneyID: vj.ID, Day: day.String()})
		}
		if p.HolidaysOnly {
			profiles = append(profiles, storage.OperatingProfile{VehicleJourneyID: vj.ID, HolidaysOnly: true})
		}
		for _, d := range p.OperatingDates {
			exceptions = append(exceptions, storage.DateException{VehicleJourneyID: vj.ID, Date: d, Operating: true})
		}
		for _, d := range p.NonOperatingDates {
			exceptions = append(exceptions, storage.DateException{VehicleJourneyID: vj.ID, Date: d, Operating: false})
		}
	}

	if err := inBatches(profiles, l.batchSize(), w.AddOperatingProfiles); err != nil {
		return err
	}
	return inBatches(exceptions, l.batchSize(), w.AddDateExceptions)
}

// Links journeys to the serviced organisations gating them, with the
// organisation's working days. References to organisations the
// document doesn't define are skipped.
func (l *Loader) loadServicedOrganisationJourneys(w storage.Writer, res *transform.Result, state *loadState) error {
	rows := []storage.ServicedOrganisationVehicleJourney{}
	orgs := []*model.ServicedOrganisation{}
	for _, vj := range res.Bundle.VehicleJourneys {
		if vj.Profile == nil {
			continue
		}
		for _, day := range vj.Profile.ServicedOrganisations {
			so, ok := state.organisations[orgKey{vj.FileID, day.OrganisationCode}]
			if !ok {
				l.logger().Warn("unknown serviced organisation",
					slog.String("vehicle_journey", vj.Key()),
					slog.String("organisation", day.OrganisationCode))
				continue
			}
			rows = append(rows, storage.ServicedOrganisationVehicleJourney{
				ServicedOrganisationID: so.ID,
				VehicleJourneyID:       vj.ID,
				OperatingOnWorkingDays: day.OperatingOnWorkingDays(),
			})
			orgs = append(orgs, so)
		}
	}

	ids, err := createInBatches(rows, l.batchSize(), w.CreateServicedOrganisationVehicleJourneys)
	if err != nil {
		return err
	}

	workingDays := []storage.ServicedOrganisationWorkingDays{}
	for i, so := range orgs {
		for _, dr := range so.WorkingDays {
			workingDays = append(workingDays, storage.ServicedOrganisationWorkingDays{
				ServicedOrganisationVehicleJourneyID: ids[i],
				StartDate:                            dr.Start,
				EndDate:                              dr.End,
			})
		}
	}
	return inBatches(workingDays, l.batchSize(), w.AddServicedOrganisationWorkingDays)
}

func (l *Loader) loadFlexiblePeriods(w storage.Writer, res *transform.Result, _ *loadState) error {
	rows := []storage.FlexibleOperationPeriod{}
	for _, vj := range res.Bundle.VehicleJourneys {
		for _, p := range vj.FlexiblePeriods {
			rows = append(rows, storage.FlexibleOperationPeriod{
				VehicleJourneyID: vj.ID,
				StartTime:        parse.FormatClock(p.Start),
				EndTime:          parse.FormatClock(p.End),
			})
		}
	}
	return inBatches(rows, l.batchSize(), w.AddFlexibleOperationPeriods)
}

// Pattern level and per journey stop rows.
func (l *Loader) loadServicePatternStops(w storage.Writer, res *transform.Result, state *loadState) error {
	rows := make([]*model.ServicePatternStop, 0, len(res.PatternStops)+len(res.JourneyStops))
	for _, row := range res.PatternStops {
		row.ServicePatternID = state.patterns[row.ServicePatternKey]
		rows = append(rows, row)
	}
	for _, row := range res.JourneyStops {
		row.ServicePatternID = state.patterns[row.ServicePatternKey]
		row.VehicleJourneyID = state.journeys[row.VehicleJourneyKey]
		rows = append(rows, row)
	}
	return inBatches(rows, l.batchSize(), w.AddServicePatternStops)
}

func (l *Loader) loadBookingArrangements(w storage.Writer, res *transform.Result, state *loadState) error {
	rows := []storage.BookingArrangement{}
	for _, ba := range res.Bundle.BookingArrangements {
		serviceID, ok := state.services[ba.FileID+"/"+ba.ServiceCode]
		if !ok {
			continue
		}
		rows = append(rows, storage.BookingArrangement{
			ServiceID:   serviceID,
			Description: ba.Description,
			Phone:       ba.Phone,
			Email:       ba.Email,
			WebAddress:  ba.WebAddress,
		})
	}
	return inBatches(rows, l.batchSize(), w.AddBookingArrangements)
}
