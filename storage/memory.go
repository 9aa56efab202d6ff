package storage

import (
	"sort"
	"strings"
	"sync"

	"tidbyt.dev/txc/model"
)

// In memory implementation of Storage below

// Everything loaded into one revision.
type MemoryRevisionData struct {
	Services                []*model.Service
	ServicePatterns         []*model.ServicePattern
	ServicePatternLinks     []ServicePatternLink
	ServiceServicePatterns  []ServiceServicePattern
	ServicePatternLocations []ServicePatternLocality
	ServicePatternAreas     []ServicePatternAdminArea
	ServicedOrganisations   []*model.ServicedOrganisation
	VehicleJourneys         []*VehicleJourney
	OperatingProfiles       []OperatingProfile
	DateExceptions          []DateException
	ServicedOrgJourneys     []ServicedOrganisationVehicleJourney
	ServicedOrgWorkingDays  []ServicedOrganisationWorkingDays
	FlexiblePeriods         []FlexibleOperationPeriod
	ServicePatternStops     []*model.ServicePatternStop
	BookingArrangements     []BookingArrangement
}

func (d *MemoryRevisionData) counts() map[string]int {
	return map[string]int{
		TableService:                            len(d.Services),
		TableServicePattern:                     len(d.ServicePatterns),
		TableServicePatternServiceLink:          len(d.ServicePatternLinks),
		TableServiceServicePattern:              len(d.ServiceServicePatterns),
		TableServicePatternLocality:             len(d.ServicePatternLocations),
		TableServicePatternAdminArea:            len(d.ServicePatternAreas),
		TableServicedOrganisation:               len(d.ServicedOrganisations),
		TableVehicleJourney:                     len(d.VehicleJourneys),
		TableOperatingProfile:                   len(d.OperatingProfiles),
		TableDateException:                      len(d.DateExceptions),
		TableServicedOrganisationVehicleJourney: len(d.ServicedOrgJourneys),
		TableServicedOrganisationWorkingDays:    len(d.ServicedOrgWorkingDays),
		TableFlexibleOperationPeriod:            len(d.FlexiblePeriods),
		TableServicePatternStop:                 len(d.ServicePatternStops),
		TableBookingArrangement:                 len(d.BookingArrangements),
	}
}

type MemoryStorage struct {
	mu sync.Mutex

	StopPointsByCode map[string]*model.StopPoint
	LocalitiesByID   map[string]*model.Locality
	AdminAreasByID   map[string]*model.AdminArea
	Links            map[model.StopPair]*model.ServiceLink
	Revisions        map[int64]*model.Revision
	Data             map[int64]*MemoryRevisionData

	lastID int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		StopPointsByCode: map[string]*model.StopPoint{},
		LocalitiesByID:   map[string]*model.Locality{},
		AdminAreasByID:   map[string]*model.AdminArea{},
		Links:            map[model.StopPair]*model.ServiceLink{},
		Revisions:        map[int64]*model.Revision{},
		Data:             map[int64]*MemoryRevisionData{},
	}
}

func (s *MemoryStorage) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *MemoryStorage) WriteStopPoints(stops []*model.StopPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stop := range stops {
		cp := *stop
		if existing, ok := s.StopPointsByCode[stop.AtcoCode]; ok {
			cp.ID = existing.ID
		} else {
			cp.ID = s.nextID()
		}
		s.StopPointsByCode[stop.AtcoCode] = &cp
	}
	return nil
}

func (s *MemoryStorage) WriteLocalities(localities []*model.Locality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range localities {
		cp := *l
		s.LocalitiesByID[l.ID] = &cp
	}
	return nil
}

func (s *MemoryStorage) WriteAdminAreas(areas []*model.AdminArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range areas {
		cp := *a
		s.AdminAreasByID[a.ID] = &cp
	}
	return nil
}

// Values found under the given keys, sorted by key.
func lookup[T any](m map[string]*T, keys []string) []*T {
	seen := map[string]bool{}
	found := []string{}
	for _, k := range keys {
		if _, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			found = append(found, k)
		}
	}
	sort.Strings(found)

	out := make([]*T, 0, len(found))
	for _, k := range found {
		cp := *m[k]
		out = append(out, &cp)
	}
	return out
}

func (s *MemoryStorage) StopPoints(atcoCodes []string) ([]*model.StopPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.StopPointsByCode, atcoCodes), nil
}

func (s *MemoryStorage) Localities(ids []string) ([]*model.Locality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.LocalitiesByID, ids), nil
}

func (s *MemoryStorage) AdminAreas(ids []string) ([]*model.AdminArea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.AdminAreasByID, ids), nil
}

func (s *MemoryStorage) ServiceLinks(pairs []model.StopPair) ([]*model.ServiceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[model.StopPair]bool{}
	links := []*model.ServiceLink{}
	for _, p := range pairs {
		if l, ok := s.Links[p]; ok && !seen[p] {
			seen[p] = true
			cp := *l
			links = append(links, &cp)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

func (s *MemoryStorage) CreateRevision(name, organisationName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID()
	s.Revisions[id] = &model.Revision{
		ID:               id,
		Name:             name,
		OrganisationName: organisationName,
	}
	s.Data[id] = &MemoryRevisionData{}
	return id, nil
}

func (s *MemoryStorage) GetRevision(id int64) (*model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, ok := s.Revisions[id]
	if !ok {
		return nil, ErrRevisionNotFound
	}
	cp := *rev
	cp.Report.Name = cp.Name
	return &cp, nil
}

func (s *MemoryStorage) ListRevisionNames(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := []string{}
	for _, rev := range s.Revisions {
		if strings.HasPrefix(rev.Name, prefix) {
			names = append(names, rev.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) revisionData(id int64) *MemoryRevisionData {
	if d, ok := s.Data[id]; ok {
		return d
	}
	return &MemoryRevisionData{}
}

func (s *MemoryStorage) ListServices(revisionID int64) ([]*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services := []*model.Service{}
	for _, svc := range s.revisionData(revisionID).Services {
		cp := *svc
		cp.Profile = nil
		services = append(services, &cp)
	}
	return services, nil
}

func (s *MemoryStorage) ListServicePatterns(revisionID int64) ([]*model.ServicePattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.revisionData(revisionID)
	linksByID := map[int64]*model.ServiceLink{}
	for _, l := range s.Links {
		linksByID[l.ID] = l
	}

	patterns := []*model.ServicePattern{}
	byID := map[int64]*model.ServicePattern{}
	for _, sp := range d.ServicePatterns {
		cp := *sp
		cp.RevisionID = revisionID
		cp.LocalityIDs = nil
		cp.AdminAreaIDs = nil
		cp.ServiceLinks = nil
		patterns = append(patterns, &cp)
		byID[cp.ID] = &cp
	}

	for _, row := range d.ServicePatternLocations {
		if sp, ok := byID[row.ServicePatternID]; ok {
			sp.LocalityIDs = append(sp.LocalityIDs, row.LocalityID)
		}
	}
	for _, row := range d.ServicePatternAreas {
		if sp, ok := byID[row.ServicePatternID]; ok {
			sp.AdminAreaIDs = append(sp.AdminAreaIDs, row.AdminAreaID)
		}
	}
	links := append([]ServicePatternLink{}, d.ServicePatternLinks...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].Sequence < links[j].Sequence })
	for _, row := range links {
		sp, ok := byID[row.ServicePatternID]
		l, found := linksByID[row.ServiceLinkID]
		if ok && found {
			sp.ServiceLinks = append(sp.ServiceLinks, l.Pair())
		}
	}

	for _, sp := range patterns {
		sort.Strings(sp.LocalityIDs)
		sort.Strings(sp.AdminAreaIDs)
	}

	return patterns, nil
}

func (s *MemoryStorage) ListVehicleJourneys(revisionID int64) ([]*VehicleJourney, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	journeys := []*VehicleJourney{}
	for _, vj := range s.revisionData(revisionID).VehicleJourneys {
		cp := *vj
		journeys = append(journeys, &cp)
	}
	return journeys, nil
}

func (s *MemoryStorage) ListServicePatternStops(servicePatternID, vehicleJourneyID int64) ([]*model.ServicePatternStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stops := []*model.ServicePatternStop{}
	for _, d := range s.Data {
		for _, row := range d.ServicePatternStops {
			if row.ServicePatternID == servicePatternID && row.VehicleJourneyID == vehicleJourneyID {
				cp := *row
				cp.ServicePatternKey = ""
				cp.VehicleJourneyKey = ""
				stops = append(stops, &cp)
			}
		}
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Sequence < stops[j].Sequence })
	return stops, nil
}

func (s *MemoryStorage) RevisionCounts(revisionID int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisionData(revisionID).counts(), nil
}

func (s *MemoryStorage) GetWriter(revisionID int64) (Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, ok := s.Revisions[revisionID]
	if !ok {
		return nil, ErrRevisionNotFound
	}

	staged := *s.revisionData(revisionID)
	return &MemoryWriter{
		s:          s,
		revisionID: revisionID,
		data:       &staged,
		name:       rev.Name,
		report:     rev.Report,
		links:      map[model.StopPair]*model.ServiceLink{},
	}, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

// Stages a revision's new contents, applied to the storage on
// Commit.
type MemoryWriter struct {
	s          *MemoryStorage
	revisionID int64
	data       *MemoryRevisionData
	name       string
	report     model.ETLReport
	links      map[model.StopPair]*model.ServiceLink
	done       bool
}

func (w *MemoryWriter) ids(n int) []int64 {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, w.s.nextID())
	}
	return ids
}

func (w *MemoryWriter) ClearRevision() error {
	w.data = &MemoryRevisionData{}
	return nil
}

func (w *MemoryWriter) CreateServices(services []*model.Service) ([]int64, error) {
	ids := w.ids(len(services))
	for i, svc := range services {
		cp := *svc
		cp.ID = ids[i]
		w.data.Services = append(w.data.Services, &cp)
	}
	return ids, nil
}

func (w *MemoryWriter) CreateServiceLinks(pairs []model.StopPair) ([]int64, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	ids := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		l, ok := w.s.Links[p]
		if !ok {
			l, ok = w.links[p]
		}
		if !ok {
			l = &model.ServiceLink{ID: w.s.nextID(), FromStop: p.From, ToStop: p.To}
			w.links[p] = l
		}
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (w *MemoryWriter) CreateServicePatterns(patterns []*model.ServicePattern) ([]int64, error) {
	ids := w.ids(len(patterns))
	for i, sp := range patterns {
		cp := *sp
		cp.ID = ids[i]
		w.data.ServicePatterns = append(w.data.ServicePatterns, &cp)
	}
	return ids, nil
}

func (w *MemoryWriter) AddServicePatternLinks(rows []ServicePatternLink) error {
	w.data.ServicePatternLinks = append(w.data.ServicePatternLinks, rows...)
	return nil
}

func (w *MemoryWriter) AddServiceServicePatterns(rows []ServiceServicePattern) error {
	w.data.ServiceServicePatterns = append(w.data.ServiceServicePatterns, rows...)
	return nil
}

func (w *MemoryWriter) AddServicePatternLocalities(rows []ServicePatternLocality) error {
	w.data.ServicePatternLocations = append(w.data.ServicePatternLocations, rows...)
	return nil
}

func (w *MemoryWriter) AddServicePatternAdminAreas(rows []ServicePatternAdminArea) error {
	w.data.ServicePatternAreas = append(w.data.ServicePatternAreas, rows...)
	return nil
}

func (w *MemoryWriter) CreateServicedOrganisations(orgs []*model.ServicedOrganisation) ([]int64, error) {
	ids := w.ids(len(orgs))
	for i, so := range orgs {
		cp := *so
		cp.ID = ids[i]
		w.data.ServicedOrganisations = append(w.data.ServicedOrganisations, &cp)
	}
	return ids, nil
}

func (w *MemoryWriter) CreateVehicleJourneys(journeys []*VehicleJourney) ([]int64, error) {
	ids := w.ids(len(journeys))
	for i, vj := range journeys {
		cp := *vj
		cp.ID = ids[i]
		w.data.VehicleJourneys = append(w.data.VehicleJourneys, &cp)
	}
	return ids, nil
}

func (w *MemoryWriter) AddOperatingProfiles(rows []OperatingProfile) error {
	w.data.OperatingProfiles = append(w.data.OperatingProfiles, rows...)
	return nil
}

func (w *MemoryWriter) AddDateExceptions(rows []DateException) error {
	w.data.DateExceptions = append(w.data.DateExceptions, rows...)
	return nil
}

func (w *MemoryWriter) CreateServicedOrganisationVehicleJourneys(rows []ServicedOrganisationVehicleJourney) ([]int64, error) {
	w.data.ServicedOrgJourneys = append(w.data.ServicedOrgJourneys, rows...)
	return w.ids(len(rows)), nil
}

func (w *MemoryWriter) AddServicedOrganisationWorkingDays(rows []ServicedOrganisationWorkingDays) error {
	w.data.ServicedOrgWorkingDays = append(w.data.ServicedOrgWorkingDays, rows...)
	return nil
}

func (w *MemoryWriter) AddFlexibleOperationPeriods(rows []FlexibleOperationPeriod) error {
	w.data.FlexiblePeriods = append(w.data.FlexiblePeriods, rows...)
	return nil
}

func (w *MemoryWriter) AddServicePatternStops(rows []*model.ServicePatternStop) error {
	for _, row := range rows {
		cp := *row
		w.data.ServicePatternStops = append(w.data.ServicePatternStops, &cp)
	}
	return nil
}

func (w *MemoryWriter) AddBookingArrangements(rows []BookingArrangement) error {
	w.data.BookingArrangements = append(w.data.BookingArrangements, rows...)
	return nil
}

func (w *MemoryWriter) UpdateRevision(name string, report model.ETLReport) error {
	w.name = name
	w.report = report
	return nil
}

func (w *MemoryWriter) Commit() error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true

	for p, l := range w.links {
		w.s.Links[p] = l
	}
	w.s.Data[w.revisionID] = w.data
	rev := w.s.Revisions[w.revisionID]
	rev.Name = w.name
	rev.Report = w.report
	return nil
}

func (w *MemoryWriter) Rollback() error {
	w.done = true
	return nil
}
