package storage

import (
	"errors"
	"time"

	"tidbyt.dev/txc/model"
)

var ErrRevisionNotFound = errors.New("revision not found")

type Storage interface {
	// Upserts reference records by their identifier (ATCO code for
	// stop points).
	WriteStopPoints(stops []*model.StopPoint) error
	WriteLocalities(localities []*model.Locality) error
	WriteAdminAreas(areas []*model.AdminArea) error

	// Reference lookups. Unknown identifiers are left out of the
	// result.
	StopPoints(atcoCodes []string) ([]*model.StopPoint, error)
	Localities(ids []string) ([]*model.Locality, error)
	AdminAreas(ids []string) ([]*model.AdminArea, error)

	// Service links previously persisted for any of the given stop
	// pairs.
	ServiceLinks(pairs []model.StopPair) ([]*model.ServiceLink, error)

	CreateRevision(name, organisationName string) (int64, error)

	// Fails with ErrRevisionNotFound for unknown ids.
	GetRevision(id int64) (*model.Revision, error)

	// Names of all revisions starting with prefix, in lexical
	// order. Matching is case sensitive.
	ListRevisionNames(prefix string) ([]string, error)

	// Read back a revision's loaded timetable.
	ListServices(revisionID int64) ([]*model.Service, error)
	ListServicePatterns(revisionID int64) ([]*model.ServicePattern, error)
	ListVehicleJourneys(revisionID int64) ([]*VehicleJourney, error)

	// Stop rows of a service pattern. A zero vehicleJourneyID gives
	// the pattern level sequence.
	ListServicePatternStops(servicePatternID, vehicleJourneyID int64) ([]*model.ServicePatternStop, error)

	// Number of rows per revision scoped table.
	RevisionCounts(revisionID int64) (map[string]int, error)

	// Gets a writer replacing the output of the given revision. Its
	// changes are invisible until committed.
	GetWriter(revisionID int64) (Writer, error)

	Close() error
}

// Writer persists one ETL run inside a single transaction. Create
// methods return generated identifiers in input order.
type Writer interface {
	// Removes everything previously loaded into the revision.
	ClearRevision() error

	CreateServices(services []*model.Service) ([]int64, error)

	// Service links are shared between revisions.
	CreateServiceLinks(pairs []model.StopPair) ([]int64, error)

	CreateServicePatterns(patterns []*model.ServicePattern) ([]int64, error)
	AddServicePatternLinks(rows []ServicePatternLink) error
	AddServiceServicePatterns(rows []ServiceServicePattern) error
	AddServicePatternLocalities(rows []ServicePatternLocality) error
	AddServicePatternAdminAreas(rows []ServicePatternAdminArea) error

	CreateServicedOrganisations(orgs []*model.ServicedOrganisation) ([]int64, error)
	CreateVehicleJourneys(journeys []*VehicleJourney) ([]int64, error)
	AddOperatingProfiles(rows []OperatingProfile) error
	AddDateExceptions(rows []DateException) error
	CreateServicedOrganisationVehicleJourneys(rows []ServicedOrganisationVehicleJourney) ([]int64, error)
	AddServicedOrganisationWorkingDays(rows []ServicedOrganisationWorkingDays) error
	AddFlexibleOperationPeriods(rows []FlexibleOperationPeriod) error
	AddServicePatternStops(rows []*model.ServicePatternStop) error
	AddBookingArrangements(rows []BookingArrangement) error

	// Sets the revision's name and report.
	UpdateRevision(name string, report model.ETLReport) error

	Commit() error
	Rollback() error
}

// Revision scoped tables, as reported by RevisionCounts.
const (
	TableService                            = "service"
	TableServicePattern                     = "service_pattern"
	TableServicePatternServiceLink          = "service_pattern_service_link"
	TableServiceServicePattern              = "service_service_pattern"
	TableServicePatternLocality             = "service_pattern_locality"
	TableServicePatternAdminArea            = "service_pattern_admin_area"
	TableServicedOrganisation               = "serviced_organisation"
	TableVehicleJourney                     = "vehicle_journey"
	TableOperatingProfile                   = "operating_profile"
	TableDateException                      = "date_exception"
	TableServicedOrganisationVehicleJourney = "serviced_organisation_vehicle_journey"
	TableServicedOrganisationWorkingDays    = "serviced_organisation_working_days"
	TableFlexibleOperationPeriod            = "flexible_operation_period"
	TableServicePatternStop                 = "service_pattern_stop"
	TableBookingArrangement                 = "booking_arrangement"
)

var RevisionTables = []string{
	TableService,
	TableServicePattern,
	TableServicePatternServiceLink,
	TableServiceServicePattern,
	TableServicePatternLocality,
	TableServicePatternAdminArea,
	TableServicedOrganisation,
	TableVehicleJourney,
	TableOperatingProfile,
	TableDateException,
	TableServicedOrganisationVehicleJourney,
	TableServicedOrganisationWorkingDays,
	TableFlexibleOperationPeriod,
	TableServicePatternStop,
	TableBookingArrangement,
}

type ServicePatternLink struct {
	ServicePatternID int64
	ServiceLinkID    int64
	Sequence         int
}

type ServiceServicePattern struct {
	ServiceID        int64
	ServicePatternID int64
}

type ServicePatternLocality struct {
	ServicePatternID int64
	LocalityID       string
}

type ServicePatternAdminArea struct {
	ServicePatternID int64
	AdminAreaID      string
}

type VehicleJourney struct {
	ID int64
	// Zero if the journey's pattern has no route.
	ServicePatternID int64
	Code             string
	PrivateCode      string
	LineRef          string
	Direction        string
	BlockNumber      string
	// Wall clock "HH:MM:SS", empty for flexible journeys.
	DepartureTime     string
	DepartureDayShift int
	Flexible          bool
}

// One operating weekday of a journey. Day is empty for a holidays
// only profile.
type OperatingProfile struct {
	VehicleJourneyID int64
	Day              string
	HolidaysOnly     bool
}

type DateException struct {
	VehicleJourneyID int64
	Date             time.Time
	Operating        bool
}

type ServicedOrganisationVehicleJourney struct {
	ServicedOrganisationID int64
	VehicleJourneyID       int64
	OperatingOnWorkingDays bool
}

type ServicedOrganisationWorkingDays struct {
	ServicedOrganisationVehicleJourneyID int64
	StartDate                            time.Time
	EndDate                              time.Time
}

type FlexibleOperationPeriod struct {
	VehicleJourneyID int64
	StartTime        string
	EndTime          string
}

type BookingArrangement struct {
	ServiceID   int64
	Description string
	Phone       string
	Email       string
	WebAddress  string
}
