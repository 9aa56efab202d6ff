package model

import (
	"fmt"
	"time"
)

// Holds all external facing types and constants.

// NoExpirySentinel marks services published without a real end
// date. It is ignored when looking for expiring services.
var NoExpirySentinel = time.Date(9999, 9, 9, 0, 0, 0, 0, time.UTC)

// IsNoExpiry reports whether t falls on the no-expiry date, whatever
// its time of day.
func IsNoExpiry(t time.Time) bool {
	y, m, d := t.Date()
	sy, sm, sd := NoExpirySentinel.Date()
	return y == sy && m == sm && d == sd
}

type ServiceType int

const (
	ServiceTypeStandard ServiceType = iota
	ServiceTypeFlexible
)

func (t ServiceType) String() string {
	if t == ServiceTypeFlexible {
		return "flexible"
	}
	return "standard"
}

type StopActivity int

const (
	ActivityPickUpAndSetDown StopActivity = iota
	ActivityPickUp
	ActivitySetDown
	ActivityPass
)

func ParseStopActivity(s string) StopActivity {
	switch s {
	case "pickUp":
		return ActivityPickUp
	case "setDown":
		return ActivitySetDown
	case "pass":
		return ActivityPass
	}
	return ActivityPickUpAndSetDown
}

func (a StopActivity) String() string {
	switch a {
	case ActivityPickUp:
		return "pickUp"
	case ActivitySetDown:
		return "setDown"
	case ActivityPass:
		return "pass"
	}
	return "pickUpAndSetDown"
}

type BusStopType string

const (
	BusStopTypeStandard      BusStopType = ""
	BusStopTypeFlexible      BusStopType = "flexible"
	BusStopTypeFixedFlexible BusStopType = "fixed_flexible"
)

// A WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

// Reference data, maintained outside of the timetable ETL.

type StopPoint struct {
	ID          int64
	AtcoCode    string
	CommonName  string
	Geometry    *Point
	LocalityID  string
	AdminAreaID string
}

type Locality struct {
	ID          string
	Name        string
	AdminAreaID string
}

type AdminArea struct {
	ID   string
	Name string
}

// Records extracted from a single document. FileID scopes every
// business key to the document it came from.

type File struct {
	ID                   string
	Name                 string
	SchemaVersion        string
	RevisionNumber       string
	Modification         string
	CreationDateTime     time.Time
	ModificationDateTime time.Time
}

type Service struct {
	ID          int64
	FileID      string
	Code        string
	Type        ServiceType
	StartDate   time.Time
	EndDate     time.Time
	LineNames   []string
	Description string
	Mode        string
	OperatorRef string
	Origin      string
	Destination string
	PublicUse   bool
	Profile     *OperatingProfile
}

// Natural key of a service within a run.
func (s *Service) Key() string {
	return s.FileID + "/" + s.Code
}

type AnnotatedStop struct {
	FileID     string
	AtcoCode   string
	CommonName string
}

type ProvisionalStop struct {
	FileID     string
	AtcoCode   string
	CommonName string
	Geometry   *Point
	LocalityID string
}

type JourneyPattern struct {
	FileID      string
	ServiceCode string
	// Qualified by service code, since short ids are reused across
	// services in the same document.
	ID          string
	Direction   string
	RouteRef    string
	SectionRefs []string
	Flexible    bool
}

func (jp *JourneyPattern) Key() string {
	return jp.FileID + "/" + jp.ID
}

// One edge of a journey pattern section.
type TimingLink struct {
	FileID           string
	SectionID        string
	ID               string
	Order            int
	RouteLinkRef     string
	FromStop         string
	ToStop           string
	FromActivity     StopActivity
	ToActivity       StopActivity
	FromTimingStatus string
	ToTimingStatus   string
	RunTime          time.Duration
	WaitTime         time.Duration
}

type VehicleJourney struct {
	ID                int64
	FileID            string
	Code              string
	PrivateCode       string
	ServiceCode       string
	LineRef           string
	JourneyPatternID  string
	DepartureTime     time.Duration
	DepartureDayShift int
	BlockNumber       string
	Direction         string
	Flexible          bool
	// Run times keyed by timing link id that replace the journey
	// pattern's own run times for this journey.
	RunTimeOverrides  map[string]time.Duration
	Profile           *OperatingProfile
	FlexiblePeriods   []TimeWindow
	ServicePatternKey string
}

func (vj *VehicleJourney) Key() string {
	return vj.FileID + "/" + vj.Code
}

type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

type OperatingProfile struct {
	DaysOfWeek            []time.Weekday
	HolidaysOnly          bool
	OperatingDates        []time.Time
	NonOperatingDates     []time.Time
	ServicedOrganisations []ServicedOrganisationDay
}

type ServicedOrganisationDay struct {
	OrganisationCode string
	Operational      bool
	WorkingDays      bool
}

// True if the journey runs on the organisation's working days, as
// opposed to its holidays.
func (d ServicedOrganisationDay) OperatingOnWorkingDays() bool {
	return d.Operational == d.WorkingDays
}

type ServicedOrganisation struct {
	ID          int64
	FileID      string
	Code        string
	Name        string
	WorkingDays []DateRange
}

type FlexibleStopUsage struct {
	FileID           string
	ServiceCode      string
	JourneyPatternID string
	Order            int
	AtcoCode         string
	Activity         StopActivity
	Type             BusStopType
}

type BookingArrangement struct {
	FileID      string
	ServiceCode string
	Description string
	Phone       string
	Email       string
	WebAddress  string
}

// Records produced by the transformer.

// A stop referenced by the run, either known to the reference
// dataset or a placeholder built from whatever the documents say.
type StopReference struct {
	AtcoCode      string
	NaptanID      int64
	Known         bool
	CommonName    string
	Geometry      *Point
	LocalityID    string
	LocalityName  string
	AdminAreaID   string
	AdminAreaName string
}

type RouteLink struct {
	Ref          string
	FromStop     string
	ToStop       string
	TimingStatus string
	RunTime      time.Duration
	WaitTime     time.Duration
}

type StopPair struct {
	From string
	To   string
}

func (p StopPair) String() string {
	return fmt.Sprintf("%s->%s", p.From, p.To)
}

type ServiceLink struct {
	ID       int64
	FromStop string
	ToStop   string
}

func (l *ServiceLink) Pair() StopPair {
	return StopPair{From: l.FromStop, To: l.ToStop}
}

type ServicePattern struct {
	ID               int64
	Key              string
	RevisionID       int64
	ServiceCode      string
	RouteHash        string
	FileID           string
	JourneyPatternID string
	Direction        string
	Origin           string
	Destination      string
	Description      string
	LineName         string
	Flexible         bool
	Geometry         []Point
	Polyline         string
	LengthKm         float64
	LocalityIDs      []string
	AdminAreaIDs     []string
	ServiceLinks     []StopPair
}

type ServicePatternStop struct {
	ServicePatternKey string
	ServicePatternID  int64
	// Empty for the pattern level sequence.
	VehicleJourneyKey string
	VehicleJourneyID  int64
	Sequence          int
	AtcoCode          string
	NaptanID          int64
	CommonName        string
	Geometry          *Point
	LocalityID        string
	AdminAreaID       string
	// Elapsed time from the origin. DepartureTime is the same value
	// (or the journey's departure plus it) wrapped to a wall clock,
	// and empty for flexible stops.
	Offset        time.Duration
	DepartureTime string
	IsTimingPoint bool
	Activity      StopActivity
	BusStopType   BusStopType
}

// Associates a service instance with a service pattern.
type ServiceServicePattern struct {
	ServiceKey        string
	ServiceID         int64
	ServicePatternKey string
	ServicePatternID  int64
}

type ETLReport struct {
	SchemaVersion        string
	CreationDateTime     time.Time
	ModificationDateTime time.Time
	LineCount            int
	LineNames            []string
	StopCount            int
	TimingPointCount     int
	FirstExpiringService time.Time
	LastExpiringService  time.Time
	FirstServiceStart    time.Time
	BoundingBox          *BoundingBox
	Name                 string
	MostCommonLocalities []string
}

type Revision struct {
	ID               int64
	Name             string
	OrganisationName string
	Report           ETLReport
}
