package parse

import "encoding/xml"

// XML bindings for the subset of TransXChange read by the
// extractor. Tags carry no namespace so both namespaced and bare
// documents decode.

type txcDocument struct {
	XMLName              xml.Name `xml:"TransXChange"`
	SchemaVersion        string   `xml:",attr"`
	CreationDateTime     string   `xml:",attr"`
	ModificationDateTime string   `xml:",attr"`
	RevisionNumber       string   `xml:",attr"`
	Modification         string   `xml:",attr"`
	LocationSystem       string   `xml:",attr"`

	ServicedOrganisations  []txcServicedOrganisation  `xml:"ServicedOrganisations>ServicedOrganisation"`
	AnnotatedStopPointRefs []txcAnnotatedStopPointRef `xml:"StopPoints>AnnotatedStopPointRef"`
	StopPoints             []txcStopPoint             `xml:"StopPoints>StopPoint"`
	JourneyPatternSections []txcJourneyPatternSection `xml:"JourneyPatternSections>JourneyPatternSection"`
	Services               []txcService               `xml:"Services>Service"`

	VehicleJourneys         []txcVehicleJourney         `xml:"VehicleJourneys>VehicleJourney"`
	FlexibleVehicleJourneys []txcFlexibleVehicleJourney `xml:"VehicleJourneys>FlexibleVehicleJourney"`
}

type txcServicedOrganisation struct {
	OrganisationCode string
	Name             string
	WorkingDays      []txcDateRange `xml:"WorkingDays>DateRange"`
	Holidays         []txcDateRange `xml:"Holidays>DateRange"`
}

type txcDateRange struct {
	StartDate string
	EndDate   string
}

type txcAnnotatedStopPointRef struct {
	StopPointRef string
	CommonName   string
}

type txcStopPoint struct {
	AtcoCode    string
	CommonName  string      `xml:"Descriptor>CommonName"`
	LocalityRef string      `xml:"Place>NptgLocalityRef"`
	Location    txcLocation `xml:"Place>Location"`
}

type txcLocation struct {
	Easting     string
	Northing    string
	Longitude   string
	Latitude    string
	Translation *txcLocation
}

type txcJourneyPatternSection struct {
	ID          string                        `xml:"id,attr"`
	TimingLinks []txcJourneyPatternTimingLink `xml:"JourneyPatternTimingLink"`
}

type txcJourneyPatternTimingLink struct {
	ID           string `xml:"id,attr"`
	RouteLinkRef string
	RunTime      string
	From         txcTimingLinkPoint
	To           txcTimingLinkPoint
}

type txcTimingLinkPoint struct {
	SequenceNumber string `xml:",attr"`
	Activity       string
	StopPointRef   string
	TimingStatus   string
	WaitTime       string
}

type txcService struct {
	ServiceCode           string
	PrivateCode           string
	Lines                 []txcLine `xml:"Lines>Line"`
	StartDate             string    `xml:"OperatingPeriod>StartDate"`
	EndDate               string    `xml:"OperatingPeriod>EndDate"`
	OperatingProfile      *txcOperatingProfile
	RegisteredOperatorRef string
	Description           string
	Mode                  string
	PublicUse             string
	StandardService       *txcStandardService
	FlexibleService       *txcFlexibleService
}

type txcLine struct {
	ID       string `xml:"id,attr"`
	LineName string
}

type txcStandardService struct {
	Origin          string
	Destination     string
	JourneyPatterns []txcJourneyPattern `xml:"JourneyPattern"`
}

type txcJourneyPattern struct {
	ID          string `xml:"id,attr"`
	Direction   string
	RouteRef    string
	SectionRefs []string `xml:"JourneyPatternSectionRefs"`
}

type txcFlexibleService struct {
	Origin                  string
	Destination             string
	FlexibleJourneyPatterns []txcFlexibleJourneyPattern `xml:"FlexibleJourneyPattern"`
}

type txcFlexibleJourneyPattern struct {
	ID                   string `xml:"id,attr"`
	Direction            string
	StopPointsInSequence []txcStopUsages          `xml:"StopPointsInSequence"`
	FlexibleZones        []txcStopUsages          `xml:"FlexibleZones"`
	FixedStopPoints      []txcStopUsages          `xml:"FixedStopPoints"`
	BookingArrangements  []txcBookingArrangements `xml:"BookingArrangements"`
}

// Fixed and flexible usages interleave, so they are collected in
// document order and told apart by element name.
type txcStopUsages struct {
	Usages []txcStopUsage `xml:",any"`
}

type txcStopUsage struct {
	XMLName        xml.Name
	SequenceNumber string `xml:",attr"`
	StopPointRef   string
	Activity       string
}

type txcBookingArrangements struct {
	Description string
	Phone       string `xml:"Phone>TelNationalNumber"`
	Email       string
	WebAddress  string
}

type txcVehicleJourney struct {
	PrivateCode        string
	VehicleJourneyCode string
	VehicleJourneyRef  string
	ServiceRef         string
	LineRef            string
	JourneyPatternRef  string
	DepartureTime      string
	DepartureDayShift  string
	BlockNumber        string `xml:"Operational>Block>BlockNumber"`
	OperatingProfile   *txcOperatingProfile
	TimingLinks        []txcVehicleJourneyTimingLink `xml:"VehicleJourneyTimingLink"`
}

type txcVehicleJourneyTimingLink struct {
	JourneyPatternTimingLinkRef string
	RunTime                     string
}

type txcFlexibleVehicleJourney struct {
	PrivateCode        string
	VehicleJourneyCode string
	ServiceRef         string
	LineRef            string
	JourneyPatternRef  string
	OperatingProfile   *txcOperatingProfile
	ServicePeriods     []txcServicePeriod `xml:"FlexibleServiceTimes>ServicePeriod"`
}

type txcServicePeriod struct {
	StartTime string
	EndTime   string
}

type txcOperatingProfile struct {
	RegularDayType              *txcRegularDayType
	SpecialDaysOperation        *txcSpecialDaysOperation
	ServicedOrganisationDayType *txcServicedOrganisationDayType
}

type txcRegularDayType struct {
	DaysOfWeek   *txcElements
	HolidaysOnly *struct{}
}

// Any child elements, by name.
type txcElements struct {
	Elements []txcElement `xml:",any"`
}

type txcElement struct {
	XMLName xml.Name
}

type txcSpecialDaysOperation struct {
	DaysOfOperation    []txcDateRange `xml:"DaysOfOperation>DateRange"`
	DaysOfNonOperation []txcDateRange `xml:"DaysOfNonOperation>DateRange"`
}

type txcServicedOrganisationDayType struct {
	DaysOfOperation    txcServicedOrganisationDays
	DaysOfNonOperation txcServicedOrganisationDays
}

type txcServicedOrganisationDays struct {
	WorkingDays []string `xml:"WorkingDays>ServicedOrganisationRef"`
	Holidays    []string `xml:"Holidays>ServicedOrganisationRef"`
}
