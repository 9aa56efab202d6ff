package parse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/testutil"
)

func extract(t *testing.T, doc testutil.Doc) *Bundle {
	b, err := ExtractDocument("test.xml", doc.XML(), Options{})
	require.NoError(t, err)
	return b
}

func TestExtractDocumentSingleRoute(t *testing.T) {
	b := extract(t, testutil.SingleRouteDoc())

	require.Equal(t, 1, len(b.Files))
	file := b.Files[0]
	assert.Equal(t, "test.xml", file.Name)
	assert.Equal(t, "2.4", file.SchemaVersion)
	assert.Equal(t, FileID("test.xml", testutil.SingleRouteDoc().XML()), file.ID)
	assert.Equal(t, time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), b.CreationDateTime)
	assert.Equal(t, time.Date(2020, 1, 2, 10, 0, 0, 0, time.UTC), b.ModificationDateTime)
	assert.Equal(t, []string{"2.4"}, b.SchemaVersions)

	require.Equal(t, 1, len(b.Services))
	svc := b.Services[0]
	assert.Equal(t, "PB0000001:1", svc.Code)
	assert.Equal(t, []string{"1A"}, svc.LineNames)
	assert.Equal(t, model.ServiceTypeStandard, svc.Type)
	assert.Equal(t, time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), svc.StartDate)
	assert.Equal(t, time.Date(2020, 12, 31, 23, 59, 0, 0, time.UTC), svc.EndDate)
	assert.Equal(t, 1, b.LineCount)
	assert.Equal(t, []string{"1A"}, b.LineNames)

	require.Equal(t, 2, len(b.ProvisionalStops))
	assert.Equal(t, "0100BRP90310", b.ProvisionalStops[0].AtcoCode)
	assert.Equal(t, "Temple Meads", b.ProvisionalStops[0].CommonName)
	assert.Equal(t, "E0035604", b.ProvisionalStops[0].LocalityID)
	assert.Equal(t, &model.Point{Lon: -2.585, Lat: 51.4491}, b.ProvisionalStops[0].Geometry)
	assert.Equal(t, 0, len(b.AnnotatedStops))
	assert.Equal(t, 2, b.StopCount())

	require.Equal(t, 1, len(b.JourneyPatterns))
	jp := b.JourneyPatterns[0]
	assert.Equal(t, "PB0000001:1-JP1", jp.ID)
	assert.Equal(t, "PB0000001:1", jp.ServiceCode)
	assert.Equal(t, "outbound", jp.Direction)
	assert.Equal(t, []string{"JPS1"}, jp.SectionRefs)
	assert.False(t, jp.Flexible)

	require.Equal(t, 1, len(b.TimingLinks))
	link := b.TimingLinks[0]
	assert.Equal(t, "JPS1", link.SectionID)
	assert.Equal(t, "JPTL1", link.ID)
	assert.Equal(t, 0, link.Order)
	assert.Equal(t, "RL1", link.RouteLinkRef)
	assert.Equal(t, "0100BRP90310", link.FromStop)
	assert.Equal(t, "0100BRP90311", link.ToStop)
	assert.Equal(t, 5*time.Minute, link.RunTime)
	assert.Equal(t, time.Minute, link.WaitTime)
	assert.Equal(t, "PTP", link.FromTimingStatus)
	assert.Equal(t, 2, b.TimingPointCount)

	require.Equal(t, 1, len(b.VehicleJourneys))
	vj := b.VehicleJourneys[0]
	assert.Equal(t, "VJ1", vj.Code)
	assert.Equal(t, "PB0000001:1-JP1", vj.JourneyPatternID)
	assert.Equal(t, 8*time.Hour, vj.DepartureTime)
	assert.Equal(t, "outbound", vj.Direction)
	assert.False(t, vj.Flexible)
}

func TestExtractDocumentFileErrors(t *testing.T) {
	missingLines := testutil.SingleRouteDoc()
	missingLines.Services[0].Lines = nil

	noVersion := testutil.SingleRouteDoc()
	noVersion.OmitSchemaVersion = true

	oldVersion := testutil.SingleRouteDoc()
	oldVersion.SchemaVersion = "2.0"

	badRunTime := testutil.SingleRouteDoc()
	badRunTime.Sections[0].Links[0].RunTime = "five minutes"

	negativeRunTime := testutil.SingleRouteDoc()
	negativeRunTime.Sections[0].Links[0].RunTime = "-PT5M"

	negativeWait := testutil.SingleRouteDoc()
	negativeWait.Sections[0].Links[0].ToWait = "-PT1M"

	negativeOverride := testutil.SingleRouteDoc()
	negativeOverride.VehicleJourneys[0].RunTimes = map[string]string{"JPTL1": "-PT2M"}

	badDeparture := testutil.SingleRouteDoc()
	badDeparture.VehicleJourneys[0].Departure = "8am"

	for _, tc := range []struct {
		name     string
		data     []byte
		kind     FileErrorKind
		contains []string
	}{
		{
			"missing_lines",
			missingLines.XML(),
			FileErrorMissingLines,
			[]string{"test.xml", "PB0000001:1"},
		},
		{
			"malformed",
			[]byte(`<?xml version="1.0"?><TransXChange SchemaVersion="2.4"><Services>`),
			FileErrorXMLSyntax,
			[]string{"test.xml"},
		},
		{
			"wrong_root",
			[]byte(`<?xml version="1.0"?><Timetable SchemaVersion="2.4"/>`),
			FileErrorXMLSyntax,
			[]string{"test.xml"},
		},
		{
			"schema_version_missing",
			noVersion.XML(),
			FileErrorSchemaVersionMissing,
			[]string{"Valid values = 2.1 or 2.4"},
		},
		{
			"schema_version_not_supported",
			oldVersion.XML(),
			FileErrorSchemaVersionNotSupported,
			[]string{"Invalid schema version '2.0'"},
		},
		{
			"doctype",
			[]byte(`<?xml version="1.0"?><!DOCTYPE foo [<!ENTITY x "y">]><TransXChange SchemaVersion="2.4"/>`),
			FileErrorDangerousXML,
			[]string{"<!DOCTYPE"},
		},
		{
			"bad_run_time",
			badRunTime.XML(),
			FileErrorGeneric,
			[]string{"test.xml", "RunTime", "JPTL1"},
		},
		{
			"negative_run_time",
			negativeRunTime.XML(),
			FileErrorGeneric,
			[]string{"test.xml", "RunTime", "JPTL1", "negative"},
		},
		{
			"negative_wait_time",
			negativeWait.XML(),
			FileErrorGeneric,
			[]string{"test.xml", "To/WaitTime", "JPTL1", "negative"},
		},
		{
			"negative_journey_run_time",
			negativeOverride.XML(),
			FileErrorGeneric,
			[]string{"VJ1", "JPTL1", "negative"},
		},
		{
			"bad_departure_time",
			badDeparture.XML(),
			FileErrorGeneric,
			[]string{"DepartureTime", "VJ1"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractDocument("test.xml", tc.data, Options{})
			require.Error(t, err)

			var fe *FileError
			require.True(t, errors.As(err, &fe), "expected FileError, got %T", err)
			assert.Equal(t, tc.kind, fe.Kind)
			assert.Equal(t, "test.xml", fe.Filename)
			for _, s := range tc.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestExtractDocumentRejectExpired(t *testing.T) {
	data := testutil.SingleRouteDoc().XML()

	_, err := ExtractDocument("test.xml", data, Options{
		RejectExpired: true,
		Now:           time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.True(t, IsFileError(err, FileErrorDatasetExpired))
	assert.Contains(t, err.Error(), "PB0000001:1")

	_, err = ExtractDocument("test.xml", data, Options{
		RejectExpired: true,
		Now:           time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)

	// Only checked when asked to.
	_, err = ExtractDocument("test.xml", data, Options{
		Now: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
}

func TestExtractDocumentByteOrderMark(t *testing.T) {
	data := append([]byte{0xef, 0xbb, 0xbf}, testutil.SingleRouteDoc().XML()...)
	b, err := ExtractDocument("test.xml", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(b.Services))
}

func TestExtractDocumentCharsets(t *testing.T) {
	doc := func(encoding, name string) []byte {
		return []byte("<?xml version=\"1.0\" encoding=\"" + encoding + "\"?>" +
			"<TransXChange SchemaVersion=\"2.1\"><StopPoints><AnnotatedStopPointRef>" +
			"<StopPointRef>S1</StopPointRef><CommonName>" + name + "</CommonName>" +
			"</AnnotatedStopPointRef></StopPoints></TransXChange>")
	}

	for _, tc := range []struct {
		name     string
		data     []byte
		expected string
	}{
		{"latin1", doc("ISO-8859-1", "Caf\xe9"), "Café"},
		{"windows_1252", doc("windows-1252", "Caf\x80 Stop"), "Caf€ Stop"},
		{"windows_1252_quotes", doc("windows-1252", "\x93Bus\x94 \x96 Stop"), "“Bus” – Stop"},
		{"utf8", doc("UTF-8", "Café"), "Café"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b, err := ExtractDocument("test.xml", tc.data, Options{})
			require.NoError(t, err)
			require.Equal(t, 1, len(b.AnnotatedStops))
			assert.Equal(t, tc.expected, b.AnnotatedStops[0].CommonName)
		})
	}

	_, err := ExtractDocument("test.xml", doc("x-klingon", "Cafe"), Options{})
	assert.True(t, IsFileError(err, FileErrorXMLSyntax))
	assert.Contains(t, err.Error(), "x-klingon")
}

func TestExtractDocumentSynthesizedRouteLinkRef(t *testing.T) {
	doc := testutil.SingleRouteDoc()
	doc.Sections[0].Links[0].RouteLinkRef = ""

	b := extract(t, doc)
	require.Equal(t, 1, len(b.TimingLinks))
	assert.Equal(t, model.PairRouteLinkRef("0100BRP90310", "0100BRP90311"), b.TimingLinks[0].RouteLinkRef)

	// Stable across runs.
	assert.Equal(t, b.TimingLinks[0].RouteLinkRef, extract(t, doc).TimingLinks[0].RouteLinkRef)
}

func TestExtractDocumentLocationSystems(t *testing.T) {
	t.Run("inferred_grid", func(t *testing.T) {
		doc := testutil.SingleRouteDoc()
		doc.Stops = []testutil.Stop{{AtcoCode: "S1", Easting: "530268", Northing: "179640"}}
		b := extract(t, doc)
		require.Equal(t, 1, len(b.ProvisionalStops))
		require.NotNil(t, b.ProvisionalStops[0].Geometry)
		assert.InDelta(t, 51.50069, b.ProvisionalStops[0].Geometry.Lat, 0.0001)
		assert.InDelta(t, -0.12463, b.ProvisionalStops[0].Geometry.Lon, 0.0001)
	})

	t.Run("inferred_wgs84", func(t *testing.T) {
		doc := testutil.SingleRouteDoc()
		doc.Stops = []testutil.Stop{{AtcoCode: "S1", Lon: "-0.1", Lat: "51.5"}}
		b := extract(t, doc)
		assert.Equal(t, &model.Point{Lon: -0.1, Lat: 51.5}, b.ProvisionalStops[0].Geometry)
	})

	t.Run("explicit_grid_without_coordinates", func(t *testing.T) {
		doc := testutil.SingleRouteDoc()
		doc.LocationSystem = "Grid"
		doc.Stops = []testutil.Stop{{AtcoCode: "S1", Lon: "-0.1", Lat: "51.5"}}
		b := extract(t, doc)
		assert.Nil(t, b.ProvisionalStops[0].Geometry)
	})

	t.Run("annotated", func(t *testing.T) {
		doc := testutil.SingleRouteDoc()
		doc.Stops = []testutil.Stop{{AtcoCode: "S1", Name: "High St"}}
		b := extract(t, doc)
		assert.Equal(t, 0, len(b.ProvisionalStops))
		require.Equal(t, 1, len(b.AnnotatedStops))
		assert.Equal(t, &model.AnnotatedStop{FileID: b.Files[0].ID, AtcoCode: "S1", CommonName: "High St"}, b.AnnotatedStops[0])
	})
}

func TestExtractDocumentJourneyPatternIDsQualifiedByService(t *testing.T) {
	doc := testutil.SingleRouteDoc()
	doc.Services = append(doc.Services, testutil.Service{
		Code:     "PB0000002:1",
		Lines:    []string{"2"},
		Patterns: []testutil.Pattern{{ID: "JP1", Sections: []string{"JPS1"}}},
	})

	b := extract(t, doc)
	require.Equal(t, 2, len(b.JourneyPatterns))
	assert.Equal(t, "PB0000001:1-JP1", b.JourneyPatterns[0].ID)
	assert.Equal(t, "PB0000002:1-JP1", b.JourneyPatterns[1].ID)
	assert.Equal(t, 2, b.LineCount)
	assert.Equal(t, []string{"1A", "2"}, b.LineNames)
}

func TestExtractDocumentVehicleJourneys(t *testing.T) {
	doc := testutil.SingleRouteDoc()
	doc.VehicleJourneys = []testutil.VehicleJourney{
		{
			Code: "VJ1", Service: "PB0000001:1", Pattern: "JP1",
			Departure: "23:50:00", DayShift: "1", Block: "B7",
			RunTimes: map[string]string{"JPTL1": "PT7M"},
		},
		{
			Code: "VJ2", Ref: "VJ1", Service: "PB0000001:1",
			Departure: "09:00:00",
		},
	}

	b := extract(t, doc)
	require.Equal(t, 2, len(b.VehicleJourneys))

	vj1 := b.VehicleJourneys[0]
	assert.Equal(t, 23*time.Hour+50*time.Minute, vj1.DepartureTime)
	assert.Equal(t, 1, vj1.DepartureDayShift)
	assert.Equal(t, "B7", vj1.BlockNumber)
	assert.Equal(t, map[string]time.Duration{"JPTL1": 7 * time.Minute}, vj1.RunTimeOverrides)

	vj2 := b.VehicleJourneys[1]
	assert.Equal(t, "PB0000001:1-JP1", vj2.JourneyPatternID)
	assert.Equal(t, map[string]time.Duration{}, vj2.RunTimeOverrides)
}

func TestExtractDocumentOperatingProfiles(t *testing.T) {
	doc := testutil.SingleRouteDoc()
	doc.ServicedOrganisations = []testutil.ServicedOrganisation{{
		Code: "SCH1", Name: "Bristol Grammar",
		WorkingDays: [][2]string{{"2020-09-01", "2020-10-23"}, {"2020-11-02", "2020-12-18"}},
	}}
	doc.Services[0].Profile = `<OperatingProfile><RegularDayType><DaysOfWeek><Weekend/></DaysOfWeek></RegularDayType></OperatingProfile>`
	doc.VehicleJourneys = []testutil.VehicleJourney{
		{
			Code: "VJ1", Service: "PB0000001:1", Pattern: "JP1",
			Profile: `<OperatingProfile>
<RegularDayType><DaysOfWeek><MondayToFriday/><NotWednesday/></DaysOfWeek></RegularDayType>
<SpecialDaysOperation>
<DaysOfOperation><DateRange><StartDate>2020-12-26</StartDate><EndDate>2020-12-28</EndDate></DateRange></DaysOfOperation>
<DaysOfNonOperation><DateRange><StartDate>2020-12-25</StartDate></DateRange></DaysOfNonOperation>
</SpecialDaysOperation>
<ServicedOrganisationDayType>
<DaysOfOperation><WorkingDays><ServicedOrganisationRef>SCH1</ServicedOrganisationRef></WorkingDays></DaysOfOperation>
<DaysOfNonOperation><Holidays><ServicedOrganisationRef>SCH1</ServicedOrganisationRef></Holidays></DaysOfNonOperation>
</ServicedOrganisationDayType>
</OperatingProfile>`,
		},
		{Code: "VJ2", Service: "PB0000001:1", Pattern: "JP1"},
	}

	b := extract(t, doc)

	require.Equal(t, 1, len(b.ServicedOrganisations))
	so := b.ServicedOrganisations[0]
	assert.Equal(t, "SCH1", so.Code)
	assert.Equal(t, "Bristol Grammar", so.Name)
	assert.Equal(t, []model.DateRange{
		{Start: time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2020, 10, 23, 0, 0, 0, 0, time.UTC)},
		{Start: time.Date(2020, 11, 2, 0, 0, 0, 0, time.UTC), End: time.Date(2020, 12, 18, 0, 0, 0, 0, time.UTC)},
	}, so.WorkingDays)

	require.Equal(t, 2, len(b.VehicleJourneys))

	p := b.VehicleJourneys[0].Profile
	require.NotNil(t, p)
	// MondayToFriday and NotWednesday are unioned.
	assert.Equal(t, []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
	}, p.DaysOfWeek)
	assert.Equal(t, []time.Time{
		time.Date(2020, 12, 26, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC),
	}, p.OperatingDates)
	assert.Equal(t, []time.Time{time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC)}, p.NonOperatingDates)
	assert.Equal(t, []model.ServicedOrganisationDay{
		{OrganisationCode: "SCH1", Operational: true, WorkingDays: true},
		{OrganisationCode: "SCH1", Operational: false, WorkingDays: false},
	}, p.ServicedOrganisations)
	assert.True(t, p.ServicedOrganisations[0].OperatingOnWorkingDays())
	assert.True(t, p.ServicedOrganisations[1].OperatingOnWorkingDays())

	// Without its own profile a journey runs to the service's.
	p2 := b.VehicleJourneys[1].Profile
	require.NotNil(t, p2)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, p2.DaysOfWeek)
}

func TestParseDaysOfWeek(t *testing.T) {
	for _, tc := range []struct {
		names    []string
		expected []time.Weekday
	}{
		{[]string{}, []time.Weekday{}},
		{[]string{"Sunday", "Monday"}, []time.Weekday{time.Monday, time.Sunday}},
		{[]string{"MondayToSaturday"}, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}},
		{[]string{"NotSaturday"}, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Sunday}},
		{[]string{"Weekend", "Saturday"}, []time.Weekday{time.Saturday, time.Sunday}},
		{[]string{"Someday"}, []time.Weekday{}},
	} {
		assert.Equal(t, tc.expected, parseDaysOfWeek(tc.names), "%v", tc.names)
	}
}

func TestExtractDocumentFlexibleService(t *testing.T) {
	doc := testutil.Doc{
		Stops: []testutil.Stop{
			{AtcoCode: "F1", Lon: "-1.0", Lat: "52.0"},
			{AtcoCode: "F2", Lon: "-1.1", Lat: "52.1"},
			{AtcoCode: "F3", Lon: "-1.2", Lat: "52.2"},
			{AtcoCode: "Z1", Lon: "-1.3", Lat: "52.3"},
		},
		Services: []testutil.Service{{
			Code:  "FLEX1",
			Lines: []string{"Flexi"},
			FlexiblePatterns: []testutil.FlexiblePattern{{
				ID: "FJP1",
				Usages: []testutil.Usage{
					{Stop: "F1", Fixed: true},
					{Stop: "F2", Activity: "pickUp"},
					{Stop: "F3", Fixed: true, Activity: "setDown"},
				},
				Zones: []testutil.Usage{{Stop: "Z1"}, {Stop: "F2"}},
				Booking: &testutil.Booking{
					Description: "Call ahead", Phone: "0117 000 0000",
					Email: "book@example.com", WebAddress: "https://example.com",
				},
			}},
		}},
		VehicleJourneys: []testutil.VehicleJourney{{
			Flexible: true, Code: "FVJ1", Service: "FLEX1", Pattern: "FJP1",
			Periods: [][2]string{{"07:00:00", "19:00:00"}},
		}},
	}

	b := extract(t, doc)

	require.Equal(t, 1, len(b.Services))
	assert.Equal(t, model.ServiceTypeFlexible, b.Services[0].Type)

	require.Equal(t, 1, len(b.JourneyPatterns))
	jp := b.JourneyPatterns[0]
	assert.True(t, jp.Flexible)
	assert.Equal(t, "FLEX1-FJP1", jp.ID)
	assert.Equal(t, []string{FlexibleSectionID("FLEX1-FJP1")}, jp.SectionRefs)

	// F2 repeats in the zone and is only used once.
	stops := []string{}
	types := []model.BusStopType{}
	for _, u := range b.FlexibleStopUsages {
		stops = append(stops, u.AtcoCode)
		types = append(types, u.Type)
	}
	assert.Equal(t, []string{"F1", "F2", "F3", "Z1"}, stops)
	assert.Equal(t, []model.BusStopType{
		model.BusStopTypeFixedFlexible,
		model.BusStopTypeFlexible,
		model.BusStopTypeFixedFlexible,
		model.BusStopTypeFlexible,
	}, types)
	assert.Equal(t, model.ActivityPickUp, b.FlexibleStopUsages[1].Activity)
	assert.Equal(t, model.ActivitySetDown, b.FlexibleStopUsages[2].Activity)

	require.Equal(t, 3, len(b.TimingLinks))
	pairs := [][2]string{}
	for i, l := range b.TimingLinks {
		assert.Equal(t, i, l.Order)
		assert.Equal(t, model.PairRouteLinkRef(l.FromStop, l.ToStop), l.RouteLinkRef)
		assert.Equal(t, time.Duration(0), l.RunTime)
		pairs = append(pairs, [2]string{l.FromStop, l.ToStop})
	}
	assert.Equal(t, [][2]string{{"F1", "F2"}, {"F2", "F3"}, {"F3", "Z1"}}, pairs)

	require.Equal(t, 1, len(b.BookingArrangements))
	assert.Equal(t, &model.BookingArrangement{
		FileID:      b.Files[0].ID,
		ServiceCode: "FLEX1",
		Description: "Call ahead",
		Phone:       "0117 000 0000",
		Email:       "book@example.com",
		WebAddress:  "https://example.com",
	}, b.BookingArrangements[0])

	require.Equal(t, 1, len(b.VehicleJourneys))
	vj := b.VehicleJourneys[0]
	assert.True(t, vj.Flexible)
	assert.Equal(t, "FLEX1-FJP1", vj.JourneyPatternID)
	assert.Equal(t, []model.TimeWindow{{Start: 7 * time.Hour, End: 19 * time.Hour}}, vj.FlexiblePeriods)
}

func TestFlexibleTimingLinks(t *testing.T) {
	assert.Equal(t, []*model.TimingLink{}, FlexibleTimingLinks("f", "s", nil))
	assert.Equal(t, []*model.TimingLink{}, FlexibleTimingLinks("f", "s", []*model.FlexibleStopUsage{{AtcoCode: "A"}}))

	links := FlexibleTimingLinks("f", "s", []*model.FlexibleStopUsage{
		{AtcoCode: "A"}, {AtcoCode: "B", Activity: model.ActivitySetDown},
	})
	require.Equal(t, 1, len(links))
	assert.Equal(t, "A", links[0].FromStop)
	assert.Equal(t, "B", links[0].ToStop)
	assert.Equal(t, model.ActivitySetDown, links[0].ToActivity)
}

func TestFileIDDeterministic(t *testing.T) {
	a := FileID("a.xml", []byte("content"))
	assert.Equal(t, a, FileID("a.xml", []byte("content")))
	assert.NotEqual(t, a, FileID("b.xml", []byte("content")))
	assert.NotEqual(t, a, FileID("a.xml", []byte("other")))
}
