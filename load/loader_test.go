package load_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/txc/load"
	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
	"tidbyt.dev/txc/storage"
	"tidbyt.dev/txc/testutil"
	"tidbyt.dev/txc/transform"
)

func seedReference(t *testing.T, s storage.Storage) {
	require.NoError(t, s.WriteLocalities([]*model.Locality{
		{ID: "E0035604", Name: "Bristol", AdminAreaID: "009"},
	}))
	require.NoError(t, s.WriteAdminAreas([]*model.AdminArea{
		{ID: "009", Name: "Bristol City"},
	}))
}

func transformDoc(t *testing.T, s storage.Storage, doc testutil.Doc) *transform.Result {
	b, err := parse.ExtractDocument("test.xml", doc.XML(), parse.Options{})
	require.NoError(t, err)
	ref, err := transform.ReadReference(s, b)
	require.NoError(t, err)
	return transform.Transform(b, ref)
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s storage.Storage)) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			s := testutil.BuildStorage(t, backend)
			defer s.Close()
			seedReference(t, s)
			fn(t, s)
		})
	}
}

func TestLoadSingleRoute(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		revID, err := s.CreateRevision("draft", "FirstBus")
		require.NoError(t, err)

		res := transformDoc(t, s, testutil.SingleRouteDoc())
		links := map[model.StopPair]int64{}
		loader := &load.Loader{Store: s}
		report, err := loader.Load(revID, res, links)
		require.NoError(t, err)

		assert.Equal(t, "FirstBus_Bristol_1A_20200201", report.Name)
		assert.Equal(t, 1, report.LineCount)
		assert.Equal(t, []string{"1A"}, report.LineNames)
		assert.Equal(t, 2, report.StopCount)
		assert.Equal(t, 2, report.TimingPointCount)
		assert.Equal(t, "2.4", report.SchemaVersion)
		assert.Equal(t, []string{"Bristol", "unknown"}, report.MostCommonLocalities)
		require.NotNil(t, report.BoundingBox)

		rev, err := s.GetRevision(revID)
		require.NoError(t, err)
		assert.Equal(t, "FirstBus_Bristol_1A_20200201", rev.Name)
		assert.Equal(t, 1, rev.Report.LineCount)
		assert.True(t, report.FirstServiceStart.Equal(rev.Report.FirstServiceStart))
		assert.True(t, report.FirstExpiringService.Equal(rev.Report.FirstExpiringService))

		counts, err := s.RevisionCounts(revID)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[storage.TableService])
		assert.Equal(t, 1, counts[storage.TableServicePattern])
		assert.Equal(t, 1, counts[storage.TableServicePatternServiceLink])
		assert.Equal(t, 1, counts[storage.TableServiceServicePattern])
		assert.Equal(t, 1, counts[storage.TableServicePatternLocality])
		assert.Equal(t, 1, counts[storage.TableServicePatternAdminArea])
		assert.Equal(t, 1, counts[storage.TableVehicleJourney])
		assert.Equal(t, 4, counts[storage.TableServicePatternStop])

		patterns, err := s.ListServicePatterns(revID)
		require.NoError(t, err)
		require.Equal(t, 1, len(patterns))
		sp := patterns[0]
		assert.Equal(t, res.ServicePatterns[0].Key, sp.Key)
		assert.Equal(t, []string{"E0035604"}, sp.LocalityIDs)
		assert.Equal(t, []string{"009"}, sp.AdminAreaIDs)
		assert.Equal(t, []model.StopPair{{From: "0100BRP90310", To: "0100BRP90311"}}, sp.ServiceLinks)
		assert.Equal(t, 2, len(sp.Geometry))

		stops, err := s.ListServicePatternStops(sp.ID, 0)
		require.NoError(t, err)
		require.Equal(t, 2, len(stops))
		assert.Equal(t, "00:00:00", stops[0].DepartureTime)
		assert.Equal(t, "00:06:00", stops[1].DepartureTime)

		journeys, err := s.ListVehicleJourneys(revID)
		require.NoError(t, err)
		require.Equal(t, 1, len(journeys))
		assert.Equal(t, "VJ1", journeys[0].Code)
		assert.Equal(t, "08:00:00", journeys[0].DepartureTime)
		assert.Equal(t, sp.ID, journeys[0].ServicePatternID)

		stops, err = s.ListServicePatternStops(sp.ID, journeys[0].ID)
		require.NoError(t, err)
		require.Equal(t, 2, len(stops))
		assert.Equal(t, "08:00:00", stops[0].DepartureTime)
		assert.Equal(t, "08:06:00", stops[1].DepartureTime)

		// New links are handed back for the next run.
		require.Equal(t, 1, len(links))
		linkID := links[model.StopPair{From: "0100BRP90310", To: "0100BRP90311"}]
		assert.NotZero(t, linkID)
		stored, err := s.ServiceLinks([]model.StopPair{{From: "0100BRP90310", To: "0100BRP90311"}})
		require.NoError(t, err)
		require.Equal(t, 1, len(stored))
		assert.Equal(t, linkID, stored[0].ID)
	})
}

func TestLoadZeroLines(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		revID, err := s.CreateRevision("draft", "FirstBus")
		require.NoError(t, err)

		loader := &load.Loader{Store: s}
		_, err = loader.Load(revID, transformDoc(t, s, testutil.SingleRouteDoc()), map[model.StopPair]int64{})
		require.NoError(t, err)

		res := transform.Transform(&parse.Bundle{}, transform.Reference{})
		_, err = loader.Load(revID, res, map[model.StopPair]int64{})
		assert.True(t, errors.Is(err, load.ErrNoResultsLoaded))
		assert.Equal(t, "No results were loaded", err.Error())

		// The previous load is untouched.
		rev, err := s.GetRevision(revID)
		require.NoError(t, err)
		assert.Equal(t, "FirstBus_Bristol_1A_20200201", rev.Name)
		counts, err := s.RevisionCounts(revID)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[storage.TableService])
		assert.Equal(t, 4, counts[storage.TableServicePatternStop])
	})
}

func TestLoadZeroLinesUnknownRevision(t *testing.T) {
	// The line check comes before anything touches the store.
	loader := &load.Loader{Store: storage.NewMemoryStorage()}
	_, err := loader.Load(999, &transform.Result{Bundle: &parse.Bundle{}}, nil)
	assert.ErrorIs(t, err, load.ErrNoResultsLoaded)
}

func TestLoadReplacesPreviousLoad(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		revID, err := s.CreateRevision("draft", "FirstBus")
		require.NoError(t, err)

		loader := &load.Loader{Store: s, BatchSize: 1}
		links := map[model.StopPair]int64{}
		for i := 0; i < 2; i++ {
			report, err := loader.Load(revID, transformDoc(t, s, testutil.FlexibleDoc()), links)
			require.NoError(t, err)
			// Reloading doesn't collide with the revision's own name.
			assert.Equal(t, "FirstBus_unknown_Bristol_20200101", report.Name)
		}

		counts, err := s.RevisionCounts(revID)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[storage.TableService])
		assert.Equal(t, 2, counts[storage.TableServicePattern])
		assert.Equal(t, 3, counts[storage.TableServicePatternServiceLink])
		assert.Equal(t, 2, counts[storage.TableServiceServicePattern])
		assert.Equal(t, 2, counts[storage.TableVehicleJourney])
		assert.Equal(t, 1, counts[storage.TableFlexibleOperationPeriod])
		assert.Equal(t, 1, counts[storage.TableBookingArrangement])
		// Two standard pattern rows, three flexible and two for the
		// timed journey.
		assert.Equal(t, 7, counts[storage.TableServicePatternStop])
		assert.Equal(t, 3, len(links))

		journeys, err := s.ListVehicleJourneys(revID)
		require.NoError(t, err)
		require.Equal(t, 2, len(journeys))
		assert.Equal(t, "FVJ1", journeys[1].Code)
		assert.True(t, journeys[1].Flexible)
		assert.Equal(t, "", journeys[1].DepartureTime)
		assert.NotZero(t, journeys[1].ServicePatternID)

		flexStops, err := s.ListServicePatternStops(journeys[1].ServicePatternID, 0)
		require.NoError(t, err)
		require.Equal(t, 3, len(flexStops))
		assert.Equal(t, model.BusStopTypeFixedFlexible, flexStops[0].BusStopType)
		assert.Equal(t, model.BusStopTypeFlexible, flexStops[1].BusStopType)
		assert.Equal(t, "", flexStops[1].DepartureTime)
		assert.False(t, flexStops[1].IsTimingPoint)
	})
}

func TestLoadCalendars(t *testing.T) {
	doc := testutil.SingleRouteDoc()
	doc.ServicedOrganisations = []testutil.ServicedOrganisation{{
		Code: "SCH1", Name: "Bristol Grammar",
		WorkingDays: [][2]string{{"2020-09-01", "2020-10-23"}, {"2020-11-02", "2020-12-18"}},
	}}
	doc.VehicleJourneys = []testutil.VehicleJourney{
		{
			Code: "VJ1", Service: "PB0000001:1", Pattern: "JP1",
			Profile: `<OperatingProfile>
<RegularDayType><DaysOfWeek><Monday/><Tuesday/></DaysOfWeek></RegularDayType>
<SpecialDaysOperation>
<DaysOfOperation><DateRange><StartDate>2020-12-26</StartDate><EndDate>2020-12-28</EndDate></DateRange></DaysOfOperation>
<DaysOfNonOperation><DateRange><StartDate>2020-12-25</StartDate></DateRange></DaysOfNonOperation>
</SpecialDaysOperation>
<ServicedOrganisationDayType>
<DaysOfOperation><WorkingDays><ServicedOrganisationRef>SCH1</ServicedOrganisationRef></WorkingDays></DaysOfOperation>
<DaysOfNonOperation><Holidays><ServicedOrganisationRef>NOPE</ServicedOrganisationRef></Holidays></DaysOfNonOperation>
</ServicedOrganisationDayType>
</OperatingProfile>`,
		},
		{
			Code: "VJ2", Service: "PB0000001:1", Pattern: "JP1", Departure: "09:00:00",
			Profile: `<OperatingProfile><RegularDayType><HolidaysOnly/></RegularDayType></OperatingProfile>`,
		},
	}

	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		revID, err := s.CreateRevision("draft", "FirstBus")
		require.NoError(t, err)

		loader := &load.Loader{Store: s}
		_, err = loader.Load(revID, transformDoc(t, s, doc), map[model.StopPair]int64{})
		require.NoError(t, err)

		counts, err := s.RevisionCounts(revID)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[storage.TableVehicleJourney])
		assert.Equal(t, 3, counts[storage.TableOperatingProfile])
		assert.Equal(t, 4, counts[storage.TableDateException])
		assert.Equal(t, 1, counts[storage.TableServicedOrganisation])
		// The unknown organisation is skipped.
		assert.Equal(t, 1, counts[storage.TableServicedOrganisationVehicleJourney])
		assert.Equal(t, 2, counts[storage.TableServicedOrganisationWorkingDays])
		// One pattern level sequence, one per journey.
		assert.Equal(t, 6, counts[storage.TableServicePatternStop])
	})
}

func TestLoadNameCollisions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		loader := &load.Loader{Store: s}

		names := []string{}
		for i := 0; i < 3; i++ {
			revID, err := s.CreateRevision(fmt.Sprintf("draft%d", i), "FirstBus")
			require.NoError(t, err)
			report, err := loader.Load(revID, transformDoc(t, s, testutil.SingleRouteDoc()), map[model.StopPair]int64{})
			require.NoError(t, err)
			names = append(names, report.Name)
		}

		assert.Equal(t, []string{
			"FirstBus_Bristol_1A_20200201",
			"FirstBus_Bristol_1A_20200201_1",
			"FirstBus_Bristol_1A_20200201_2",
		}, names)
	})
}

func TestLoadUnknownRevision(t *testing.T) {
	s := storage.NewMemoryStorage()
	loader := &load.Loader{Store: s}

	b, err := parse.ExtractDocument("test.xml", testutil.SingleRouteDoc().XML(), parse.Options{})
	require.NoError(t, err)
	_, err = loader.Load(42, transform.Transform(b, transform.Reference{}), map[model.StopPair]int64{})
	assert.ErrorIs(t, err, storage.ErrRevisionNotFound)
}

func TestLoadIgnoresNoExpiryServices(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		revID, err := s.CreateRevision("draft", "FirstBus")
		require.NoError(t, err)

		doc := testutil.SingleRouteDoc()
		open := doc.Services[0]
		open.Code = "PB0000002:1"
		open.Lines = []string{"2"}
		open.End = "9999-09-09"
		doc.Services = append(doc.Services, open)

		loader := &load.Loader{Store: s}
		report, err := loader.Load(revID, transformDoc(t, s, doc), map[model.StopPair]int64{})
		require.NoError(t, err)

		expiry := time.Date(2020, 12, 31, 23, 59, 0, 0, time.UTC)
		assert.True(t, expiry.Equal(report.FirstExpiringService), report.FirstExpiringService)
		assert.True(t, expiry.Equal(report.LastExpiringService), report.LastExpiringService)

		rev, err := s.GetRevision(revID)
		require.NoError(t, err)
		assert.Equal(t, 2020, rev.Report.LastExpiringService.Year())
	})
}
