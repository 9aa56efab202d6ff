package transform

import (
	"sort"
	"time"

	"tidbyt.dev/txc/geo"
	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
)

// Offsets returns the elapsed time from the origin at each stop along
// a chain of links: zero at the first stop, then the running sum of
// run and wait times. A run time override for a link, keyed by link
// id, replaces the link's own run time.
func Offsets(links []*model.TimingLink, overrides map[string]time.Duration) []time.Duration {
	offsets := make([]time.Duration, len(links)+1)
	for i, l := range links {
		run := l.RunTime
		if d, ok := overrides[l.ID]; ok {
			run = d
		}
		offsets[i+1] = offsets[i] + run + l.WaitTime
	}
	return offsets
}

// A stop visited along a link chain, with what the links say about
// it.
type visit struct {
	atcoCode     string
	activity     model.StopActivity
	timingStatus string
}

// Stops along a link chain: the first link's origin, then each
// link's destination.
func visits(links []*model.TimingLink) []visit {
	if len(links) == 0 {
		return nil
	}
	out := make([]visit, 0, len(links)+1)
	out = append(out, visit{links[0].FromStop, links[0].FromActivity, links[0].FromTimingStatus})
	for _, l := range links {
		out = append(out, visit{l.ToStop, l.ToActivity, l.ToTimingStatus})
	}
	return out
}

type usageKey struct {
	fileID    string
	patternID string
	atcoCode  string
}

func indexUsages(b *parse.Bundle) map[usageKey]*model.FlexibleStopUsage {
	usages := map[usageKey]*model.FlexibleStopUsage{}
	for _, u := range b.FlexibleStopUsages {
		usages[usageKey{u.FileID, u.JourneyPatternID, u.AtcoCode}] = u
	}
	return usages
}

// Orders journeys by departure, day shift first. Ties go to the
// journey key so the choice is stable.
func journeyLess(a, b *model.VehicleJourney) bool {
	if a.DepartureDayShift != b.DepartureDayShift {
		return a.DepartureDayShift < b.DepartureDayShift
	}
	if a.DepartureTime != b.DepartureTime {
		return a.DepartureTime < b.DepartureTime
	}
	return a.Key() < b.Key()
}

func sortJourneys(journeys []*model.VehicleJourney) {
	sort.Slice(journeys, func(i, j int) bool {
		return journeyLess(journeys[i], journeys[j])
	})
}

// Builds the stop rows of a service pattern. Journey is the journey
// whose run time overrides apply, and may be nil. For the pattern
// level sequence departure times are the offsets themselves,
// otherwise they're the journey's departure plus the offset.
func (t *transformer) stopRows(
	sp *model.ServicePattern,
	rep *resolvedPattern,
	journey *model.VehicleJourney,
	perJourney bool,
) []*model.ServicePatternStop {
	var overrides map[string]time.Duration
	if journey != nil {
		overrides = journey.RunTimeOverrides
	}
	offsets := Offsets(rep.links, overrides)

	rows := []*model.ServicePatternStop{}
	for i, v := range visits(rep.links) {
		row := &model.ServicePatternStop{
			ServicePatternKey: sp.Key,
			Sequence:          i,
			AtcoCode:          v.atcoCode,
			Activity:          v.activity,
		}
		if perJourney {
			row.VehicleJourneyKey = journey.Key()
		}

		if stop, ok := t.stops[v.atcoCode]; ok {
			row.NaptanID = stop.NaptanID
			row.CommonName = stop.CommonName
			row.Geometry = stop.Geometry
			row.LocalityID = stop.LocalityID
			row.AdminAreaID = stop.AdminAreaID
		}

		if sp.Flexible {
			row.BusStopType = model.BusStopTypeFlexible
			if u, ok := t.usages[usageKey{rep.pattern.FileID, rep.pattern.ID, v.atcoCode}]; ok {
				row.BusStopType = u.Type
			}
		} else {
			row.Offset = offsets[i]
			row.IsTimingPoint = parse.IsPrincipalTimingPoint(v.timingStatus)
			departure := offsets[i]
			if perJourney {
				departure += journey.DepartureTime
			}
			row.DepartureTime = parse.FormatClock(departure)
		}

		rows = append(rows, row)
	}

	return rows
}

// Fills in a service pattern's geometry and the localities and admin
// areas it passes through, in the order first visited.
func rollup(sp *model.ServicePattern, rows []*model.ServicePatternStop) {
	points := make([]*model.Point, 0, len(rows))
	localities := []string{}
	areas := []string{}
	seenLocality := map[string]bool{}
	seenArea := map[string]bool{}

	for _, row := range rows {
		points = append(points, row.Geometry)
		if row.LocalityID != "" && !seenLocality[row.LocalityID] {
			seenLocality[row.LocalityID] = true
			localities = append(localities, row.LocalityID)
		}
		if row.AdminAreaID != "" && !seenArea[row.AdminAreaID] {
			seenArea[row.AdminAreaID] = true
			areas = append(areas, row.AdminAreaID)
		}
	}

	sp.Geometry = geo.Line(points)
	sp.Polyline = geo.EncodePolyline(sp.Geometry)
	sp.LengthKm = geo.PathLength(sp.Geometry)
	sp.LocalityIDs = localities
	sp.AdminAreaIDs = areas
}
