package transform

import (
	"tidbyt.dev/txc/geo"
	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
)

// Result is the transformed form of a bundle, ready to be loaded.
type Result struct {
	Bundle *parse.Bundle

	// Reconciled stops, one per referenced code, sorted by code.
	Stops []*model.StopReference

	RouteLinks    []*model.RouteLink
	SectionHashes map[SectionKey]string
	// Route hash by journey pattern key. Patterns without a route
	// identity are absent.
	RouteHashes map[string]string

	ServicePatterns        []*model.ServicePattern
	PatternStops           []*model.ServicePatternStop
	JourneyStops           []*model.ServicePatternStop
	ServiceServicePatterns []*model.ServiceServicePattern
	ServiceLinks           []model.StopPair

	MostCommonLocalities []string
	MostCommonAdminAreas []string
	BoundingBox          *model.BoundingBox
}

type transformer struct {
	stops         map[string]*model.StopReference
	usages        map[usageKey]*model.FlexibleStopUsage
	services      map[string]*model.Service
	journeys      map[string][]*model.VehicleJourney
	sections      map[SectionKey][]*model.TimingLink
	sectionHashes map[SectionKey]string
	routeHashes   map[string]string
}

// Transform derives service patterns, their stop sequences and the
// associated rollups from an extracted bundle. The reference is only
// read. Vehicle journeys in the bundle get their ServicePatternKey
// set.
//
// Standard and flexible journey patterns go through the same
// derivation, separately, and the flexible results are merged into
// the standard ones.
func Transform(b *parse.Bundle, ref Reference) *Result {
	t := &transformer{
		stops:         reconcileStops(b, ref),
		usages:        indexUsages(b),
		services:      map[string]*model.Service{},
		journeys:      map[string][]*model.VehicleJourney{},
		sections:      sectionLinks(b),
		sectionHashes: map[SectionKey]string{},
		routeHashes:   map[string]string{},
	}
	for _, s := range b.Services {
		t.services[s.Key()] = s
	}
	for _, vj := range b.VehicleJourneys {
		key := vj.FileID + "/" + vj.JourneyPatternID
		t.journeys[key] = append(t.journeys[key], vj)
	}
	for _, journeys := range t.journeys {
		sortJourneys(journeys)
	}
	for key, links := range t.sections {
		t.sectionHashes[key] = SectionHash(links)
	}

	standard := []*model.JourneyPattern{}
	flexible := []*model.JourneyPattern{}
	for _, jp := range b.JourneyPatterns {
		if jp.Flexible {
			flexible = append(flexible, jp)
		} else {
			standard = append(standard, jp)
		}
	}

	r := &Result{
		Bundle:        b,
		SectionHashes: t.sectionHashes,
		RouteHashes:   t.routeHashes,
	}
	r.merge(t.derive(standard))
	r.merge(t.derive(flexible))

	r.RouteLinks = buildRouteLinks(b)
	r.ServiceLinks = distinctPairs(r.RouteLinks)

	points := []*model.Point{}
	localityNames := []string{}
	areaNames := []string{}
	for _, code := range ReferencedStops(b) {
		stop := t.stops[code]
		r.Stops = append(r.Stops, stop)
		points = append(points, stop.Geometry)
		localityNames = append(localityNames, stop.LocalityName)
		areaNames = append(areaNames, stop.AdminAreaName)
	}
	r.BoundingBox = geo.Bounds(points)
	r.MostCommonLocalities = MostCommonNames(localityNames)
	r.MostCommonAdminAreas = MostCommonNames(areaNames)

	return r
}

// Service patterns derived from one set of journey patterns.
type derived struct {
	patterns       []*model.ServicePattern
	patternStops   []*model.ServicePatternStop
	journeyStops   []*model.ServicePatternStop
	servicePattern []*model.ServiceServicePattern
}

// Adds derived service patterns, skipping any whose key is already
// present.
func (r *Result) merge(d *derived) {
	existing := map[string]bool{}
	for _, sp := range r.ServicePatterns {
		existing[sp.Key] = true
	}
	for _, sp := range d.patterns {
		if !existing[sp.Key] {
			r.ServicePatterns = append(r.ServicePatterns, sp)
		}
	}
	for _, row := range d.patternStops {
		if !existing[row.ServicePatternKey] {
			r.PatternStops = append(r.PatternStops, row)
		}
	}
	for _, row := range d.journeyStops {
		if !existing[row.ServicePatternKey] {
			r.JourneyStops = append(r.JourneyStops, row)
		}
	}
	for _, ssp := range d.servicePattern {
		if !existing[ssp.ServicePatternKey] {
			r.ServiceServicePatterns = append(r.ServiceServicePatterns, ssp)
		}
	}
}

type memberJourney struct {
	member  *resolvedPattern
	journey *model.VehicleJourney
}

func (t *transformer) derive(patterns []*model.JourneyPattern) *derived {
	d := &derived{}

	resolved := resolvePatterns(patterns, t.sections, t.sectionHashes)
	for _, rp := range resolved {
		t.routeHashes[rp.pattern.Key()] = rp.routeHash
	}

	for _, g := range groupPatterns(resolved) {
		rep := g.representative()
		sp := t.servicePattern(g.key, rep)

		journeys := []memberJourney{}
		for _, m := range g.members {
			for _, vj := range t.journeys[m.pattern.Key()] {
				vj.ServicePatternKey = sp.Key
				journeys = append(journeys, memberJourney{m, vj})
			}
		}

		// The pattern level sequence is timed like the earliest
		// departing journey, over that journey's own links.
		var earliest *memberJourney
		for i := range journeys {
			mj := &journeys[i]
			if mj.journey.Flexible {
				continue
			}
			if earliest == nil || journeyLess(mj.journey, earliest.journey) {
				earliest = mj
			}
		}
		var rows []*model.ServicePatternStop
		if earliest != nil {
			rows = t.stopRows(sp, earliest.member, earliest.journey, false)
		} else {
			rows = t.stopRows(sp, rep, nil, false)
		}
		rollup(sp, rows)
		d.patternStops = append(d.patternStops, rows...)

		if !sp.Flexible {
			for _, mj := range journeys {
				if !mj.journey.Flexible {
					d.journeyStops = append(d.journeyStops, t.stopRows(sp, mj.member, mj.journey, true)...)
				}
			}
		}

		seen := map[string]bool{}
		for _, m := range g.members {
			serviceKey := m.pattern.FileID + "/" + m.pattern.ServiceCode
			if seen[serviceKey] {
				continue
			}
			seen[serviceKey] = true
			d.servicePattern = append(d.servicePattern, &model.ServiceServicePattern{
				ServiceKey:        serviceKey,
				ServicePatternKey: sp.Key,
			})
		}

		d.patterns = append(d.patterns, sp)
	}

	return d
}

func (t *transformer) servicePattern(key string, rep *resolvedPattern) *model.ServicePattern {
	jp := rep.pattern
	sp := &model.ServicePattern{
		Key:              key,
		ServiceCode:      jp.ServiceCode,
		RouteHash:        rep.routeHash,
		FileID:           jp.FileID,
		JourneyPatternID: jp.ID,
		Direction:        jp.Direction,
		Flexible:         jp.Flexible,
	}

	for _, l := range rep.links {
		sp.ServiceLinks = append(sp.ServiceLinks, model.StopPair{From: l.FromStop, To: l.ToStop})
	}

	if svc, ok := t.services[jp.FileID+"/"+jp.ServiceCode]; ok {
		sp.Origin = svc.Origin
		sp.Destination = svc.Destination
		sp.Description = svc.Description
		if len(svc.LineNames) > 0 {
			sp.LineName = svc.LineNames[0]
		}
	}

	return sp
}
