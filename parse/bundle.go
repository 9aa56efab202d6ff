package parse

import (
	"sort"
	"strconv"
	"time"

	"tidbyt.dev/txc/model"
)

// Bundle holds the records extracted from one document, or the
// merge of several.
type Bundle struct {
	Files                 []*model.File
	Services              []*model.Service
	AnnotatedStops        []*model.AnnotatedStop
	ProvisionalStops      []*model.ProvisionalStop
	JourneyPatterns       []*model.JourneyPattern
	TimingLinks           []*model.TimingLink
	VehicleJourneys       []*model.VehicleJourney
	ServicedOrganisations []*model.ServicedOrganisation
	FlexibleStopUsages    []*model.FlexibleStopUsage
	BookingArrangements   []*model.BookingArrangement

	SchemaVersions       []string
	CreationDateTime     time.Time
	ModificationDateTime time.Time
	LineCount            int
	LineNames            []string
	TimingPointCount     int
}

// StopCount is the number of distinct stops referenced.
func (b *Bundle) StopCount() int {
	seen := map[string]bool{}
	for _, s := range b.AnnotatedStops {
		seen[s.AtcoCode] = true
	}
	for _, s := range b.ProvisionalStops {
		seen[s.AtcoCode] = true
	}
	return len(seen)
}

// Merges bundles, keeping the first record seen for each natural
// key. Feed bundles in a deterministic order.
type bundleMerger struct {
	out *Bundle

	files         map[string]bool
	services      map[string]bool
	annotated     map[string]bool
	provisional   map[string]bool
	patterns      map[string]bool
	links         map[[3]string]bool
	journeys      map[string]bool
	organisations map[[2]string]bool
	usages        map[[3]string]bool
	bookings      map[model.BookingArrangement]bool
	versions      map[string]bool
	lineNames     map[string]bool
}

func newBundleMerger() *bundleMerger {
	return &bundleMerger{
		out:           &Bundle{},
		files:         map[string]bool{},
		services:      map[string]bool{},
		annotated:     map[string]bool{},
		provisional:   map[string]bool{},
		patterns:      map[string]bool{},
		links:         map[[3]string]bool{},
		journeys:      map[string]bool{},
		organisations: map[[2]string]bool{},
		usages:        map[[3]string]bool{},
		bookings:      map[model.BookingArrangement]bool{},
		versions:      map[string]bool{},
		lineNames:     map[string]bool{},
	}
}

func (m *bundleMerger) add(b *Bundle) {
	out := m.out

	for _, f := range b.Files {
		if !m.files[f.ID] {
			m.files[f.ID] = true
			out.Files = append(out.Files, f)
		}
	}
	for _, s := range b.Services {
		if !m.services[s.Key()] {
			m.services[s.Key()] = true
			out.Services = append(out.Services, s)
		}
	}
	for _, s := range b.AnnotatedStops {
		if !m.annotated[s.AtcoCode] {
			m.annotated[s.AtcoCode] = true
			out.AnnotatedStops = append(out.AnnotatedStops, s)
		}
	}
	for _, s := range b.ProvisionalStops {
		if !m.provisional[s.AtcoCode] {
			m.provisional[s.AtcoCode] = true
			out.ProvisionalStops = append(out.ProvisionalStops, s)
		}
	}
	for _, jp := range b.JourneyPatterns {
		if !m.patterns[jp.Key()] {
			m.patterns[jp.Key()] = true
			out.JourneyPatterns = append(out.JourneyPatterns, jp)
		}
	}
	for _, l := range b.TimingLinks {
		key := [3]string{l.FileID, l.SectionID, strconv.Itoa(l.Order)}
		if !m.links[key] {
			m.links[key] = true
			out.TimingLinks = append(out.TimingLinks, l)
		}
	}
	for _, vj := range b.VehicleJourneys {
		if !m.journeys[vj.Key()] {
			m.journeys[vj.Key()] = true
			out.VehicleJourneys = append(out.VehicleJourneys, vj)
		}
	}
	for _, so := range b.ServicedOrganisations {
		key := [2]string{so.FileID, so.Code}
		if !m.organisations[key] {
			m.organisations[key] = true
			out.ServicedOrganisations = append(out.ServicedOrganisations, so)
		}
	}
	for _, u := range b.FlexibleStopUsages {
		key := [3]string{u.FileID, u.JourneyPatternID, u.AtcoCode}
		if !m.usages[key] {
			m.usages[key] = true
			out.FlexibleStopUsages = append(out.FlexibleStopUsages, u)
		}
	}
	for _, ba := range b.BookingArrangements {
		if !m.bookings[*ba] {
			m.bookings[*ba] = true
			out.BookingArrangements = append(out.BookingArrangements, ba)
		}
	}

	for _, v := range b.SchemaVersions {
		m.versions[v] = true
	}
	for _, n := range b.LineNames {
		m.lineNames[n] = true
	}
	out.LineCount += b.LineCount
	out.TimingPointCount += b.TimingPointCount

	if !b.CreationDateTime.IsZero() &&
		(out.CreationDateTime.IsZero() || b.CreationDateTime.Before(out.CreationDateTime)) {
		out.CreationDateTime = b.CreationDateTime
	}
	if b.ModificationDateTime.After(out.ModificationDateTime) {
		out.ModificationDateTime = b.ModificationDateTime
	}
}

func (m *bundleMerger) bundle() *Bundle {
	m.out.SchemaVersions = sortedKeys(m.versions)
	m.out.LineNames = sortedKeys(m.lineNames)
	return m.out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MergeBundles concatenates bundles and drops duplicate records.
// Line counts and timing point counts are summed.
func MergeBundles(bundles ...*Bundle) *Bundle {
	m := newBundleMerger()
	for _, b := range bundles {
		m.add(b)
	}
	return m.bundle()
}
