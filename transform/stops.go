package transform

import (
	"fmt"
	"sort"

	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
)

// Name used for stops without a known locality or admin area.
const UnknownName = "unknown"

// Number of names kept when ranking localities and admin areas.
const mostCommonLimit = 5

// Reference is the slice of the reference dataset a run reconciles
// against. It's read once before the transform and never refreshed.
type Reference struct {
	Stops      map[string]*model.StopPoint
	Localities map[string]*model.Locality
	AdminAreas map[string]*model.AdminArea
}

// ReferenceSource looks up reference records by identifier. Unknown
// identifiers are left out of the result.
type ReferenceSource interface {
	StopPoints(atcoCodes []string) ([]*model.StopPoint, error)
	Localities(ids []string) ([]*model.Locality, error)
	AdminAreas(ids []string) ([]*model.AdminArea, error)
}

// ReadReference fetches the reference records for every stop the
// bundle mentions, their localities and their admin areas.
func ReadReference(src ReferenceSource, b *parse.Bundle) (Reference, error) {
	ref := Reference{
		Stops:      map[string]*model.StopPoint{},
		Localities: map[string]*model.Locality{},
		AdminAreas: map[string]*model.AdminArea{},
	}

	stops, err := src.StopPoints(ReferencedStops(b))
	if err != nil {
		return ref, fmt.Errorf("reading stop points: %w", err)
	}
	localityIDs := map[string]bool{}
	for _, s := range stops {
		ref.Stops[s.AtcoCode] = s
		localityIDs[s.LocalityID] = true
	}
	for _, s := range b.ProvisionalStops {
		localityIDs[s.LocalityID] = true
	}
	delete(localityIDs, "")

	localities, err := src.Localities(sortedSet(localityIDs))
	if err != nil {
		return ref, fmt.Errorf("reading localities: %w", err)
	}
	areaIDs := map[string]bool{}
	for _, l := range localities {
		ref.Localities[l.ID] = l
		areaIDs[l.AdminAreaID] = true
	}
	for _, s := range stops {
		areaIDs[s.AdminAreaID] = true
	}
	delete(areaIDs, "")

	areas, err := src.AdminAreas(sortedSet(areaIDs))
	if err != nil {
		return ref, fmt.Errorf("reading admin areas: %w", err)
	}
	for _, a := range areas {
		ref.AdminAreas[a.ID] = a
	}

	return ref, nil
}

// ReferencedStops lists, sorted, every stop identifier the bundle
// mentions: declared stops, both ends of every timing link and every
// flexible stop usage.
func ReferencedStops(b *parse.Bundle) []string {
	codes := map[string]bool{}
	for _, s := range b.AnnotatedStops {
		codes[s.AtcoCode] = true
	}
	for _, s := range b.ProvisionalStops {
		codes[s.AtcoCode] = true
	}
	for _, l := range b.TimingLinks {
		codes[l.FromStop] = true
		codes[l.ToStop] = true
	}
	for _, u := range b.FlexibleStopUsages {
		codes[u.AtcoCode] = true
	}
	delete(codes, "")
	return sortedSet(codes)
}

// Builds the reconciled stop table. Stops known to the reference
// dataset take its values. Others become placeholders carrying what
// the documents declared, which may be nothing but the code.
func reconcileStops(b *parse.Bundle, ref Reference) map[string]*model.StopReference {
	provisional := map[string]*model.ProvisionalStop{}
	for _, s := range b.ProvisionalStops {
		if _, found := provisional[s.AtcoCode]; !found {
			provisional[s.AtcoCode] = s
		}
	}
	annotated := map[string]*model.AnnotatedStop{}
	for _, s := range b.AnnotatedStops {
		if _, found := annotated[s.AtcoCode]; !found {
			annotated[s.AtcoCode] = s
		}
	}

	stops := map[string]*model.StopReference{}
	for _, code := range ReferencedStops(b) {
		stop := &model.StopReference{AtcoCode: code}

		if known, ok := ref.Stops[code]; ok {
			stop.Known = true
			stop.NaptanID = known.ID
			stop.CommonName = known.CommonName
			stop.Geometry = known.Geometry
			stop.LocalityID = known.LocalityID
			stop.AdminAreaID = known.AdminAreaID
		} else if p, ok := provisional[code]; ok {
			stop.CommonName = p.CommonName
			stop.Geometry = p.Geometry
			stop.LocalityID = p.LocalityID
		} else if a, ok := annotated[code]; ok {
			stop.CommonName = a.CommonName
		}

		if locality, ok := ref.Localities[stop.LocalityID]; ok {
			stop.LocalityName = locality.Name
			if stop.AdminAreaID == "" {
				stop.AdminAreaID = locality.AdminAreaID
			}
		}
		if area, ok := ref.AdminAreas[stop.AdminAreaID]; ok {
			stop.AdminAreaName = area.Name
		}

		stops[code] = stop
	}

	return stops
}

// MostCommonNames ranks names by frequency, most frequent first and
// ties broken by name in descending order. Empty names count as
// UnknownName. At most five names are kept, and UnknownName is
// always appended so callers can rely on a fallback.
func MostCommonNames(names []string) []string {
	counts := map[string]int{}
	for _, name := range names {
		if name == "" {
			name = UnknownName
		}
		counts[name]++
	}

	ranked := make([]string, 0, len(counts))
	for name := range counts {
		ranked = append(ranked, name)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] > ranked[j]
	})
	if len(ranked) > mostCommonLimit {
		ranked = ranked[:mostCommonLimit]
	}

	return append(ranked, UnknownName)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
