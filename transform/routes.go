package transform

import (
	"sort"

	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
)

// SectionKey identifies a journey pattern section within a run.
type SectionKey struct {
	FileID    string
	SectionID string
}

// Timing links grouped by section, each group in link order.
func sectionLinks(b *parse.Bundle) map[SectionKey][]*model.TimingLink {
	sections := map[SectionKey][]*model.TimingLink{}
	for _, l := range b.TimingLinks {
		key := SectionKey{l.FileID, l.SectionID}
		sections[key] = append(sections[key], l)
	}
	for _, links := range sections {
		sort.SliceStable(links, func(i, j int) bool {
			return links[i].Order < links[j].Order
		})
	}
	return sections
}

// One route link per route link ref, first seen wins.
func buildRouteLinks(b *parse.Bundle) []*model.RouteLink {
	seen := map[string]bool{}
	links := []*model.RouteLink{}
	for _, l := range b.TimingLinks {
		if seen[l.RouteLinkRef] {
			continue
		}
		seen[l.RouteLinkRef] = true
		links = append(links, &model.RouteLink{
			Ref:          l.RouteLinkRef,
			FromStop:     l.FromStop,
			ToStop:       l.ToStop,
			TimingStatus: l.FromTimingStatus,
			RunTime:      l.RunTime,
			WaitTime:     l.WaitTime,
		})
	}
	return links
}

// Distinct stop pairs over all route links, sorted.
func distinctPairs(links []*model.RouteLink) []model.StopPair {
	seen := map[model.StopPair]bool{}
	pairs := []model.StopPair{}
	for _, l := range links {
		p := model.StopPair{From: l.FromStop, To: l.ToStop}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})
	return pairs
}

// SectionHash is the route identity of one section: a digest of its
// route link refs in order.
func SectionHash(links []*model.TimingLink) string {
	refs := make([]string, 0, len(links))
	for _, l := range links {
		refs = append(refs, l.RouteLinkRef)
	}
	return model.HashIDs(refs...)
}

// RouteHash combines section hashes, in the pattern's section order.
func RouteHash(sectionHashes []string) string {
	return model.HashIDs(sectionHashes...)
}

func ServicePatternKey(serviceCode, routeHash string) string {
	return serviceCode + "-" + routeHash
}

// A journey pattern resolved to the links it runs over.
type resolvedPattern struct {
	pattern   *model.JourneyPattern
	links     []*model.TimingLink
	routeHash string
	key       string
}

// Resolves each journey pattern's sections and computes its route
// hash. Patterns that end up with no links have no route identity
// and are dropped. Section refs that don't resolve contribute
// nothing.
func resolvePatterns(
	patterns []*model.JourneyPattern,
	sections map[SectionKey][]*model.TimingLink,
	sectionHashes map[SectionKey]string,
) []*resolvedPattern {
	resolved := []*resolvedPattern{}
	for _, jp := range patterns {
		links := []*model.TimingLink{}
		hashes := []string{}
		for _, ref := range jp.SectionRefs {
			key := SectionKey{jp.FileID, ref}
			sectionLinks, ok := sections[key]
			if !ok {
				continue
			}
			links = append(links, sectionLinks...)
			hashes = append(hashes, sectionHashes[key])
		}
		if len(links) == 0 {
			continue
		}

		routeHash := RouteHash(hashes)
		resolved = append(resolved, &resolvedPattern{
			pattern:   jp,
			links:     links,
			routeHash: routeHash,
			key:       ServicePatternKey(jp.ServiceCode, routeHash),
		})
	}
	return resolved
}

// Patterns sharing a service pattern key, with the representative
// first.
type patternGroup struct {
	key     string
	members []*resolvedPattern
}

func (g *patternGroup) representative() *resolvedPattern {
	return g.members[0]
}

// Groups patterns by service pattern key. Groups are ordered by key
// and members by (journey pattern id, file id), so the outcome never
// depends on input order.
func groupPatterns(resolved []*resolvedPattern) []*patternGroup {
	byKey := map[string]*patternGroup{}
	for _, rp := range resolved {
		g, ok := byKey[rp.key]
		if !ok {
			g = &patternGroup{key: rp.key}
			byKey[rp.key] = g
		}
		g.members = append(g.members, rp)
	}

	groups := make([]*patternGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.members, func(i, j int) bool {
			a, b := g.members[i].pattern, g.members[j].pattern
			if a.ID != b.ID {
				return a.ID < b.ID
			}
			return a.FileID < b.FileID
		})
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key < groups[j].key
	})
	return groups
}
