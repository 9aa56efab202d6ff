package load

import (
	"strings"
	"time"

	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/transform"
)

// BuildReport summarises a transformed run. The name is left for the
// caller to fill in once it's been resolved.
func BuildReport(res *transform.Result) model.ETLReport {
	b := res.Bundle
	report := model.ETLReport{
		SchemaVersion:        strings.Join(b.SchemaVersions, ","),
		CreationDateTime:     b.CreationDateTime,
		ModificationDateTime: b.ModificationDateTime,
		LineCount:            b.LineCount,
		LineNames:            append([]string{}, b.LineNames...),
		StopCount:            b.StopCount(),
		TimingPointCount:     b.TimingPointCount,
		BoundingBox:          res.BoundingBox,
		MostCommonLocalities: append([]string{}, res.MostCommonLocalities...),
	}

	for _, svc := range b.Services {
		report.FirstServiceStart = minTime(report.FirstServiceStart, svc.StartDate)

		if svc.EndDate.IsZero() || model.IsNoExpiry(svc.EndDate) {
			continue
		}
		report.FirstExpiringService = minTime(report.FirstExpiringService, svc.EndDate)
		if svc.EndDate.After(report.LastExpiringService) {
			report.LastExpiringService = svc.EndDate
		}
	}

	return report
}

// Earlier of two times, where zero means unknown.
func minTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}
