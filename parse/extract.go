package parse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spkg/bom"
	"golang.org/x/text/encoding/htmlindex"

	"tidbyt.dev/txc/geo"
	"tidbyt.dev/txc/model"
)

const (
	LocationSystemGrid  = "Grid"
	LocationSystemWGS84 = "WGS84"
)

var SupportedSchemaVersions = []string{"2.1", "2.4"}

// Namespace for file identifiers, so the same file always gets the
// same id.
var fileNamespace = uuid.MustParse("0b0f7d0c-5a55-4b9e-9a39-6f7a3a7c4e21")

// Timing statuses that mark a principal timing point.
var principalTimingStatuses = map[string]bool{
	"PTP":                  true,
	"principalTimingPoint": true,
}

func IsPrincipalTimingPoint(status string) bool {
	return principalTimingStatuses[status]
}

type Options struct {
	// Fail with DatasetExpired if a service ended before Now.
	RejectExpired bool
	Now           time.Time
}

// FileID derives the deterministic identifier of a document.
func FileID(filename string, data []byte) string {
	digest := sha256.Sum256(data)
	return uuid.NewSHA1(fileNamespace, []byte(filename+"\x00"+hex.EncodeToString(digest[:]))).String()
}

// ExtractDocument parses a single TransXChange document into a
// Bundle.
func ExtractDocument(filename string, data []byte, opts Options) (*Bundle, error) {
	data = bom.Clean(data)

	if construct := dangerousConstruct(data); construct != "" {
		return nil, ErrDangerousXML(filename, construct)
	}

	doc := &txcDocument{}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader
	if err := decoder.Decode(doc); err != nil {
		return nil, ErrXMLSyntax(filename, err)
	}

	version := strings.TrimSpace(doc.SchemaVersion)
	if version == "" {
		return nil, ErrSchemaVersionMissing(filename)
	}
	supported := false
	for _, v := range SupportedSchemaVersions {
		if v == version {
			supported = true
		}
	}
	if !supported {
		return nil, ErrSchemaVersionNotSupported(filename, version)
	}

	x := &extractor{
		filename: filename,
		fileID:   FileID(filename, data),
		doc:      doc,
		opts:     opts,
		bundle:   &Bundle{},
	}
	if err := x.extract(); err != nil {
		return nil, err
	}
	return x.bundle, nil
}

// DTDs and entity declarations are refused outright.
func dangerousConstruct(data []byte) string {
	for _, construct := range []string{"<!DOCTYPE", "<!ENTITY"} {
		if bytes.Contains(data, []byte(construct)) {
			return construct
		}
	}
	return ""
}

// Decodes documents declaring a non UTF-8 encoding, by WHATWG label.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported charset '%s'", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

type extractor struct {
	filename string
	fileID   string
	doc      *txcDocument
	opts     Options
	bundle   *Bundle
}

func (x *extractor) fail(err error) error {
	return &FileError{
		Filename: x.filename,
		Kind:     FileErrorGeneric,
		Message:  fmt.Sprintf("File %s: %s", x.filename, err),
		Err:      err,
	}
}

func (x *extractor) extract() error {
	doc := x.doc
	b := x.bundle

	b.Files = []*model.File{{
		ID:                   x.fileID,
		Name:                 x.filename,
		SchemaVersion:        strings.TrimSpace(doc.SchemaVersion),
		RevisionNumber:       doc.RevisionNumber,
		Modification:         doc.Modification,
		CreationDateTime:     TimestampOr(doc.CreationDateTime, time.Time{}),
		ModificationDateTime: TimestampOr(doc.ModificationDateTime, time.Time{}),
	}}
	b.SchemaVersions = []string{b.Files[0].SchemaVersion}
	b.CreationDateTime = b.Files[0].CreationDateTime
	b.ModificationDateTime = b.Files[0].ModificationDateTime

	if err := x.extractServices(); err != nil {
		return err
	}
	x.extractStops()
	if err := x.extractTimingLinks(); err != nil {
		return err
	}
	if err := x.extractServicedOrganisations(); err != nil {
		return err
	}
	if err := x.extractVehicleJourneys(); err != nil {
		return err
	}

	lineNames := map[string]bool{}
	for _, s := range b.Services {
		for _, name := range s.LineNames {
			lineNames[name] = true
		}
	}
	b.LineNames = sortedKeys(lineNames)
	b.LineCount = len(b.LineNames)

	return nil
}

func (x *extractor) extractServices() error {
	b := x.bundle

	for _, svc := range x.doc.Services {
		code := strings.TrimSpace(svc.ServiceCode)

		lineNames := []string{}
		for _, line := range svc.Lines {
			if name := strings.TrimSpace(line.LineName); name != "" {
				lineNames = append(lineNames, name)
			}
		}
		if len(lineNames) == 0 {
			return ErrMissingLines(x.filename, code)
		}

		profile, err := convertProfile(svc.OperatingProfile)
		if err != nil {
			return x.fail(errors.Wrapf(err, "parsing OperatingProfile (service %s)", code))
		}

		service := &model.Service{
			FileID:      x.fileID,
			Code:        code,
			Type:        model.ServiceTypeStandard,
			StartDate:   TimestampOr(svc.StartDate, time.Time{}),
			LineNames:   lineNames,
			Description: strings.TrimSpace(svc.Description),
			Mode:        svc.Mode,
			OperatorRef: svc.RegisteredOperatorRef,
			PublicUse:   svc.PublicUse != "false" && svc.PublicUse != "0",
			Profile:     profile,
		}
		if end, err := ParseTimestamp(svc.EndDate); err == nil {
			service.EndDate = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, end.Location())
		}

		if x.opts.RejectExpired && !service.EndDate.IsZero() && service.EndDate.Before(x.opts.Now) {
			return ErrDatasetExpired(x.filename, code, service.EndDate)
		}

		if svc.StandardService != nil {
			service.Origin = svc.StandardService.Origin
			service.Destination = svc.StandardService.Destination
			for _, jp := range svc.StandardService.JourneyPatterns {
				refs := make([]string, 0, len(jp.SectionRefs))
				for _, ref := range jp.SectionRefs {
					refs = append(refs, strings.TrimSpace(ref))
				}
				b.JourneyPatterns = append(b.JourneyPatterns, &model.JourneyPattern{
					FileID:      x.fileID,
					ServiceCode: code,
					ID:          code + "-" + jp.ID,
					Direction:   jp.Direction,
					RouteRef:    jp.RouteRef,
					SectionRefs: refs,
				})
			}
		}

		if svc.FlexibleService != nil {
			service.Type = model.ServiceTypeFlexible
			service.Origin = svc.FlexibleService.Origin
			service.Destination = svc.FlexibleService.Destination
			for _, fjp := range svc.FlexibleService.FlexibleJourneyPatterns {
				x.extractFlexiblePattern(code, fjp)
			}
		}

		b.Services = append(b.Services, service)
	}

	return nil
}

func (x *extractor) extractFlexiblePattern(serviceCode string, fjp txcFlexibleJourneyPattern) {
	b := x.bundle
	patternID := serviceCode + "-" + fjp.ID

	usages := []*model.FlexibleStopUsage{}
	seen := map[string]bool{}
	add := func(groups []txcStopUsages) {
		for _, group := range groups {
			for _, u := range group.Usages {
				ref := strings.TrimSpace(u.StopPointRef)
				if ref == "" || seen[ref] {
					continue
				}
				seen[ref] = true

				stopType := model.BusStopTypeFlexible
				if u.XMLName.Local == "FixedStopUsage" {
					stopType = model.BusStopTypeFixedFlexible
				}
				usages = append(usages, &model.FlexibleStopUsage{
					FileID:           x.fileID,
					ServiceCode:      serviceCode,
					JourneyPatternID: patternID,
					Order:            len(usages),
					AtcoCode:         ref,
					Activity:         model.ParseStopActivity(u.Activity),
					Type:             stopType,
				})
			}
		}
	}
	add(fjp.StopPointsInSequence)
	add(fjp.FlexibleZones)
	add(fjp.FixedStopPoints)

	for _, ba := range fjp.BookingArrangements {
		b.BookingArrangements = append(b.BookingArrangements, &model.BookingArrangement{
			FileID:      x.fileID,
			ServiceCode: serviceCode,
			Description: strings.TrimSpace(ba.Description),
			Phone:       strings.TrimSpace(ba.Phone),
			Email:       strings.TrimSpace(ba.Email),
			WebAddress:  strings.TrimSpace(ba.WebAddress),
		})
	}

	if len(usages) == 0 {
		return
	}

	sectionID := FlexibleSectionID(patternID)
	b.JourneyPatterns = append(b.JourneyPatterns, &model.JourneyPattern{
		FileID:      x.fileID,
		ServiceCode: serviceCode,
		ID:          patternID,
		Direction:   fjp.Direction,
		SectionRefs: []string{sectionID},
		Flexible:    true,
	})
	b.FlexibleStopUsages = append(b.FlexibleStopUsages, usages...)
	b.TimingLinks = append(b.TimingLinks, FlexibleTimingLinks(x.fileID, sectionID, usages)...)
}

// FlexibleSectionID names the synthetic section holding a flexible
// pattern's links.
func FlexibleSectionID(patternID string) string {
	return "flexible:" + patternID
}

// FlexibleTimingLinks turns an ordered list of stop usages into
// untimed links between consecutive stops. The last stop only ever
// appears as a destination.
func FlexibleTimingLinks(fileID, sectionID string, usages []*model.FlexibleStopUsage) []*model.TimingLink {
	links := []*model.TimingLink{}
	for i := 0; i+1 < len(usages); i++ {
		from, to := usages[i], usages[i+1]
		links = append(links, &model.TimingLink{
			FileID:       fileID,
			SectionID:    sectionID,
			ID:           fmt.Sprintf("%s-%d", sectionID, i),
			Order:        i,
			RouteLinkRef: model.PairRouteLinkRef(from.AtcoCode, to.AtcoCode),
			FromStop:     from.AtcoCode,
			ToStop:       to.AtcoCode,
			FromActivity: from.Activity,
			ToActivity:   to.Activity,
		})
	}
	return links
}

func (x *extractor) locationSystem() string {
	if system := strings.TrimSpace(x.doc.LocationSystem); system != "" {
		if strings.EqualFold(system, LocationSystemWGS84) {
			return LocationSystemWGS84
		}
		return LocationSystemGrid
	}
	if len(x.doc.StopPoints) > 0 {
		loc := x.doc.StopPoints[0].Location
		if loc.Latitude != "" || (loc.Translation != nil && loc.Translation.Latitude != "") {
			return LocationSystemWGS84
		}
	}
	return LocationSystemGrid
}

func (x *extractor) extractStops() {
	b := x.bundle

	for _, ref := range x.doc.AnnotatedStopPointRefs {
		b.AnnotatedStops = append(b.AnnotatedStops, &model.AnnotatedStop{
			FileID:     x.fileID,
			AtcoCode:   strings.TrimSpace(ref.StopPointRef),
			CommonName: strings.TrimSpace(ref.CommonName),
		})
	}

	system := x.locationSystem()
	for _, sp := range x.doc.StopPoints {
		b.ProvisionalStops = append(b.ProvisionalStops, &model.ProvisionalStop{
			FileID:     x.fileID,
			AtcoCode:   strings.TrimSpace(sp.AtcoCode),
			CommonName: strings.TrimSpace(sp.CommonName),
			Geometry:   locationGeometry(sp.Location, system),
			LocalityID: strings.TrimSpace(sp.LocalityRef),
		})
	}
}

// Reads a location in the given system, from the element itself or
// its Translation. Nil if coordinates are missing or malformed.
func locationGeometry(loc txcLocation, system string) *model.Point {
	pick := func(direct string, get func(*txcLocation) string) string {
		if direct != "" {
			return direct
		}
		if loc.Translation != nil {
			return get(loc.Translation)
		}
		return ""
	}

	if system == LocationSystemWGS84 {
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(pick(loc.Longitude, func(l *txcLocation) string { return l.Longitude })), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(pick(loc.Latitude, func(l *txcLocation) string { return l.Latitude })), 64)
		if errLon != nil || errLat != nil {
			return nil
		}
		return &model.Point{Lon: lon, Lat: lat}
	}

	easting, errE := strconv.ParseFloat(strings.TrimSpace(pick(loc.Easting, func(l *txcLocation) string { return l.Easting })), 64)
	northing, errN := strconv.ParseFloat(strings.TrimSpace(pick(loc.Northing, func(l *txcLocation) string { return l.Northing })), 64)
	if errE != nil || errN != nil {
		return nil
	}
	p := geo.GridToWGS84(easting, northing)
	return &p
}

func (x *extractor) extractTimingLinks() error {
	b := x.bundle

	for _, section := range x.doc.JourneyPatternSections {
		for order, link := range section.TimingLinks {
			from := strings.TrimSpace(link.From.StopPointRef)
			to := strings.TrimSpace(link.To.StopPointRef)

			runTime, err := parseLinkDuration(link.RunTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing RunTime (timing link %s)", link.ID))
			}
			fromWait, err := parseLinkDuration(link.From.WaitTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing From/WaitTime (timing link %s)", link.ID))
			}
			toWait, err := parseLinkDuration(link.To.WaitTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing To/WaitTime (timing link %s)", link.ID))
			}

			ref := strings.TrimSpace(link.RouteLinkRef)
			if ref == "" {
				ref = model.PairRouteLinkRef(from, to)
			}

			if IsPrincipalTimingPoint(link.From.TimingStatus) {
				b.TimingPointCount++
			}
			if IsPrincipalTimingPoint(link.To.TimingStatus) {
				b.TimingPointCount++
			}

			b.TimingLinks = append(b.TimingLinks, &model.TimingLink{
				FileID:           x.fileID,
				SectionID:        section.ID,
				ID:               link.ID,
				Order:            order,
				RouteLinkRef:     ref,
				FromStop:         from,
				ToStop:           to,
				FromActivity:     model.ParseStopActivity(link.From.Activity),
				ToActivity:       model.ParseStopActivity(link.To.Activity),
				FromTimingStatus: link.From.TimingStatus,
				ToTimingStatus:   link.To.TimingStatus,
				RunTime:          runTime,
				WaitTime:         fromWait + toWait,
			})
		}
	}

	return nil
}

// Run and wait times only ever move a journey forward.
func parseLinkDuration(s string) (time.Duration, error) {
	d, err := ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration '%s'", strings.TrimSpace(s))
	}
	return d, nil
}

func (x *extractor) extractServicedOrganisations() error {
	for _, so := range x.doc.ServicedOrganisations {
		org := &model.ServicedOrganisation{
			FileID: x.fileID,
			Code:   strings.TrimSpace(so.OrganisationCode),
			Name:   strings.TrimSpace(so.Name),
		}
		for _, dr := range so.WorkingDays {
			r, err := convertDateRange(dr)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing WorkingDays (serviced organisation %s)", org.Code))
			}
			org.WorkingDays = append(org.WorkingDays, r)
		}
		x.bundle.ServicedOrganisations = append(x.bundle.ServicedOrganisations, org)
	}
	return nil
}

func (x *extractor) extractVehicleJourneys() error {
	b := x.bundle

	services := map[string]*model.Service{}
	for _, s := range b.Services {
		services[s.Code] = s
	}
	patterns := map[string]*model.JourneyPattern{}
	for _, jp := range b.JourneyPatterns {
		patterns[jp.ID] = jp
	}

	byCode := map[string]*txcVehicleJourney{}
	for i := range x.doc.VehicleJourneys {
		vj := &x.doc.VehicleJourneys[i]
		byCode[vj.VehicleJourneyCode] = vj
	}

	profileFor := func(own *txcOperatingProfile, serviceCode string) (*model.OperatingProfile, error) {
		if own != nil {
			return convertProfile(own)
		}
		if s, ok := services[serviceCode]; ok {
			return s.Profile, nil
		}
		return nil, nil
	}

	for i, vj := range x.doc.VehicleJourneys {
		code := strings.TrimSpace(vj.VehicleJourneyCode)
		if code == "" {
			code = fmt.Sprintf("vj-%d", i+1)
		}

		// A journey may inherit its pattern from another journey.
		patternRef := vj.JourneyPatternRef
		if patternRef == "" && vj.VehicleJourneyRef != "" {
			if parent, ok := byCode[vj.VehicleJourneyRef]; ok {
				patternRef = parent.JourneyPatternRef
			}
		}

		departure, err := ParseClock(vj.DepartureTime)
		if err != nil {
			return x.fail(errors.Wrapf(err, "parsing DepartureTime (vehicle journey %s)", code))
		}
		dayShift := 0
		if vj.DepartureDayShift != "" {
			dayShift, err = strconv.Atoi(strings.TrimSpace(vj.DepartureDayShift))
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing DepartureDayShift (vehicle journey %s)", code))
			}
		}

		overrides := map[string]time.Duration{}
		for _, tl := range vj.TimingLinks {
			if tl.RunTime == "" || tl.JourneyPatternTimingLinkRef == "" {
				continue
			}
			d, err := parseLinkDuration(tl.RunTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing RunTime (vehicle journey %s, timing link %s)", code, tl.JourneyPatternTimingLinkRef))
			}
			overrides[tl.JourneyPatternTimingLinkRef] = d
		}

		profile, err := profileFor(vj.OperatingProfile, vj.ServiceRef)
		if err != nil {
			return x.fail(errors.Wrapf(err, "parsing OperatingProfile (vehicle journey %s)", code))
		}

		journey := &model.VehicleJourney{
			FileID:            x.fileID,
			Code:              code,
			PrivateCode:       vj.PrivateCode,
			ServiceCode:       vj.ServiceRef,
			LineRef:           vj.LineRef,
			JourneyPatternID:  vj.ServiceRef + "-" + patternRef,
			DepartureTime:     departure,
			DepartureDayShift: dayShift,
			BlockNumber:       vj.BlockNumber,
			RunTimeOverrides:  overrides,
			Profile:           profile,
		}
		if jp, ok := patterns[journey.JourneyPatternID]; ok {
			journey.Direction = jp.Direction
		}
		b.VehicleJourneys = append(b.VehicleJourneys, journey)
	}

	for i, fvj := range x.doc.FlexibleVehicleJourneys {
		code := strings.TrimSpace(fvj.VehicleJourneyCode)
		if code == "" {
			code = fmt.Sprintf("fvj-%d", i+1)
		}

		periods := []model.TimeWindow{}
		for _, sp := range fvj.ServicePeriods {
			start, err := ParseClock(sp.StartTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing StartTime (flexible vehicle journey %s)", code))
			}
			end, err := ParseClock(sp.EndTime)
			if err != nil {
				return x.fail(errors.Wrapf(err, "parsing EndTime (flexible vehicle journey %s)", code))
			}
			periods = append(periods, model.TimeWindow{Start: start, End: end})
		}

		profile, err := profileFor(fvj.OperatingProfile, fvj.ServiceRef)
		if err != nil {
			return x.fail(errors.Wrapf(err, "parsing OperatingProfile (flexible vehicle journey %s)", code))
		}

		journey := &model.VehicleJourney{
			FileID:           x.fileID,
			Code:             code,
			PrivateCode:      fvj.PrivateCode,
			ServiceCode:      fvj.ServiceRef,
			LineRef:          fvj.LineRef,
			JourneyPatternID: fvj.ServiceRef + "-" + fvj.JourneyPatternRef,
			Flexible:         true,
			Profile:          profile,
			FlexiblePeriods:  periods,
		}
		if jp, ok := patterns[journey.JourneyPatternID]; ok {
			journey.Direction = jp.Direction
		}
		b.VehicleJourneys = append(b.VehicleJourneys, journey)
	}

	return nil
}

func convertDateRange(dr txcDateRange) (model.DateRange, error) {
	start, err := ParseTimestamp(dr.StartDate)
	if err != nil {
		return model.DateRange{}, errors.Wrap(err, "StartDate")
	}
	end := start
	if dr.EndDate != "" {
		end, err = ParseTimestamp(dr.EndDate)
		if err != nil {
			return model.DateRange{}, errors.Wrap(err, "EndDate")
		}
	}
	if end.Before(start) {
		return model.DateRange{}, fmt.Errorf("date range ends (%s) before it starts (%s)",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return model.DateRange{Start: start, End: end}, nil
}

// Longest date range expanded into individual exception dates.
const maxExceptionDays = 3 * 366

func expandDateRange(r model.DateRange) []time.Time {
	dates := []time.Time{}
	for d := r.Start; !d.After(r.End) && len(dates) < maxExceptionDays; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

var weekdayGroups = map[string][]time.Weekday{
	"Monday":           {time.Monday},
	"Tuesday":          {time.Tuesday},
	"Wednesday":        {time.Wednesday},
	"Thursday":         {time.Thursday},
	"Friday":           {time.Friday},
	"Saturday":         {time.Saturday},
	"Sunday":           {time.Sunday},
	"MondayToFriday":   {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"MondayToSaturday": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
	"MondayToSunday":   {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday},
	"Weekend":          {time.Saturday, time.Sunday},
}

// Weekdays in timetable order, Monday first.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func parseDaysOfWeek(names []string) []time.Weekday {
	set := map[time.Weekday]bool{}
	for _, name := range names {
		if days, ok := weekdayGroups[name]; ok {
			for _, d := range days {
				set[d] = true
			}
			continue
		}
		if strings.HasPrefix(name, "Not") {
			if excluded, ok := weekdayGroups[strings.TrimPrefix(name, "Not")]; ok && len(excluded) == 1 {
				for d := time.Sunday; d <= time.Saturday; d++ {
					if d != excluded[0] {
						set[d] = true
					}
				}
			}
		}
	}

	days := make([]time.Weekday, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		return weekdayIndex(days[i]) < weekdayIndex(days[j])
	})
	return days
}

func convertProfile(p *txcOperatingProfile) (*model.OperatingProfile, error) {
	if p == nil {
		return nil, nil
	}

	profile := &model.OperatingProfile{}

	if p.RegularDayType != nil {
		if p.RegularDayType.HolidaysOnly != nil {
			profile.HolidaysOnly = true
		}
		if p.RegularDayType.DaysOfWeek != nil {
			names := []string{}
			for _, el := range p.RegularDayType.DaysOfWeek.Elements {
				names = append(names, el.XMLName.Local)
			}
			profile.DaysOfWeek = parseDaysOfWeek(names)
		}
	}

	if p.SpecialDaysOperation != nil {
		for _, dr := range p.SpecialDaysOperation.DaysOfOperation {
			r, err := convertDateRange(dr)
			if err != nil {
				return nil, errors.Wrap(err, "DaysOfOperation")
			}
			profile.OperatingDates = append(profile.OperatingDates, expandDateRange(r)...)
		}
		for _, dr := range p.SpecialDaysOperation.DaysOfNonOperation {
			r, err := convertDateRange(dr)
			if err != nil {
				return nil, errors.Wrap(err, "DaysOfNonOperation")
			}
			profile.NonOperatingDates = append(profile.NonOperatingDates, expandDateRange(r)...)
		}
	}

	if so := p.ServicedOrganisationDayType; so != nil {
		add := func(refs []string, operational, workingDays bool) {
			for _, ref := range refs {
				profile.ServicedOrganisations = append(profile.ServicedOrganisations, model.ServicedOrganisationDay{
					OrganisationCode: strings.TrimSpace(ref),
					Operational:      operational,
					WorkingDays:      workingDays,
				})
			}
		}
		add(so.DaysOfOperation.WorkingDays, true, true)
		add(so.DaysOfOperation.Holidays, true, false)
		add(so.DaysOfNonOperation.WorkingDays, false, true)
		add(so.DaysOfNonOperation.Holidays, false, false)
	}

	return profile, nil
}
