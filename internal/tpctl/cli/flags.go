package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

// filterFlags binds the search filter flags shared by the incident and
// message commands.
type filterFlags struct {
	since string
	until string

	incidentIDs  []string
	sources      []string
	priorities   []string
	dispositions []string
	verdicts     []string
	confidences  []string
	other        []string

	messageIDs  []string
	recipients  []string
	senders     []string
	subjects    []string
	statuses    []string
	quarantines []string
	threats     []string
	threatTypes []string
}

func (f *filterFlags) bindIncident(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.since, "since", "", `Start of the time range: "7d", "36h", or a date`)
	fl.StringVar(&f.until, "until", "", "End of the time range (default: now)")
	fl.StringArrayVar(&f.incidentIDs, "incident-id", nil, "Incident ID (repeatable)")
	fl.StringArrayVar(&f.sources, "source", nil, "Incident source, e.g. TAP (repeatable)")
	fl.StringArrayVar(&f.priorities, "priority", nil, "Priority: low, medium, high, critical (repeatable)")
	fl.StringArrayVar(&f.dispositions, "disposition", nil, "Disposition (repeatable)")
	fl.StringArrayVar(&f.verdicts, "verdict", nil, "Verdict (repeatable)")
	fl.StringArrayVar(&f.confidences, "confidence", nil, "Confidence (repeatable)")
	fl.StringArrayVar(&f.other, "other", nil, "Other filter value (repeatable)")
}

func (f *filterFlags) bindMessage(cmd *cobra.Command) {
	f.bindIncident(cmd)

	fl := cmd.Flags()
	fl.StringArrayVar(&f.messageIDs, "message-id", nil, "Message ID (repeatable)")
	fl.StringArrayVar(&f.recipients, "recipient", nil, "Recipient address (repeatable)")
	fl.StringArrayVar(&f.senders, "sender", nil, "Sender address (repeatable)")
	fl.StringArrayVar(&f.subjects, "subject", nil, "Subject (repeatable)")
	fl.StringArrayVar(&f.statuses, "status", nil, "Message status (repeatable)")
	fl.StringArrayVar(&f.quarantines, "quarantine", nil, "Quarantine state (repeatable)")
	fl.StringArrayVar(&f.threats, "threat", nil, "TAP threat (repeatable)")
	fl.StringArrayVar(&f.threatTypes, "threat-type", nil, "TAP threat type (repeatable)")
}

func (f *filterFlags) incidentFilters(now time.Time) (tpsdk.IncidentFilters, error) {
	tr, err := parseTimeRange(f.since, f.until, now)
	if err != nil {
		return tpsdk.IncidentFilters{}, err
	}

	return tpsdk.IncidentFilters{
		TimeRange:    tr,
		IncidentIDs:  f.incidentIDs,
		Other:        f.other,
		Priorities:   f.priorities,
		Sources:      f.sources,
		Dispositions: f.dispositions,
		Verdicts:     f.verdicts,
		Confidences:  f.confidences,
	}, nil
}

func (f *filterFlags) messageFilters(now time.Time) (tpsdk.MessageFilters, error) {
	inc, err := f.incidentFilters(now)
	if err != nil {
		return tpsdk.MessageFilters{}, err
	}

	return tpsdk.MessageFilters{
		IncidentFilters:    inc,
		MessageIDs:         f.messageIDs,
		RecipientAddresses: f.recipients,
		SenderAddresses:    f.senders,
		Subjects:           f.subjects,
		Statuses:           f.statuses,
		Quarantines:        f.quarantines,
		TAPThreats:         f.threats,
		TAPThreatTypes:     f.threatTypes,
	}, nil
}

// pageFlags binds --start-row, --end-row and --sort.
type pageFlags struct {
	startRow int
	endRow   int
	sort     []string
}

func (p *pageFlags) bind(cmd *cobra.Command, def tpsdk.Page) {
	fl := cmd.Flags()
	fl.IntVar(&p.startRow, "start-row", def.StartRow, "First row of the result window")
	fl.IntVar(&p.endRow, "end-row", def.EndRow, "Row after the last one in the result window")
	fl.StringArrayVar(&p.sort, "sort", nil, `Sort column, "col" or "col:asc|desc" (repeatable)`)
}

func (p *pageFlags) page() *tpsdk.Page {
	return &tpsdk.Page{StartRow: p.startRow, EndRow: p.endRow}
}

func (p *pageFlags) sortParams() ([]tpsdk.SortParam, error) {
	params := make([]tpsdk.SortParam, 0, len(p.sort))
	for _, s := range p.sort {
		sp, err := tpsdk.ParseSortParam(s)
		if err != nil {
			return nil, err
		}
		params = append(params, sp)
	}
	return params, nil
}

// parseTimeRange turns --since/--until into a filter. Both empty means no
// time filter.
func parseTimeRange(since, until string, now time.Time) (*tpsdk.TimeRangeFilter, error) {
	if since == "" && until == "" {
		return nil, nil
	}
	if since == "" {
		return nil, flagError("--until requires --since")
	}

	start, err := parseInstant(since, now)
	if err != nil {
		return nil, flagError("invalid --since %q: %v", since, err)
	}

	end := now
	if until != "" {
		end, err = parseInstant(until, now)
		if err != nil {
			return nil, flagError("invalid --until %q: %v", until, err)
		}
	}

	tr := tpsdk.NewTimeRange(start, end)
	if err := tr.Validate(); err != nil {
		return nil, &tpsdk.Error{Kind: tpsdk.KindValidation, Message: "invalid time range", Err: err}
	}
	return tr, nil
}

var relativeDays = regexp.MustCompile(`^(\d+)d$`)

// parseInstant accepts "now", a day count such as "7d", a Go duration such as
// "36h" (both meaning that long before now), or any date dateparse
// recognises. Dates without a zone are UTC.
func parseInstant(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)

	if strings.EqualFold(s, "now") {
		return now, nil
	}
	if m := relativeDays.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, err
		}
		return now.AddDate(0, 0, -days), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}

	return dateparse.ParseIn(s, time.UTC)
}

func flagError(format string, args ...any) error {
	return &tpsdk.Error{Kind: tpsdk.KindValidation, Message: fmt.Sprintf(format, args...)}
}
