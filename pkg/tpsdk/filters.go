package tpsdk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TimeLayout is the timestamp format the API expects in time range filters.
const TimeLayout = "2006-01-02 15:04:05"

// ============================================================================
// Time range
// ============================================================================

// TimeRangeFilter bounds a search by creation time. Start and End use
// TimeLayout and are interpreted as UTC by the API.
type TimeRangeFilter struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewTimeRange formats start and end in UTC using TimeLayout.
func NewTimeRange(start, end time.Time) *TimeRangeFilter {
	return &TimeRangeFilter{
		Start: start.UTC().Format(TimeLayout),
		End:   end.UTC().Format(TimeLayout),
	}
}

// LastDays returns the range covering the d days before now.
func LastDays(now time.Time, d int) *TimeRangeFilter {
	return NewTimeRange(now.AddDate(0, 0, -d), now)
}

// Validate checks both bounds parse and that End is not before Start.
func (f TimeRangeFilter) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Start, validation.Required, validation.By(timeLayout)),
		validation.Field(&f.End, validation.Required, validation.By(timeLayout)),
	); err != nil {
		return err
	}

	start, _ := time.Parse(TimeLayout, f.Start)
	end, _ := time.Parse(TimeLayout, f.End)
	if end.Before(start) {
		return validation.Errors{"end": errors.New("must not be before start")}
	}
	return nil
}

func timeLayout(value any) error {
	s, _ := value.(string)
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return fmt.Errorf("must use layout %q", TimeLayout)
	}
	return nil
}

// ============================================================================
// Incident and message filters
// ============================================================================

// IncidentFilters narrows an incident search or count. Empty fields are
// omitted from the request; a zero IncidentFilters matches everything.
type IncidentFilters struct {
	TimeRange    *TimeRangeFilter `json:"time_range_filter,omitempty"`
	IncidentIDs  []string         `json:"incident_id_filters,omitempty"`
	Other        []string         `json:"other_filters,omitempty"`
	Priorities   []string         `json:"priority_filters,omitempty"`
	Sources      []string         `json:"source_filters,omitempty"`
	Dispositions []string         `json:"disposition_filters,omitempty"`
	Verdicts     []string         `json:"verdict_filters,omitempty"`
	Confidences  []string         `json:"confidence_filters,omitempty"`
}

// Validate checks the time range and that no list holds blank values.
func (f IncidentFilters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.TimeRange),
		validation.Field(&f.IncidentIDs, nonBlankItems),
		validation.Field(&f.Other, nonBlankItems),
		validation.Field(&f.Priorities, nonBlankItems),
		validation.Field(&f.Sources, nonBlankItems),
		validation.Field(&f.Dispositions, nonBlankItems),
		validation.Field(&f.Verdicts, nonBlankItems),
		validation.Field(&f.Confidences, nonBlankItems),
	)
}

// MessageFilters narrows a message search. It accepts every incident filter
// plus the message specific ones.
type MessageFilters struct {
	IncidentFilters

	MessageIDs         []string `json:"message_id_filters,omitempty"`
	RecipientAddresses []string `json:"recipient_address_filters,omitempty"`
	SenderAddresses    []string `json:"sender_address_filters,omitempty"`
	Subjects           []string `json:"subject_filters,omitempty"`
	Statuses           []string `json:"status_filters,omitempty"`
	Quarantines        []string `json:"quarantine_filters,omitempty"`
	TAPThreats         []string `json:"tap_threat_filters,omitempty"`
	TAPThreatTypes     []string `json:"tap_threat_type_filters,omitempty"`
}

// Validate checks the embedded incident filters and the message lists.
func (f MessageFilters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.IncidentFilters),
		validation.Field(&f.MessageIDs, nonBlankItems),
		validation.Field(&f.RecipientAddresses, nonBlankItems),
		validation.Field(&f.SenderAddresses, nonBlankItems),
		validation.Field(&f.Subjects, nonBlankItems),
		validation.Field(&f.Statuses, nonBlankItems),
		validation.Field(&f.Quarantines, nonBlankItems),
		validation.Field(&f.TAPThreats, nonBlankItems),
		validation.Field(&f.TAPThreatTypes, nonBlankItems),
	)
}

var nonBlankItems = validation.Each(validation.Required, validation.By(notWhitespace))

func notWhitespace(value any) error {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// ============================================================================
// Sorting
// ============================================================================

// SortDirection orders a sorted column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortParam orders results by one column.
type SortParam struct {
	ColID string        `json:"colId"`
	Sort  SortDirection `json:"sort"`
}

// Validate requires a column and a known direction.
func (p SortParam) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ColID, validation.Required),
		validation.Field(&p.Sort, validation.Required, validation.In(SortAsc, SortDesc)),
	)
}

// ParseSortParam parses "column" or "column:direction". The direction
// defaults to ascending.
func ParseSortParam(s string) (SortParam, error) {
	col, dir, found := strings.Cut(strings.TrimSpace(s), ":")
	p := SortParam{ColID: strings.TrimSpace(col), Sort: SortAsc}
	if found {
		p.Sort = SortDirection(strings.ToLower(strings.TrimSpace(dir)))
	}

	if err := p.Validate(); err != nil {
		return SortParam{}, wrapValidation(fmt.Sprintf("invalid sort %q", s), err)
	}
	return p, nil
}

// ============================================================================
// Pagination
// ============================================================================

// Page selects the half-open row window [StartRow, EndRow).
type Page struct {
	StartRow int `json:"startRow"`
	EndRow   int `json:"endRow"`
}

// MaxMessagePageSize is the largest window the messages endpoint serves.
const MaxMessagePageSize = 100

var (
	// DefaultIncidentPage is used by SearchIncidents when no page is given.
	DefaultIncidentPage = Page{StartRow: 0, EndRow: 200}

	// DefaultMessagePage is used by SearchMessages and
	// GetIncidentWithMessageDetails when no page is given.
	DefaultMessagePage = Page{StartRow: 0, EndRow: 100}
)

// Size returns the number of rows in the window.
func (p Page) Size() int {
	return p.EndRow - p.StartRow
}

// Next returns the window of the same size immediately after p.
func (p Page) Next() Page {
	return Page{StartRow: p.EndRow, EndRow: p.EndRow + p.Size()}
}

// Validate requires StartRow >= 0 and EndRow > StartRow.
func (p Page) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.StartRow, validation.Min(0)),
		validation.Field(&p.EndRow, validation.By(func(any) error {
			if p.EndRow <= p.StartRow {
				return errors.New("must be greater than startRow")
			}
			return nil
		})),
	)
}

func (p Page) validateMax(maxSize int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Size() > maxSize {
		return validation.Errors{"endRow": fmt.Errorf("window may span at most %d rows", maxSize)}
	}
	return nil
}

func pageOrDefault(p *Page, def Page) Page {
	if p == nil {
		return def
	}
	return *p
}

func validateSort(params []SortParam) error {
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return validation.Errors{fmt.Sprintf("sortParams[%d]", i): err}
		}
	}
	return nil
}
