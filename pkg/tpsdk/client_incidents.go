package tpsdk

import (
	"context"
	"encoding/json"
	"net/http"
)

// SearchIncidents returns one page of incidents matching s, as the API's
// paged result object.
func (c *Client) SearchIncidents(ctx context.Context, s IncidentSearch) (Record, error) {
	page := pageOrDefault(s.Page, DefaultIncidentPage)
	if err := page.Validate(); err != nil {
		return nil, wrapValidation("invalid page", err)
	}
	if err := validateSort(s.Sort); err != nil {
		return nil, wrapValidation("invalid sort", err)
	}

	req := searchRequest{
		StartRow:   page.StartRow,
		EndRow:     page.EndRow,
		SortParams: s.Sort,
	}
	if s.Filters != nil {
		if err := s.Filters.Validate(); err != nil {
			return nil, wrapValidation("invalid incident filters", err)
		}
		req.Filters = s.Filters
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/incidents",
		body:   req,
	})
}

// GetIncidentCount returns how many incidents match filters.
func (c *Client) GetIncidentCount(ctx context.Context, filters IncidentFilters) (int, error) {
	if err := filters.Validate(); err != nil {
		return 0, wrapValidation("invalid incident filters", err)
	}

	raw, err := doJSON[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/incidents/count",
		body:   countRequest{Filters: filters},
	})
	if err != nil {
		return 0, err
	}

	return decodeCount(raw)
}

// decodeCount accepts a bare integer, which is what the endpoint documents,
// or an object with a count field.
func decodeCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var obj struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Count == nil {
		return 0, &Error{
			Kind:    KindAPI,
			Message: "unexpected incident count response",
			Body:    string(raw),
			Err:     err,
		}
	}
	return *obj.Count, nil
}

// GetIncidentDetails returns a single incident.
func (c *Client) GetIncidentDetails(ctx context.Context, incidentID string) (Record, error) {
	id, err := pathID("incident ID", incidentID)
	if err != nil {
		return nil, err
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodGet,
		path:   apiPrefix + "/incidents/" + id,
	})
}

// GetIncidentWithMessageDetails returns an incident together with one page
// of its messages. A nil page means DefaultMessagePage.
func (c *Client) GetIncidentWithMessageDetails(
	ctx context.Context,
	incidentID string,
	page *Page,
	sort []SortParam,
) (Record, error) {
	id, err := pathID("incident ID", incidentID)
	if err != nil {
		return nil, err
	}

	p := pageOrDefault(page, DefaultMessagePage)
	if err := p.Validate(); err != nil {
		return nil, wrapValidation("invalid page", err)
	}
	if err := validateSort(sort); err != nil {
		return nil, wrapValidation("invalid sort", err)
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/incidents/" + id + "/messages",
		body: searchRequest{
			StartRow:   p.StartRow,
			EndRow:     p.EndRow,
			SortParams: sort,
		},
	})
}

// CreateIncident creates an incident by hand. The response carries the new
// incident's id, createdAt and displayId.
func (c *Client) CreateIncident(ctx context.Context, in NewIncident) (Record, error) {
	if err := in.Validate(); err != nil {
		return nil, wrapValidation("invalid incident", err)
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/incidents/createIncident",
		body:   in,
	})
}

// UploadMessage attaches a message to an existing incident.
func (c *Client) UploadMessage(ctx context.Context, up MessageUpload) (Record, error) {
	if err := up.Validate(); err != nil {
		return nil, wrapValidation("invalid message upload", err)
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/incidents/uploadMessage",
		body:   up,
	})
}
