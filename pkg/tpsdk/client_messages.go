package tpsdk

import (
	"context"
	"net/http"
)

// SearchMessages returns one page of messages matching s. Windows larger
// than MaxMessagePageSize are rejected.
func (c *Client) SearchMessages(ctx context.Context, s MessageSearch) (Record, error) {
	page := pageOrDefault(s.Page, DefaultMessagePage)
	if err := page.validateMax(MaxMessagePageSize); err != nil {
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
			return nil, wrapValidation("invalid message filters", err)
		}
		req.Filters = s.Filters
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/messages",
		body:   req,
	})
}

// GetMessageDetails returns a single message.
func (c *Client) GetMessageDetails(ctx context.Context, messageID string) (Record, error) {
	return c.messageRecord(ctx, messageID, "")
}

// FetchMessageBody asks the API to pull the message body from the
// recipient's mailbox. It returns as soon as the fetch has started; poll
// GetMessageFetchStatus for progress.
func (c *Client) FetchMessageBody(ctx context.Context, messageID string) (Record, error) {
	return c.messageRecord(ctx, messageID, "/fetch")
}

// GetMessageFetchStatus reports the progress of a FetchMessageBody call.
func (c *Client) GetMessageFetchStatus(ctx context.Context, messageID string) (Record, error) {
	return c.messageRecord(ctx, messageID, "/fetchStatus")
}

// DownloadMessageMIME returns the raw MIME (.eml) content of a message,
// byte for byte.
func (c *Client) DownloadMessageMIME(ctx context.Context, messageID string) ([]byte, error) {
	id, err := pathID("message ID", messageID)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, request{
		method: http.MethodGet,
		path:   apiPrefix + "/messages/" + id + "/download",
		accept: "message/rfc822, application/octet-stream;q=0.9, */*;q=0.1",
	})
}

func (c *Client) messageRecord(ctx context.Context, messageID, suffix string) (Record, error) {
	id, err := pathID("message ID", messageID)
	if err != nil {
		return nil, err
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodGet,
		path:   apiPrefix + "/messages/" + id + suffix,
	})
}
