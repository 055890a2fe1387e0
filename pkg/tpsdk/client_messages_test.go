package tpsdk

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk/tptest"
	"github.com/stretchr/testify/require"
)

const messagePath = apiPrefix + "/messages/MSG-1"

func TestSearchMessages(t *testing.T) {
	t.Parallel()

	t.Run("default page", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		srv.Handle(http.MethodPost, apiPrefix+"/messages", tptest.JSON(http.StatusOK, map[string]any{"messages": []any{}}))
		c := newTestClient(t, srv)

		_, err := c.SearchMessages(context.Background(), MessageSearch{})
		require.NoError(t, err)
		require.JSONEq(t, `{"startRow":0,"endRow":100}`, string(srv.LastCall(t).Body))
	})

	t.Run("message filters are flattened", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		srv.Handle(http.MethodPost, apiPrefix+"/messages", tptest.JSON(http.StatusOK, map[string]any{}))
		c := newTestClient(t, srv)

		_, err := c.SearchMessages(context.Background(), MessageSearch{
			Filters: &MessageFilters{
				IncidentFilters: IncidentFilters{Dispositions: []string{"malicious"}},
				SenderAddresses: []string{"attacker@example.net"},
				TAPThreatTypes:  []string{"url"},
			},
			Page: &Page{StartRow: 0, EndRow: 25},
		})
		require.NoError(t, err)
		require.JSONEq(t, `{
			"startRow": 0,
			"endRow": 25,
			"filters": {
				"disposition_filters": ["malicious"],
				"sender_address_filters": ["attacker@example.net"],
				"tap_threat_type_filters": ["url"]
			}
		}`, string(srv.LastCall(t).Body))
	})

	t.Run("windows above the cap are rejected", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		c := newTestClient(t, srv)

		_, err := c.SearchMessages(context.Background(), MessageSearch{Page: &Page{StartRow: 0, EndRow: 101}})
		require.True(t, IsValidation(err))

		_, err = c.SearchMessages(context.Background(), MessageSearch{Page: &Page{StartRow: 300, EndRow: 200}})
		require.True(t, IsValidation(err))

		_, err = c.SearchMessages(context.Background(), MessageSearch{
			Filters: &MessageFilters{Subjects: []string{""}},
		})
		require.True(t, IsValidation(err))

		require.Empty(t, srv.Calls())
	})
}

func TestMessageRecords(t *testing.T) {
	t.Parallel()

	srv := tptest.NewServer(t)
	srv.Handle(http.MethodGet, messagePath, tptest.JSON(http.StatusOK, map[string]any{"id": "MSG-1"}))
	srv.Handle(http.MethodGet, messagePath+"/fetch", tptest.JSON(http.StatusOK, map[string]any{"status": "started"}))
	srv.Handle(http.MethodGet, messagePath+"/fetchStatus", tptest.JSON(http.StatusOK, map[string]any{"status": "complete"}))
	c := newTestClient(t, srv)

	rec, err := c.GetMessageDetails(context.Background(), "MSG-1")
	require.NoError(t, err)
	require.Equal(t, "MSG-1", rec["id"])

	rec, err = c.FetchMessageBody(context.Background(), "MSG-1")
	require.NoError(t, err)
	require.Equal(t, "started", rec["status"])

	rec, err = c.GetMessageFetchStatus(context.Background(), "MSG-1")
	require.NoError(t, err)
	require.Equal(t, "complete", rec["status"])

	calls := srv.Calls()
	require.Len(t, calls, 3)
	for _, call := range calls {
		require.Equal(t, http.MethodGet, call.Method)
		require.Empty(t, call.Body)
	}

	for _, fn := range []func(context.Context, string) (Record, error){
		c.GetMessageDetails, c.FetchMessageBody, c.GetMessageFetchStatus,
	} {
		_, err := fn(context.Background(), "   ")
		require.True(t, IsValidation(err))
	}
	require.Len(t, srv.Calls(), 3)
}

func TestDownloadMessageMIME(t *testing.T) {
	t.Parallel()

	mime := []byte("From: attacker@example.net\r\n" +
		"To: victim@example.com\r\n" +
		"Subject: invoice\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"\x00\xff\xfe binary \r\n\r\n")

	srv := tptest.NewServer(t)
	srv.Handle(http.MethodGet, messagePath+"/download", tptest.Raw(http.StatusOK, "message/rfc822", mime))
	c := newTestClient(t, srv)

	got, err := c.DownloadMessageMIME(context.Background(), "MSG-1")
	require.NoError(t, err)
	require.True(t, bytes.Equal(mime, got))
	require.Contains(t, srv.LastCall(t).Header.Get("Accept"), "message/rfc822")

	path := filepath.Join(t.TempDir(), "MSG-1.eml")
	require.NoError(t, os.WriteFile(path, got, 0o600))
	reread, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, mime, reread)

	_, err = c.DownloadMessageMIME(context.Background(), "")
	require.True(t, IsValidation(err))
}

func TestDownloadMessageMIMENotFound(t *testing.T) {
	t.Parallel()

	srv := tptest.NewServer(t)
	c := newTestClient(t, srv)

	_, err := c.DownloadMessageMIME(context.Background(), "MSG-404")
	require.True(t, IsAPIError(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusNotFound, e.StatusCode)
}
