/*
Package tpsdk provides a client SDK for the Proofpoint Threat Protection API
(incident and message triage, and manual workflows).

# Overview

The package is organized around two types:

  - TokenManager: Owns the OAuth2 client-credentials exchange and caches the current bearer token
  - Client: Calls the API, attaching a valid token to every request

NewClient validates the credentials and performs the first token exchange
before returning, so rejected credentials are reported immediately:

	client, err := tpsdk.NewClient(ctx, clientID, clientSecret,
		tpsdk.WithLogger(logger),
		tpsdk.WithTimeout(15*time.Second),
	)
	if err != nil {
		return err
	}

	count, err := client.GetIncidentCount(ctx, tpsdk.IncidentFilters{
		TimeRange: tpsdk.LastDays(time.Now(), 7),
		Sources:   []string{"TAP"},
	})

# Token Lifecycle

Every Client method calls TokenManager.ValidToken internally, which:

 1. Returns the cached token if it is still valid for at least the expiry skew (DefaultExpirySkew)
 2. Otherwise performs one client-credentials exchange and caches the result
 3. Leaves the previous token in place if the exchange fails

Concurrent callers that find the cache empty or expired share a single
exchange. The token lifetime is taken from expires_in, then from the exp
claim of a JWT access token, and finally defaults to DefaultTokenLifetime.

If the API answers 401 the Client refreshes the token once and resends the
request once. A second 401 is returned to the caller. Disable this with
WithReauthRetry(false). A 403 is never retried.

# Filters, Sorting and Paging

Searches take an IncidentSearch or MessageSearch. Nil pages fall back to
DefaultIncidentPage and DefaultMessagePage. Message windows may span at most
MaxMessagePageSize rows. Every input is validated before any network call.

	page := tpsdk.Page{StartRow: 0, EndRow: 50}
	res, err := client.SearchMessages(ctx, tpsdk.MessageSearch{
		Filters: &tpsdk.MessageFilters{
			IncidentFilters: tpsdk.IncidentFilters{Priorities: []string{"high"}},
			SenderAddresses: []string{"attacker@example.com"},
		},
		Page: &page,
		Sort: []tpsdk.SortParam{{ColID: "createdAt", Sort: tpsdk.SortDesc}},
	})

# Error Handling

Every method returns *Error. Its Kind is one of:

  - KindValidation: Malformed input, no request was sent
  - KindAuth: The token endpoint failed, or the API answered 401 or 403
  - KindBadRequest: The API answered 400
  - KindRateLimit: The API answered 429; RetryAfter carries the server's hint
  - KindAPI: Any other non-2xx status
  - KindTransport: No response was received; also matches ErrAPI

Example:

	_, err := client.SearchIncidents(ctx, search)
	switch {
	case tpsdk.IsRateLimited(err):
		var e *tpsdk.Error
		errors.As(err, &e)
		time.Sleep(e.RetryAfter)
	case errors.Is(err, tpsdk.ErrAuth):
		return fmt.Errorf("check credentials: %w", err)
	case err != nil:
		return err
	}

The SDK never retries on its own apart from the single re-authentication
described above.

# Thread Safety

Client and TokenManager are safe for concurrent use. Share one Client per
credential pair.
*/
package tpsdk
