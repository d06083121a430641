package relay

import (
	"net/url"
	"strings"
)

// Callback query parameters attached by the auth origin's redirect.
const (
	paramToken   = "auth_token"
	paramExpires = "expires"
	paramNext    = "next"
)

// Callback is the token hand-off extracted from a page URL.
type Callback struct {
	Token   string
	Expires string
	Next    string
}

// ConsumeCallback extracts the hand-off parameters from pageURL and
// returns the scrubbed URL the page should replace its address with.
// The token must never survive in the visible URL: it would leak through
// referrer headers and browser history.
//
// ok is false when the URL carries no token; the URL is returned
// unchanged in that case.
func ConsumeCallback(pageURL *url.URL) (cb Callback, scrubbed *url.URL, ok bool) {
	if pageURL == nil {
		return Callback{}, nil, false
	}

	q := pageURL.Query()
	token := strings.TrimSpace(q.Get(paramToken))
	if token == "" {
		return Callback{}, pageURL, false
	}

	cb = Callback{
		Token:   token,
		Expires: strings.TrimSpace(q.Get(paramExpires)),
		Next:    strings.TrimSpace(q.Get(paramNext)),
	}

	q.Del(paramToken)
	q.Del(paramExpires)
	q.Del(paramNext)

	clean := *pageURL
	clean.RawQuery = q.Encode()
	return cb, &clean, true
}
