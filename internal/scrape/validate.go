package scrape

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidURL is returned for input that is not a listing detail URL.
var ErrInvalidURL = eris.New("scrape: not a kleinanzeigen listing url")

var listingURLRe = regexp.MustCompile(`^https?://(?:www\.)?kleinanzeigen\.de/s-anzeige/.+/\d+-\d+-\d+$`)

// NormalizeListingURL trims the input, prepends https:// when no scheme is
// given, and checks it against the listing URL shape.
func NormalizeListingURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", eris.Wrap(ErrInvalidURL, "empty url")
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	if !listingURLRe.MatchString(u) {
		return "", eris.Wrapf(ErrInvalidURL, "url %q", u)
	}
	return u, nil
}
