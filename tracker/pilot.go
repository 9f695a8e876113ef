package tracker

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skypies/geo"

	"github.com/ridgelift/livetrack/snapshot"
)

// Pilot is one tracked entity. Only the last processed point is kept; it is
// the watermark that decides which samples are new.
type Pilot struct {
	Name      string
	LastPoint snapshot.Point
	Home      geo.Latlong // optional; IsNil() when unset
}

// DisplayURL builds the link to the pilot's track on the livetrack site: the
// json endpoint is dropped from the path, existing query params are kept, and
// hLg=<name> is appended so the site centers on this pilot.
func (p Pilot) DisplayURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return fmt.Sprintf("[Tracking](%s)", sourceURL)
	}

	res := fmt.Sprintf("%s://%s%s?", u.Scheme, u.Host,
		strings.Replace(u.Path, "/json4Others.php", "", 1))
	if u.RawQuery != "" {
		res += u.RawQuery + "&"
	}
	return fmt.Sprintf("[Tracking](%shLg=%s)", res, p.Name)
}
