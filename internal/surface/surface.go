package surface

import (
	"errors"
	"strings"
)

const scheme = "app"

var ErrNoApplicationID = errors.New("application id is not available")

// Surface is an addressable location within the app that content can target.
type Surface struct {
	uri string
}

// New builds the base surface for an app, or the sub-path surface when path is
// non-empty.
func New(appID, path string) Surface {
	if path == "" {
		return Surface{uri: scheme + "://" + appID}
	}
	return Surface{uri: scheme + "://" + appID + "/" + strings.TrimPrefix(path, "/")}
}

func (s Surface) URI() string {
	return s.uri
}

func (s Surface) IsZero() bool {
	return s.uri == ""
}

// Resolve turns caller-supplied sub-paths into surface URIs for the given app.
//
// A nil paths list yields the single base-app surface. Empty entries are
// dropped silently; if the caller passed a non-empty list and every entry was
// dropped, the result is empty, which callers must treat as "do not send a
// fetch request". An empty appID fails resolution outright.
func Resolve(appID string, paths []string) ([]Surface, error) {
	if appID == "" {
		return nil, ErrNoApplicationID
	}
	if paths == nil {
		return []Surface{New(appID, "")}, nil
	}
	surfaces := make([]Surface, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		surfaces = append(surfaces, New(appID, p))
	}
	return surfaces, nil
}

// Contains reports whether uri matches one of the resolved surfaces.
func Contains(surfaces []Surface, uri string) bool {
	for _, s := range surfaces {
		if s.uri == uri {
			return true
		}
	}
	return false
}

// URIs flattens surfaces for outbound request payloads.
func URIs(surfaces []Surface) []string {
	out := make([]string, len(surfaces))
	for i, s := range surfaces {
		out[i] = s.uri
	}
	return out
}
