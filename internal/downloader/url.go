package downloader

import (
	"net/url"
	"strings"
)

const (
	shortLinkMarker   = "youtu.be"
	canonicalWatchURL = "https://music.youtube.com/watch?v="
)

// trackMarkers identify links to a single track (Spotify, YouTube Music)
var trackMarkers = []string{"track", "watch"}

// ExtractTrackURL pulls the track link out of a "/command <url>" message.
// The text is split on space, semicolon and ampersand so anything chained
// after the link is dropped. Short youtu.be links are rewritten into the
// canonical YouTube Music form. ok is false for anything that is not an
// absolute http(s) link to a single track.
func ExtractTrackURL(text string) (string, bool) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ';' || r == '&'
	})
	if len(tokens) < 2 {
		return "", false
	}
	candidate := strings.TrimSpace(tokens[1])
	if candidate == "" {
		return "", false
	}

	if strings.Contains(candidate, shortLinkMarker) {
		rewritten, ok := rewriteShortLink(candidate)
		if !ok {
			return "", false
		}
		candidate = rewritten
	} else if !containsAny(candidate, trackMarkers) {
		return "", false
	}

	if !isHTTPURL(candidate) {
		return "", false
	}
	return candidate, true
}

func rewriteShortLink(link string) (string, bool) {
	id := link[strings.LastIndex(link, "/")+1:]
	if i := strings.Index(id, "?"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", false
	}
	return canonicalWatchURL + id, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
