// Package urlutil provides URL canonicalisation for job and listing
// URLs. Both exported normalisations are idempotent: applying them to
// their own output returns the same string.
package urlutil

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// UserAgent is the desktop browser identity shared by the HTTP client
// and the headless renderer.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/124.0 Safari/537.36"

var repeatedResultsRe = regexp.MustCompile(`(/jobs/results)(?:/jobs/results)+`)

// Params that must not affect job identity: pagination, referral
// tracking, analytics, and coarse location facets.
var jobIgnoreParams = map[string]struct{}{
	"page": {}, "start": {}, "offset": {},
	"ref": {}, "referral": {}, "src": {}, "source": {},
	"gh_src": {}, "gh_jid": {},
	"_gl": {}, "_ga": {}, "_gac": {},
	"locations": {}, "location": {},
	"locationhierarchy1": {}, "locationhierarchy2": {},
	"locationcity": {}, "locationstate": {},
	"lat": {}, "lng": {},
}

type queryPair struct {
	key   string
	value string
}

// parseQueryPairs splits a raw query string into ordered key/value
// pairs, keeping blank values. Unescape failures leave the token as-is
// so a malformed query still round-trips.
func parseQueryPairs(rawQuery string) []queryPair {
	if rawQuery == "" {
		return nil
	}
	parts := strings.Split(rawQuery, "&")
	pairs := make([]queryPair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if ku, err := url.QueryUnescape(k); err == nil {
			k = ku
		}
		if vu, err := url.QueryUnescape(v); err == nil {
			v = vu
		}
		pairs = append(pairs, queryPair{key: k, value: v})
	}
	return pairs
}

// encodeQueryPairs encodes pairs in the given order, with spaces as
// %20 rather than '+'.
func encodeQueryPairs(pairs []queryPair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeQueryToken(p.key))
		b.WriteByte('=')
		b.WriteString(escapeQueryToken(p.value))
	}
	return b.String()
}

func escapeQueryToken(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sortPairsStable(pairs []queryPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
}

// CanonicalJobURL canonicalises a job detail URL: collapses accidental
// repeated /jobs/results/ segments, drops volatile params (utm, gh_src,
// pagination, location facets), and sorts the surviving params so the
// result is stable under repeat application. Scheme, host, path, and
// fragment are preserved.
func CanonicalJobURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Path = repeatedResultsRe.ReplaceAllString(u.Path, "$1")

	pairs := parseQueryPairs(u.RawQuery)
	kept := pairs[:0]
	for _, p := range pairs {
		lk := strings.ToLower(p.key)
		if _, drop := jobIgnoreParams[lk]; drop {
			continue
		}
		if strings.HasPrefix(lk, "utm_") {
			continue
		}
		kept = append(kept, p)
	}
	sortPairsStable(kept)
	u.RawQuery = encodeQueryPairs(kept)
	return u.String()
}

// NormalizePageIdentity normalises a listing-page URL for dedup within
// one scrape session: first-page markers (page=1 and friends, start=0
// and friends) are removed and the remaining params are sorted, with
// spaces encoded as %20.
func NormalizePageIdentity(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	pairs := parseQueryPairs(u.RawQuery)
	kept := pairs[:0]
	for _, p := range pairs {
		switch p.key {
		case "page", "pg", "p", "pageNumber":
			if p.value == "1" {
				continue
			}
		case "start", "offset", "from", "startrow":
			if p.value == "0" {
				continue
			}
		}
		kept = append(kept, p)
	}
	sortPairsStable(kept)
	u.RawQuery = encodeQueryPairs(kept)
	return u.String()
}

// Absolute resolves a possibly-relative href against base. Invalid
// inputs return the href unchanged.
func Absolute(href, base string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	r, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(r).String()
}

// IsHTTPURL reports whether href is a fetchable http(s) or relative
// URL, rejecting mailto:, tel:, and javascript: links.
func IsHTTPURL(href string) bool {
	if href == "" {
		return false
	}
	for _, p := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(href, p) {
			return false
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https" || (u.Scheme == "" && u.Path != "")
}
