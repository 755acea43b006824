package account

import (
	"net/url"
	"strings"
)

// IngressURL builds the public https URL of an ingress rule from its
// hostname and optional path. Leading slashes on the path collapse to one,
// the hostname is lower-cased and the path is percent-encoded. An empty
// path yields no trailing slash.
//
// The hostname is written as configured, so internationalized names stay
// readable rather than being percent-encoded. A rule with a path but no
// hostname renders with an empty authority, e.g. "https:///foo".
func IngressURL(hostname, path string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))

	var escaped string
	if p := strings.TrimLeft(path, "/"); p != "" {
		escaped = (&url.URL{Path: "/" + p}).EscapedPath()
	}

	return "https://" + host + escaped
}
