package delivery

import "regexp"

var urlPattern = regexp.MustCompile(`^(https?://)([a-zA-Z0-9-]+\.)*[a-zA-Z0-9-]+(:[0-9]{1,5})?(/[^\s]*)?$`)

// isURL reports whether s is an absolute http or https URL with a plain
// host name, as written by clients once a media upload completes.
func isURL(s string) bool {
	return urlPattern.MatchString(s)
}
