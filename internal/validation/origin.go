package validation

import (
	"net/url"
	"strings"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

// Origin checks that s is a browser origin: an http(s) scheme and a host,
// with no path, query or fragment. "*" is accepted as a wildcard.
func Origin(s, field string) error {
	if s == "*" {
		return nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return errs.Validation(field, field+": invalid origin "+s)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return errs.Validation(field, field+": origin must include a scheme (http:// or https://): "+s)
	default:
		return errs.Validation(field, field+": origin scheme must be http or https: "+s)
	}

	if u.Host == "" {
		return errs.Validation(field, field+": origin must include a host: "+s)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return errs.Validation(field, field+": origin must not contain a path, query or fragment: "+s)
	}
	return nil
}

// Origins validates every entry of list.
func Origins(list []string, field string) error {
	for _, o := range list {
		if err := Origin(o, field); err != nil {
			return err
		}
	}
	return nil
}
