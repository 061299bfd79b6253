package uri

import "strings"

// Parse splits raw into its decoded path and query parameters.
// raw may be an origin-form target ("/a?b=c") or an absolute URI
// ("http://host/a?b=c"). A fragment is discarded.
func Parse(raw string) (string, Params) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	raw = stripSchemeAndHost(raw)

	rawPath, rawQuery, _ := strings.Cut(raw, "?")
	return decode(rawPath, false), ParseQuery(rawQuery)
}

// ParseQuery parses a query string (without the leading '?').
func ParseQuery(query string) Params {
	params := NewParams()
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params.Add(decode(key, true), decode(value, true))
	}
	return params
}

func stripSchemeAndHost(raw string) string {
	i := strings.Index(raw, "://")
	if i <= 0 || strings.ContainsAny(raw[:i], "/?") {
		return raw
	}
	rest := raw[i+3:]
	if j := strings.IndexAny(rest, "/?"); j >= 0 {
		if rest[j] == '?' {
			return "/" + rest[j:]
		}
		return rest[j:]
	}
	return "/"
}

// decode percent-decodes s. Sequences that are not a '%' followed by two
// hex digits are kept verbatim. When plusAsSpace is set '+' becomes ' '.
func decode(s string, plusAsSpace bool) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case c == '+' && plusAsSpace:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
