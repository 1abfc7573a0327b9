package hashing

import "strings"

// NormalizeMAC uppercases a MAC address and strips common separators
// (colon, hyphen, dot), matching spec.md §4.2's comparison rule so that
// "aa:bb:cc:dd:ee:ff" and "AABBCCDDEEFF" are considered equal.
func NormalizeMAC(mac string) string {
	mac = strings.ToUpper(SafeTrim(mac))
	replacer := strings.NewReplacer(":", "", "-", "", ".", "")
	return replacer.Replace(mac)
}

// NormalizeUniqname lowercases a uniqname or an email local-part.
func NormalizeUniqname(s string) string {
	return strings.ToLower(SafeTrim(s))
}

// NormalizeUUID returns "" (treated as null downstream) for the sentinel
// all-zero UUID, otherwise the trimmed input unchanged. The raw value is
// still preserved verbatim in Bronze raw_data for audit (spec.md §9).
func NormalizeUUID(id string) string {
	trimmed := SafeTrim(id)
	if strings.EqualFold(trimmed, "00000000-0000-0000-0000-000000000000") {
		return ""
	}
	return trimmed
}

// NullIfBlank treats an empty or whitespace-only string as the Go zero
// value for "null" (callers typically store this as sql.NullString with
// Valid=false).
func NullIfBlank(s string) (string, bool) {
	trimmed := SafeTrim(s)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// StringSlice normalizes a value that may come back from an LDAP-style
// source as either a single string or a slice of strings into a []string,
// per spec.md §4.5.1 ("member, memberOf, owner, servicePrincipalName,
// proxyAddresses ... source may return single-string or array").
func StringSlice(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if trimmed := SafeTrim(val); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if trimmed := SafeTrim(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				if trimmed := SafeTrim(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	default:
		return nil
	}
}
