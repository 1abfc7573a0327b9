package sourceclient

import "errors"

// ErrNoDetailEndpoint is returned by DetailFetcher implementations for
// sources whose list endpoint already returns full records (LDAP, CSV).
var ErrNoDetailEndpoint = errors.New("sourceclient: source has no per-id detail endpoint")
