package sourceclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/lsats/databridge/internal/config"
)

// LDAPClient searches a directory (Active Directory or MCommunity) and
// returns each entry as a Record keyed by attribute name. A search already
// returns complete entries, so Detail is unsupported (spec.md §4.5.1: "LDAP
// entities ... extract DN, sAMAccountName/uid, CN, description" straight
// off the list response).
type LDAPClient struct {
	cfg        config.LDAPConfig
	filter     string
	attributes []string
}

// NewLDAPClient builds a client against one directory. filter is the LDAP
// search filter for the target object class (e.g.
// "(objectClass=organizationalPerson)" for AD users,
// "(objectClass=group)" for groups). attributes, when empty, requests all
// user attributes plus operational ones (whenChanged).
func NewLDAPClient(cfg config.LDAPConfig, filter string, attributes ...string) *LDAPClient {
	return &LDAPClient{cfg: cfg, filter: filter, attributes: attributes}
}

func (c *LDAPClient) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing ldap %s: %w", c.cfg.URL, err)
	}
	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("binding ldap as %s: %w", c.cfg.BindDN, err)
		}
	}
	return conn, nil
}

// List runs the configured search against BaseDN. LDAP has no reliable
// server-side "changed since" filter across both AD and MCommunity, so
// `since` is accepted for interface symmetry but ignored here; the
// ingester filters client-side on whenChanged/modifyTimestamp per
// spec.md §4.3 step 4.
func (c *LDAPClient) List(ctx context.Context, since *time.Time) ([]Record, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	attrs := c.attributes
	if len(attrs) == 0 {
		attrs = []string{"*", "whenChanged", "modifyTimestamp"}
	}

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		c.filter, attrs, nil,
	)

	var records []Record
	pageSize := uint32(1000)
	result, err := conn.SearchWithPaging(req, pageSize)
	if err != nil {
		return nil, fmt.Errorf("searching ldap (base=%s filter=%s): %w", c.cfg.BaseDN, c.filter, err)
	}
	for _, entry := range result.Entries {
		rec := Record{"dn": entry.DN}
		for _, attr := range entry.Attributes {
			if len(attr.Values) == 1 {
				rec[attr.Name] = attr.Values[0]
			} else {
				rec[attr.Name] = append([]string{}, attr.Values...)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Detail is unsupported: LDAP search entries are already complete.
func (c *LDAPClient) Detail(ctx context.Context, externalID string) (Record, error) {
	return nil, ErrNoDetailEndpoint
}
