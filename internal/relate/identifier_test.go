package relate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIdentifierUserDN(t *testing.T) {
	id, mtype := ParseIdentifier("uid=jdoe,ou=People,dc=umich,dc=edu")
	assert.Equal(t, "jdoe", id)
	assert.Equal(t, MemberUser, mtype)
}

func TestParseIdentifierGroupDN(t *testing.T) {
	id, mtype := ParseIdentifier("cn=lsa-staff,ou=User Groups,dc=umich,dc=edu")
	assert.Equal(t, "lsa-staff", id)
	assert.Equal(t, MemberGroup, mtype)
}

func TestParseIdentifierUnknownDN(t *testing.T) {
	_, mtype := ParseIdentifier("cn=something,ou=Computers,dc=umich,dc=edu")
	assert.Equal(t, MemberUnknown, mtype)
}

func TestParseIdentifierBareGroupPrefix(t *testing.T) {
	id, mtype := ParseIdentifier("lsa-chemistry-staff")
	assert.Equal(t, "lsa-chemistry-staff", id)
	assert.Equal(t, MemberGroup, mtype)
}

func TestParseIdentifierBareAmbiguousLeansUser(t *testing.T) {
	id, mtype := ParseIdentifier("jdoe")
	assert.Equal(t, "jdoe", id)
	assert.Equal(t, MemberUser, mtype)
}

func TestParseIdentifierBlankIsUnknown(t *testing.T) {
	_, mtype := ParseIdentifier("   ")
	assert.Equal(t, MemberUnknown, mtype)
}
