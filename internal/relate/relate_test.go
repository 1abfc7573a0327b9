package relate

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsats/databridge/internal/storage"
)

func TestExtractMembersDedupesAndMarksADDirect(t *testing.T) {
	groups := []GroupInput{
		{
			GroupID:      "g1",
			SourceSystem: "active_directory",
			Members: []string{
				"uid=jdoe,ou=People,dc=umich,dc=edu",
				"uid=jdoe,ou=People,dc=umich,dc=edu", // duplicate within list
			},
		},
	}

	rows := ExtractMembers(groups)
	require.Len(t, rows, 1)
	assert.Equal(t, "jdoe", rows[0].MemberID)
	assert.Equal(t, MemberUser, rows[0].MemberType)
	assert.True(t, rows[0].IsDirect, "AD membership is always direct")
}

func TestExtractMembersMCommunityDirectOnlyWhenListed(t *testing.T) {
	groups := []GroupInput{
		{
			GroupID:       "g2",
			SourceSystem:  "mcommunity_ldap",
			Members:       []string{"uid=asmith,ou=People,dc=umich,dc=edu", "uid=bwong,ou=People,dc=umich,dc=edu"},
			DirectMembers: []string{"uid=asmith,ou=People,dc=umich,dc=edu"},
		},
	}

	rows := ExtractMembers(groups)
	require.Len(t, rows, 2)

	byID := map[string]MemberRow{}
	for _, r := range rows {
		byID[r.MemberID] = r
	}
	assert.True(t, byID["asmith"].IsDirect)
	assert.False(t, byID["bwong"].IsDirect)
}

func TestExtractMembersDiscardsUnknown(t *testing.T) {
	groups := []GroupInput{
		{GroupID: "g3", SourceSystem: "active_directory", Members: []string{"cn=foo,ou=Computers,dc=umich,dc=edu"}},
	}
	assert.Empty(t, ExtractMembers(groups))
}

func TestExtractOwnersDedupes(t *testing.T) {
	groups := []GroupInput{
		{
			GroupID:      "g1",
			SourceSystem: "active_directory",
			Owners: []string{
				"uid=jdoe,ou=People,dc=umich,dc=edu",
				"uid=jdoe,ou=People,dc=umich,dc=edu",
			},
		},
	}
	rows := ExtractOwners(groups)
	require.Len(t, rows, 1)
	assert.Equal(t, "jdoe", rows[0].MemberID)
}

func TestEngineRunRebuildsBothTables(t *testing.T) {
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer rawDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE silver.group_members")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO silver.group_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE silver.group_owners")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO silver.group_owners")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	db := &storage.DB{DB: sqlx.NewDb(rawDB, "postgres")}
	eng := New(db)

	groups := []GroupInput{
		{
			GroupID:      "g1",
			SourceSystem: "active_directory",
			Members:      []string{"uid=jdoe,ou=People,dc=umich,dc=edu"},
			Owners:       []string{"uid=asmith,ou=People,dc=umich,dc=edu"},
		},
	}

	memberCount, ownerCount, err := eng.Run(context.Background(), groups)
	require.NoError(t, err)
	assert.Equal(t, 1, memberCount)
	assert.Equal(t, 1, ownerCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
