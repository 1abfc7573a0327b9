package sourceclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExternalID(t *testing.T) {
	rec := Record{"ID": "12345", "Name": "whatever"}
	assert.Equal(t, "12345", rec.ExternalID("ID"))
	assert.Equal(t, "", rec.ExternalID("missing"))

	rec["Numeric"] = 12345
	assert.Equal(t, "", rec.ExternalID("Numeric"))
}

func TestFakeSourceReplaysConfiguredRecords(t *testing.T) {
	fake := NewFakeSource()
	fake.ListRecords = []Record{{"ID": "1"}, {"ID": "2"}}
	fake.Details["1"] = Record{"ID": "1", "Detail": "full"}

	since := time.Now()
	records, err := fake.List(context.Background(), &since)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, fake.ListCalls, 1)
	assert.Equal(t, &since, fake.ListCalls[0])

	detail, err := fake.Detail(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "full", detail["Detail"])

	_, err = fake.Detail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoDetailEndpoint)
}
