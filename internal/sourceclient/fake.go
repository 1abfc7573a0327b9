package sourceclient

import (
	"context"
	"time"
)

// FakeSource is an in-memory Source for tests: ListRecords/Details are
// populated directly and List/Detail replay them, optionally recording
// calls for assertions on the ingester/enricher side.
type FakeSource struct {
	ListRecords []Record
	ListErr     error
	Details     map[string]Record
	DetailErr   error

	ListCalls   []*time.Time
	DetailCalls []string
}

func NewFakeSource() *FakeSource {
	return &FakeSource{Details: map[string]Record{}}
}

func (f *FakeSource) List(ctx context.Context, since *time.Time) ([]Record, error) {
	f.ListCalls = append(f.ListCalls, since)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.ListRecords, nil
}

func (f *FakeSource) Detail(ctx context.Context, externalID string) (Record, error) {
	f.DetailCalls = append(f.DetailCalls, externalID)
	if f.DetailErr != nil {
		return nil, f.DetailErr
	}
	rec, ok := f.Details[externalID]
	if !ok {
		return nil, ErrNoDetailEndpoint
	}
	return rec, nil
}
