package esdex

import (
	"context"
	"fmt"
)

// Record is a domain object addressable by the engine: it knows its
// document ID and how to serialize itself for indexing.
type Record interface {
	RecordID() string
	RecordDocument() map[string]any
}

// ModelAdapter is the record-source capability the engine consumes: it
// resolves hit IDs back into domain records and streams the full record set
// for reindexing. Any record source must implement it explicitly.
type ModelAdapter interface {
	// FetchByIDs resolves the given document IDs into records, preserving
	// no particular order.
	FetchByIDs(ctx context.Context, ids []string) ([]Record, error)

	// IterateAll walks every record in batches of batchSize, invoking fn
	// per batch. Returning an error from fn stops iteration.
	IterateAll(ctx context.Context, batchSize int, fn func(batch []Record) error) error
}

// Records executes the criteria and resolves the returned hits into domain
// records through the adapter, re-ordered to match hit order where the
// adapter preserves IDs.
func (idx *Index) Records(ctx context.Context, c *Criteria, adapter ModelAdapter) ([]Record, error) {
	res, err := idx.Search(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := res.IDs()
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := adapter.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return sortRecordsByIDs(records, ids), nil
}

// sortRecordsByIDs reorders records into hit order. Records without a
// matching hit keep their relative position at the end.
func sortRecordsByIDs(records []Record, ids []string) []Record {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	ordered := make([]Record, 0, len(records))
	rest := make([]Record, 0)
	byID := make(map[string]Record, len(records))
	for _, rec := range records {
		if _, ok := pos[rec.RecordID()]; ok {
			byID[rec.RecordID()] = rec
		} else {
			rest = append(rest, rec)
		}
	}
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			ordered = append(ordered, rec)
		}
	}
	return append(ordered, rest...)
}

// Import streams every record from the adapter into the index through a
// bulk batcher and returns the complete per-item report.
func (idx *Index) Import(ctx context.Context, adapter ModelAdapter, batchSize int) (*BulkReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultBulkMaxActions
	}
	b := idx.NewBatcher(batchSize, 0)
	err := adapter.IterateAll(ctx, batchSize, func(batch []Record) error {
		for _, rec := range batch {
			if err := b.Index(ctx, rec.RecordID(), rec.RecordDocument()); err != nil {
				return err
			}
		}
		return nil
	})
	report, closeErr := b.Close(ctx)
	if err != nil {
		return report, err
	}
	return report, closeErr
}
