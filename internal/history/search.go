package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve"
)

type indexedDoc struct {
	Topic  string `json:"topic"`
	Report string `json:"report"`
	Error  string `json:"error"`
	Status string `json:"status"`
}

// Indexed wraps a Store with an in-memory bleve index over topic and report.
type Indexed struct {
	Store
	index bleve.Index
}

// NewIndexed builds the index and seeds it from the records already in store.
func NewIndexed(ctx context.Context, store Store) (*Indexed, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("history index: %w", err)
	}
	ix := &Indexed{Store: store, index: index}
	existing, err := store.List(ctx, 0)
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	batch := index.NewBatch()
	for _, rec := range existing {
		if err := batch.Index(rec.ID, docFor(rec)); err != nil {
			_ = index.Close()
			return nil, err
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, err
	}
	return ix, nil
}

func docFor(rec Record) indexedDoc {
	return indexedDoc{Topic: rec.Topic, Report: rec.Report, Error: rec.Error, Status: rec.Status}
}

func (ix *Indexed) Save(ctx context.Context, rec Record) error {
	if err := ix.Store.Save(ctx, rec); err != nil {
		return err
	}
	return ix.index.Index(rec.ID, docFor(rec))
}

func (ix *Indexed) Delete(ctx context.Context, id string) error {
	if err := ix.Store.Delete(ctx, id); err != nil {
		return err
	}
	return ix.index.Delete(id)
}

// Search runs a match query and returns hits by score. Records that vanished
// from the underlying store are skipped.
func (ix *Indexed) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	size := limit
	if size <= 0 {
		count, err := ix.index.DocCount()
		if err != nil {
			return nil, err
		}
		size = int(count)
	}
	if size == 0 {
		return []Record{}, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), size, 0, false)
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, err := ix.Store.Get(ctx, hit.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (ix *Indexed) Close() error {
	return errors.Join(ix.index.Close(), ix.Store.Close())
}
