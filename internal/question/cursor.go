package question

import (
	"context"
	"fmt"
)

// DefaultBatchSize bounds how many records a cursor holds at once.
const DefaultBatchSize = 100

// Cursor walks the corpus forward in fixed-size batches using the last seen
// id as the resume point, so records deleted or updated mid-walk never shift
// later pages.
type Cursor struct {
	scanner   Scanner
	batchSize int
	afterID   string
	done      bool
}

// NewCursor builds a cursor; non-positive batch sizes use DefaultBatchSize.
func NewCursor(scanner Scanner, batchSize int) *Cursor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Cursor{scanner: scanner, batchSize: batchSize}
}

// Next returns the next batch, or an empty slice once the corpus is exhausted.
func (c *Cursor) Next(ctx context.Context) ([]Record, error) {
	if c.done {
		return nil, nil
	}
	batch, err := c.scanner.Scan(ctx, c.afterID, c.batchSize)
	if err != nil {
		return nil, fmt.Errorf("scan after %q: %w", c.afterID, err)
	}
	if len(batch) == 0 {
		c.done = true
		return nil, nil
	}
	c.afterID = batch[len(batch)-1].ID
	if len(batch) < c.batchSize {
		c.done = true
	}
	return batch, nil
}
