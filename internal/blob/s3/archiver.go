package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// TickArchiver writes flushed quote batches to cold storage as JSONL, one
// quote per line, keyed by flush time:
//
//	ticks/<YYYY>/<MM>/<DD>/batch-<unix-nanos>.jsonl
//
// Archival is an additional best-effort copy of the durable path; a failed
// upload is logged by the caller and never retried here.
type TickArchiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewTickArchiver creates an archiver that uploads through the given blob
// writer under the given key prefix (default "ticks" when empty).
func NewTickArchiver(writer domain.BlobWriter, prefix string) *TickArchiver {
	if prefix == "" {
		prefix = "ticks"
	}
	return &TickArchiver{writer: writer, prefix: prefix}
}

// ArchiveBatch serializes the batch to JSONL and uploads it in one object.
func (a *TickArchiver) ArchiveBatch(ctx context.Context, flushedAt time.Time, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, q := range quotes {
		if err := enc.Encode(q); err != nil {
			return fmt.Errorf("s3blob: encode tick %d: %w", i, err)
		}
	}

	key := fmt.Sprintf("%s/%s/batch-%d.jsonl",
		a.prefix, flushedAt.UTC().Format("2006/01/02"), flushedAt.UnixNano())

	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive batch %s: %w", key, err)
	}
	return nil
}
