package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

type capturingWriter struct {
	path        string
	contentType string
	body        []byte
}

func (w *capturingWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.body = body
	return nil
}

func TestArchiveBatchWritesJSONL(t *testing.T) {
	w := &capturingWriter{}
	a := NewTickArchiver(w, "")

	flushedAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	quotes := []domain.Quote{
		{SourceExchange: domain.VenueDeribit, UnderlyingAsset: "BTC", StrikePrice: 100000, OptionType: "C", ExpirationTimestamp: "29DEC26", Timestamp: 1},
		{SourceExchange: domain.VenueDerive, UnderlyingAsset: "ETH", StrikePrice: 4000, OptionType: "P", ExpirationTimestamp: "26MAR27", Timestamp: 2},
	}

	require.NoError(t, a.ArchiveBatch(context.Background(), flushedAt, quotes))

	assert.Contains(t, w.path, "ticks/2026/08/31/batch-")
	assert.Equal(t, "application/x-ndjson", w.contentType)

	var lines []domain.Quote
	sc := bufio.NewScanner(bytes.NewReader(w.body))
	for sc.Scan() {
		var q domain.Quote
		require.NoError(t, json.Unmarshal(sc.Bytes(), &q))
		lines = append(lines, q)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "BTC", lines[0].UnderlyingAsset)
	assert.Equal(t, "ETH", lines[1].UnderlyingAsset)
}

func TestArchiveBatchSkipsEmpty(t *testing.T) {
	w := &capturingWriter{}
	a := NewTickArchiver(w, "cold")

	require.NoError(t, a.ArchiveBatch(context.Background(), time.Now(), nil))
	assert.Empty(t, w.path)
}
