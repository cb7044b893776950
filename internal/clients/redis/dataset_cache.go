package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

const datasetKeyPrefix = "insightflow:dataset:v1:"

// DatasetCache stores parsed datasets keyed by their locator.
type DatasetCache interface {
	Get(ctx context.Context, locator string) (*tabular.Dataset, bool, error)
	Set(ctx context.Context, locator string, ds *tabular.Dataset) error
	Delete(ctx context.Context, locator string) error
}

type datasetCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewDatasetCache(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) DatasetCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &datasetCache{log: log.With("client", "RedisDatasetCache"), rdb: rdb, ttl: ttl}
}

// DatasetKey hashes the locator so signed URLs never land in key listings.
func DatasetKey(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return datasetKeyPrefix + hex.EncodeToString(sum[:])
}

type cachedDataset struct {
	Columns []string            `json:"columns"`
	Rows    []tabular.Record    `json:"rows"`
	Types   []map[string]string `json:"types"`
}

func (c *datasetCache) Get(ctx context.Context, locator string) (*tabular.Dataset, bool, error) {
	raw, err := c.rdb.Get(ctx, DatasetKey(locator)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	ds, err := decodeDataset(raw)
	if err != nil {
		// Unreadable entries are dropped and treated as a miss.
		c.log.Warn("dropping undecodable cached dataset", "error", err)
		_ = c.rdb.Del(ctx, DatasetKey(locator)).Err()
		return nil, false, nil
	}
	return ds, true, nil
}

func (c *datasetCache) Set(ctx context.Context, locator string, ds *tabular.Dataset) error {
	if ds == nil {
		return nil
	}
	raw, err := encodeDataset(ds)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, DatasetKey(locator), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *datasetCache) Delete(ctx context.Context, locator string) error {
	return c.rdb.Del(ctx, DatasetKey(locator)).Err()
}

// JSON loses the int64/float64 distinction, so each row carries a parallel
// map of the Go kind of every non-string value.
func encodeDataset(ds *tabular.Dataset) ([]byte, error) {
	out := cachedDataset{
		Columns: ds.Columns,
		Rows:    ds.Rows,
		Types:   make([]map[string]string, len(ds.Rows)),
	}
	for i, row := range ds.Rows {
		kinds := map[string]string{}
		for k, v := range row {
			switch v.(type) {
			case int64:
				kinds[k] = "i"
			case float64:
				kinds[k] = "f"
			}
		}
		out.Types[i] = kinds
	}
	return json.Marshal(out)
}

func decodeDataset(raw []byte) (*tabular.Dataset, error) {
	var in struct {
		Columns []string                     `json:"columns"`
		Rows    []map[string]json.RawMessage `json:"rows"`
		Types   []map[string]string          `json:"types"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	if len(in.Types) != len(in.Rows) {
		return nil, fmt.Errorf("cached dataset: %d rows but %d type maps", len(in.Rows), len(in.Types))
	}
	ds := &tabular.Dataset{Columns: in.Columns, Rows: make([]tabular.Record, len(in.Rows))}
	for i, row := range in.Rows {
		rec := make(tabular.Record, len(row))
		for k, v := range row {
			var err error
			switch in.Types[i][k] {
			case "i":
				var n int64
				err = json.Unmarshal(v, &n)
				rec[k] = n
			case "f":
				var f float64
				err = json.Unmarshal(v, &f)
				rec[k] = f
			default:
				var x any
				err = json.Unmarshal(v, &x)
				rec[k] = x
			}
			if err != nil {
				return nil, fmt.Errorf("cached dataset row %d column %q: %w", i, k, err)
			}
		}
		ds.Rows[i] = rec
	}
	return ds, nil
}
