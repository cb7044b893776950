package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

func TestDatasetKeyHidesLocator(t *testing.T) {
	k := DatasetKey("https://files.example.com/a.csv?sig=secret")
	if !strings.HasPrefix(k, datasetKeyPrefix) || strings.Contains(k, "secret") {
		t.Fatalf("unexpected key %q", k)
	}
	if k != DatasetKey("https://files.example.com/a.csv?sig=secret") {
		t.Fatalf("key not deterministic")
	}
}

func TestDatasetEncodingKeepsNumericKinds(t *testing.T) {
	ds := &tabular.Dataset{
		Columns: []string{"n", "f", "b", "s", "whole"},
		Rows: []tabular.Record{
			{"n": int64(9007199254740993), "f": 2.5, "b": true, "s": "x", "whole": float64(3)},
		},
	}
	raw, err := encodeDataset(ds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeDataset(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := got.Rows[0]
	if row["n"] != int64(9007199254740993) {
		t.Fatalf("int64 lost precision or kind: %#v", row["n"])
	}
	if row["whole"] != float64(3) {
		t.Fatalf("float kind lost: %#v", row["whole"])
	}
	if row["f"] != 2.5 || row["b"] != true || row["s"] != "x" {
		t.Fatalf("values changed: %#v", row)
	}
}

func TestDecodeDatasetRejectsMismatchedTypes(t *testing.T) {
	if _, err := decodeDataset([]byte(`{"columns":["a"],"rows":[{"a":1}],"types":[]}`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDatasetCacheLive(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	log, _ := logger.New("test")
	ctx := context.Background()
	rdb, err := NewClient(ctx, log, Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewDatasetCache(log, rdb, time.Minute)
	locator := "test://" + t.Name()
	t.Cleanup(func() { _ = cache.Delete(ctx, locator) })

	if _, ok, err := cache.Get(ctx, locator); err != nil || ok {
		t.Fatalf("Get before Set: ok=%v err=%v", ok, err)
	}
	ds := &tabular.Dataset{Columns: []string{"a"}, Rows: []tabular.Record{{"a": int64(1)}}}
	if err := cache.Set(ctx, locator, ds); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := cache.Get(ctx, locator)
	if err != nil || !ok || got.Rows[0]["a"] != int64(1) {
		t.Fatalf("Get after Set: %v %v %v", got, ok, err)
	}
}

func TestNewClientWithoutAddr(t *testing.T) {
	rdb, err := NewClient(context.Background(), nil, Config{})
	if rdb != nil || err != nil {
		t.Fatalf("empty addr should disable redis: %v %v", rdb, err)
	}
}
