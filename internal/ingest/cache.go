package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sundial-labs/solarboard/internal/metrics"
	"github.com/sundial-labs/solarboard/internal/models"
)

// DefaultCacheSize bounds the parse cache; each entry is one parsed
// country table.
const DefaultCacheSize = 32

// Loader memoizes ParseCSV keyed by the exact uploaded byte content and
// country label. Re-uploading identical bytes skips the parse. The cache
// is LRU-bounded so a long-lived process cannot grow it without limit.
type Loader struct {
	cache *lru.Cache[string, *models.Table]
}

func NewLoader(size int) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.Table](size)
	if err != nil {
		return nil, err
	}
	return &Loader{cache: cache}, nil
}

// Load parses data for country, serving repeats from the cache. The
// returned table is always a private copy: cleaning stages mutate tables
// in place and must not corrupt the cached parse.
func (l *Loader) Load(data []byte, country string) (*models.Table, error) {
	key := cacheKey(data, country)
	if cached, ok := l.cache.Get(key); ok {
		metrics.ParseCacheHits.Inc()
		return cached.Clone(), nil
	}
	metrics.ParseCacheMisses.Inc()

	table, err := ParseCSV(bytes.NewReader(data), country)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, table)
	return table.Clone(), nil
}

func cacheKey(data []byte, country string) string {
	sum := sha256.Sum256(data)
	return country + ":" + hex.EncodeToString(sum[:])
}
