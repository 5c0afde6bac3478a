package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCosmos keeps documents in memory keyed by id.
type fakeCosmos struct {
	mu   sync.Mutex
	docs map[string]cosmosDocument
	t    *testing.T
}

func (f *fakeCosmos) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") == "" || r.Header.Get("x-ms-date") == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	const docsPrefix = "/dbs/db/colls/searches/docs"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/dbs/db/colls/searches":
		_, _ = w.Write([]byte(`{"id":"searches"}`))
	case r.Method == http.MethodPost && r.URL.Path == docsPrefix:
		if r.Header.Get("x-ms-documentdb-is-upsert") != "true" {
			f.t.Errorf("expected upsert header")
		}
		var doc cosmosDocument
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.docs[doc.ID] = doc
		w.WriteHeader(http.StatusCreated)
	case strings.HasPrefix(r.URL.Path, docsPrefix+"/"):
		id := strings.TrimPrefix(r.URL.Path, docsPrefix+"/")
		doc, ok := f.docs[id]
		if !ok {
			http.Error(w, `{"code":"NotFound"}`, http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.docs, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func TestCosmosCache(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCosmos{docs: map[string]cosmosDocument{}, t: t}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cc, err := NewCosmosCache(server.URL, base64.StdEncoding.EncodeToString([]byte("key")), "db", "searches")
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cc.now = clock.now

	require.NoError(t, cc.Ready(ctx))
	require.NoError(t, cc.Put(ctx, "search", "cached", PutOptions{TTL: 300 * time.Second}))

	stored := fake.docs["search"]
	assert.Equal(t, 300, stored.TTL)
	assert.Equal(t, "search", stored.Partition)

	got, err := GetString(ctx, cc, "search")
	require.NoError(t, err)
	assert.Equal(t, "cached", got)

	clock.t = clock.t.Add(301 * time.Second)
	_, err = cc.Get(ctx, "search")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cc.Delete(ctx, "search"))
	require.NoError(t, cc.Delete(ctx, "search"))
	_, err = cc.Get(ctx, "search")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, "search", partitionKey("search/abc"))
	assert.Equal(t, "plain", partitionKey("plain"))
	assert.Equal(t, "", partitionKey(""))
}
