package cache

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	cosmosAPIVersion        = "2018-12-31"
	cosmosDocumentMediaType = "application/json"
)

// CosmosCache stores entries as documents in an Azure Cosmos DB container.
// Expiry uses the document ttl field and is also checked on read, since
// containers without a default TTL ignore it.
type CosmosCache struct {
	endpoint  *url.URL
	client    *http.Client
	key       string
	database  string
	container string
	now       func() time.Time
}

type cosmosDocument struct {
	ID        string `json:"id"`
	Partition string `json:"partition"`
	Value     string `json:"value"`
	TTL       int    `json:"ttl,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

var _ Cache = (*CosmosCache)(nil)

func NewCosmosCache(endpoint, key, database, container string) (*CosmosCache, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("AZURE_COSMOS_ENDPOINT could not be found")
	}
	if key == "" {
		return nil, fmt.Errorf("AZURE_COSMOS_KEY could not be found")
	}
	if database == "" {
		return nil, fmt.Errorf("AZURE_COSMOS_DATABASE could not be found")
	}

	parsedEndpoint, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid AZURE_COSMOS_ENDPOINT: %w", err)
	}

	return &CosmosCache{
		endpoint:  parsedEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
		key:       key,
		database:  database,
		container: container,
		now:       time.Now,
	}, nil
}

func (cc *CosmosCache) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	doc, err := cc.readDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc.ExpiresAt != 0 && cc.now().Unix() >= doc.ExpiresAt {
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(doc.Value)), nil
}

func (cc *CosmosCache) Put(ctx context.Context, key, value string, opts PutOptions) error {
	doc := cosmosDocument{
		ID:        key,
		Partition: partitionKey(key),
		Value:     value,
	}
	if opts.TTL > 0 {
		doc.TTL = max(int(opts.TTL/time.Second), 1)
		doc.ExpiresAt = cc.now().Add(opts.TTL).Unix()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	resp, err := cc.doRequest(ctx, http.MethodPost, cc.documentsPath(), "docs", cc.documentsResourceID(), bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", cosmosDocumentMediaType)
		req.Header.Set("x-ms-documentdb-is-upsert", "true")
		cc.setPartitionKeyHeader(req, doc.Partition)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return cc.decodeCosmosError(resp)
	}
	return nil
}

func (cc *CosmosCache) Delete(ctx context.Context, key string) error {
	resp, err := cc.doRequest(ctx, http.MethodDelete, cc.documentPath(key), "docs", cc.documentResourceID(key), nil, func(req *http.Request) {
		cc.setPartitionKeyHeader(req, partitionKey(key))
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return cc.decodeCosmosError(resp)
	}
	return nil
}

// Ready reads the container definition.
func (cc *CosmosCache) Ready(ctx context.Context) error {
	resp, err := cc.doRequest(ctx, http.MethodGet, "/"+cc.documentsResourceID(), "colls", cc.documentsResourceID(), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return cc.decodeCosmosError(resp)
	}
	return nil
}

func (cc *CosmosCache) readDocument(ctx context.Context, key string) (*cosmosDocument, error) {
	resp, err := cc.doRequest(ctx, http.MethodGet, cc.documentPath(key), "docs", cc.documentResourceID(key), nil, func(req *http.Request) {
		cc.setPartitionKeyHeader(req, partitionKey(key))
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, cc.decodeCosmosError(resp)
	}

	var doc cosmosDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func (cc *CosmosCache) documentsPath() string {
	return fmt.Sprintf("/dbs/%s/colls/%s/docs", cc.database, cc.container)
}

func (cc *CosmosCache) documentPath(key string) string {
	return fmt.Sprintf("/dbs/%s/colls/%s/docs/%s", cc.database, cc.container, url.PathEscape(key))
}

func (cc *CosmosCache) documentsResourceID() string {
	return fmt.Sprintf("dbs/%s/colls/%s", cc.database, cc.container)
}

func (cc *CosmosCache) documentResourceID(key string) string {
	return fmt.Sprintf("dbs/%s/colls/%s/docs/%s", cc.database, cc.container, key)
}

func (cc *CosmosCache) setPartitionKeyHeader(req *http.Request, partition string) {
	payload, _ := json.Marshal([]string{partition})
	req.Header.Set("x-ms-documentdb-partitionkey", string(payload))
}

func (cc *CosmosCache) doRequest(ctx context.Context, method, path, resourceType, resourceID string, body io.Reader, extraHeaders func(*http.Request)) (*http.Response, error) {
	reqURL := cc.endpoint.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	date := cc.now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-version", cosmosAPIVersion)
	req.Header.Set("Authorization", cc.authHeader(method, resourceType, resourceID, date))
	if extraHeaders != nil {
		extraHeaders(req)
	}

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cosmos request failed: %w", err)
	}
	return resp, nil
}

func (cc *CosmosCache) authHeader(method, resourceType, resourceID, date string) string {
	payload := strings.ToLower(method) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceID + "\n" +
		strings.ToLower(date) + "\n\n"

	key, _ := base64.StdEncoding.DecodeString(cc.key)
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	token := fmt.Sprintf("type=master&ver=1.0&sig=%s", signature)
	return url.QueryEscape(token)
}

func (cc *CosmosCache) decodeCosmosError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cosmos error status %d", resp.StatusCode)
	}
	return fmt.Errorf("cosmos error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// partitionKey is the first key segment, e.g. "search" for "search/ab12".
func partitionKey(key string) string {
	if key == "" {
		return ""
	}
	if idx := strings.Index(key, "/"); idx >= 0 {
		return key[:idx]
	}
	return key
}
