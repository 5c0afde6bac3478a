package paapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"primefinder/internal/config"
	"primefinder/internal/dig"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName  = "ProductAdvertisingAPI"
	targetPrefix = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1."

	OperationSearchItems = "SearchItems"
	OperationGetItems    = "GetItems"
)

var tracer = otel.Tracer("primefinder/paapi")

// Client calls the Product Advertising API 5.0 with SigV4 signed requests.
type Client struct {
	credentials aws.Credentials
	signer      *v4.Signer
	region      string
	partnerTag  string
	marketplace string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a catalog client. Access key, secret key and associate
// tag are required.
func NewClient(cfg config.CatalogConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, errors.New("access key is required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("secret key is required")
	}
	if strings.TrimSpace(cfg.AssociateTag) == "" {
		return nil, errors.New("associate tag is required")
	}
	if cfg.Region == "" {
		cfg.Region = config.DefaultRegion
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = config.DefaultMarketplace
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://" + HostForMarketplace(cfg.Marketplace)
	}

	return &Client{
		credentials: aws.Credentials{
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			Source:          "primefinder",
		},
		signer:      v4.NewSigner(),
		region:      cfg.Region,
		partnerTag:  cfg.AssociateTag,
		marketplace: cfg.Marketplace,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  newHTTPClient(cfg),
	}, nil
}

// newHTTPClient retries throttling and 5xx responses. Non-2xx responses
// that survive the retries are handed back so the caller can read the API's
// error document.
func newHTTPClient(cfg config.CatalogConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = max(cfg.RetryMax, 0)
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		rc.HTTPClient = &hc
	}
	rc.HTTPClient.Timeout = timeout
	return rc.StandardClient()
}

// HostForMarketplace maps a storefront host to its API host,
// e.g. www.amazon.it -> webservices.amazon.it.
func HostForMarketplace(marketplace string) string {
	return "webservices." + strings.TrimPrefix(strings.ToLower(marketplace), "www.")
}

// SearchItems runs a keyword search. A search that matches nothing returns
// an empty response and no error.
func (c *Client) SearchItems(ctx context.Context, req SearchRequest) (Response, error) {
	if strings.TrimSpace(req.Keywords) == "" {
		return nil, errors.New("keywords are required")
	}
	if len(req.Resources) == 0 {
		req.Resources = DefaultResources
	}
	body := searchItemsBody{SearchRequest: req, partner: c.partner()}
	return c.call(ctx, OperationSearchItems, body,
		attribute.String("paapi.keywords", req.Keywords),
		attribute.String("paapi.search_index", req.SearchIndex),
		attribute.Int("paapi.item_count", req.ItemCount),
	)
}

// GetItems looks up items by ASIN.
func (c *Client) GetItems(ctx context.Context, req GetItemsRequest) (Response, error) {
	ids := make([]string, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one item ID is required")
	}
	req.ItemIDs = ids
	if len(req.Resources) == 0 {
		req.Resources = DefaultResources
	}
	body := getItemsBody{GetItemsRequest: req, partner: c.partner()}
	return c.call(ctx, OperationGetItems, body,
		attribute.StringSlice("paapi.item_ids", ids),
	)
}

func (c *Client) partner() partner {
	return partner{
		PartnerTag:  c.partnerTag,
		PartnerType: "Associates",
		Marketplace: c.marketplace,
	}
}

func (c *Client) call(ctx context.Context, operation string, payload any, attrs ...attribute.KeyValue) (_ Response, err error) {
	ctx, span := tracer.Start(ctx, "paapi."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attrs...)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}

	endpoint := c.baseURL + "/paapi5/" + strings.ToLower(operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "amz-1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Amz-Target", targetPrefix+operation)

	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, c.credentials, req, hex.EncodeToString(sum[:]), serviceName, c.region, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("sign %s request: %w", operation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", operation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := parseStatusError(operation, resp.StatusCode, raw)
		if isNoResults(statusErr) {
			// the API answers 404/NoResults for searches that match nothing
			slog.InfoContext(ctx, "catalog returned no results", "operation", operation)
			return Response{}, nil
		}
		slog.ErrorContext(ctx, "catalog request failed", "operation", operation, "status", resp.StatusCode, "code", statusErr.Code)
		return nil, statusErr
	}

	parsed, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", operation, err)
	}
	return parsed, nil
}

func decode(raw []byte) (Response, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Response{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Response
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Response{}
	}
	return out, nil
}

func parseStatusError(operation string, status int, raw []byte) *StatusError {
	statusErr := &StatusError{
		Operation:  operation,
		StatusCode: status,
		Body:       strings.TrimSpace(string(raw)),
	}
	if doc, err := decode(raw); err == nil {
		statusErr.Code = dig.String(doc, "", "Errors", 0, "Code")
		statusErr.Message = dig.String(doc, "", "Errors", 0, "Message")
	}
	return statusErr
}

func isNoResults(err *StatusError) bool {
	return err.StatusCode == http.StatusNotFound && err.Code == "NoResults"
}
