// Package logsink ships structured log records to an Azure append blob, one
// JSON object per line.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// DateFolderFormat lays blobs out as YYYY/MM/DD.
const DateFolderFormat = "%d/%02d/%02d"

// maxBlock stays under the 4 MiB append block limit.
const maxBlock = 4 << 20

type Config struct {
	AccountName string
	AccountKey  string
	Container   string
	BlobName    string        // defaults to <date>/<hostname>.jsonl
	FlushEvery  time.Duration // default 2s
	Level       slog.Level
}

type blockAppender interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// Handler is a slog.Handler that buffers records and appends them in batches.
type Handler struct {
	level  slog.Level
	ab     blockAppender
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticker *time.Ticker

	mu     sync.RWMutex
	closed bool
}

// FormatDateFolder returns the blob folder for a day.
func FormatDateFolder(t time.Time) string {
	return fmt.Sprintf(DateFolderFormat, t.Year(), int(t.Month()), t.Day())
}

func New(ctx context.Context, cfg Config) (*Handler, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("account name, account key and container are required")
	}
	if cfg.BlobName == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "primefinder"
		}
		cfg.BlobName = FormatDateFolder(time.Now().UTC()) + "/" + host + ".jsonl"
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	// BlobName may include slashes; only the container is escaped.
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" +
		url.PathEscape(cfg.Container) + "/" + cfg.BlobName

	ab, err := appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	if err != nil {
		return nil, err
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("create log blob %s: %w", cfg.BlobName, err)
	}
	return newHandler(ctx, ab, cfg), nil
}

func newHandler(ctx context.Context, ab blockAppender, cfg Config) *Handler {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handler{
		level:  cfg.Level,
		ab:     ab,
		ch:     make(chan []byte, 1024),
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(cfg.FlushEvery),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// Close flushes buffered records and stops the background writer.
func (h *Handler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.ch)
	h.mu.Unlock()

	h.wg.Wait()
	h.cancel()
	h.ticker.Stop()
	return nil
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle never blocks the caller; records are dropped when the buffer is full.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line, err := encodeRecord(r)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return errors.New("log sink closed")
	}
	select {
	case h.ch <- line:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	default:
		return errors.New("log sink buffer full")
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: h, attrs: attrs}
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

func encodeRecord(r slog.Record) ([]byte, error) {
	ev := make(map[string]any, r.NumAttrs()+3)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev["ts"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	r.Attrs(func(a slog.Attr) bool {
		ev[a.Key] = attrValue(a.Value)
		return true
	})

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		m := map[string]any{}
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

func (h *Handler) loop() {
	defer h.wg.Done()
	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		// the caller's context may already be cancelled at shutdown
		ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
		defer cancel()
		if _, err := h.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			fmt.Fprintf(os.Stderr, "logsink: append failed: %v\n", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case line, ok := <-h.ch:
			if !ok {
				flush()
				return
			}
			if len(buf)+len(line) > maxBlock {
				flush()
			}
			buf = append(buf, line...)
		case <-h.ticker.C:
			flush()
		}
	}
}

type withAttrs struct {
	*Handler
	attrs []slog.Attr
}

func (w *withAttrs) Handle(ctx context.Context, r slog.Record) error {
	r2 := r.Clone()
	r2.AddAttrs(w.attrs...)
	return w.Handler.Handle(ctx, r2)
}

func (w *withAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: w.Handler, attrs: append(append([]slog.Attr{}, w.attrs...), attrs...)}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
