package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxDocumentSize bounds fetched library documents
const maxDocumentSize = 256 << 20

// Fetcher retrieves the raw text of a library document
type Fetcher interface {
	Fetch(ctx context.Context, source, token string) ([]byte, error)
}

// HTTPFetcher downloads documents from a parts registry. The token is
// sent in the registry's X-authorization header.
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, source, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Accept-Encoding", "gzip")
	if token != "" {
		req.Header.Set("X-authorization", token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrFetchFailed, source, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip response: %v", ErrFetchFailed, err)
		}
		defer zr.Close()
		body = zr
	}

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrFetchFailed, err)
	}
	return maybeGunzip(data)
}

// ObjectFetcher reads documents from an S3-compatible object store.
// Sources have the form s3://bucket/key.
type ObjectFetcher struct {
	client *minio.Client
}

// ObjectStoreConfig holds object store connection settings
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewObjectFetcher connects to an object store
func NewObjectFetcher(cfg ObjectStoreConfig) (*ObjectFetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &ObjectFetcher{client: client}, nil
}

// Fetch implements Fetcher. The token is ignored; credentials come from
// the store configuration.
func (f *ObjectFetcher) Fetch(ctx context.Context, source, _ string) ([]byte, error) {
	bucket, key, err := splitObjectURL(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentSize))
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s does not exist", ErrFetchFailed, source)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return maybeGunzip(data)
}

func splitObjectURL(source string) (string, string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an object store url: %s", source)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("object store url has no key: %s", source)
	}
	return u.Host, key, nil
}

// SchemeFetcher routes s3:// sources to Objects and everything else to
// HTTP. Objects may be nil when no object store is configured.
type SchemeFetcher struct {
	HTTP    Fetcher
	Objects Fetcher
}

// Fetch implements Fetcher
func (f *SchemeFetcher) Fetch(ctx context.Context, source, token string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(source), "s3://") {
		if f.Objects == nil {
			return nil, fmt.Errorf("%w: no object store configured for %s", ErrFetchFailed, source)
		}
		return f.Objects.Fetch(ctx, source, token)
	}
	return f.HTTP.Fetch(ctx, source, token)
}

var gzipMagic = []byte{0x1f, 0x8b}

// maybeGunzip decompresses data that carries the gzip magic number
func maybeGunzip(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip content: %v", ErrFetchFailed, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip content: %v", ErrFetchFailed, err)
	}
	return out, nil
}
