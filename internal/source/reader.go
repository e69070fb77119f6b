package source

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultUserAgent = "strivebot"
	contentEncoding  = "gzip"
)

// Reader opens sources given either as a local path or as an http(s) URL.
type Reader struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: defaultUserAgent,
		logger:    logger,
	}
}

// Open returns the content of location. The caller closes it.
func (r *Reader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("location is empty")
	}

	if !isURL(location) {
		return os.Open(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	r.logger.Debug("make request", zap.String("url", location))
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &gzipBody{Reader: gz, body: resp.Body}, nil
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipBody) Close() error {
	g.Reader.Close()
	return g.body.Close()
}

func isURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
