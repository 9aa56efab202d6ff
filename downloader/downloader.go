package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"
)

var ErrTooLarge = errors.New("response exceeds size limit")

type GetOptions struct {
	MaxSize  int64
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// A downloaded dataset. Name decides how the pipeline treats it, so
// it keeps the extension the server gave it.
type File struct {
	Name string
	Data []byte
}

// A thing capable of downloading a dataset, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) (*File, error)
}

// Downloads without caching.
type HTTP struct{}

func (HTTP) Get(ctx context.Context, url string, headers map[string]string, options GetOptions) (*File, error) {
	return HTTPGet(ctx, url, headers, options)
}

// Gets a file. Doesn't cache. Provided as convenience for
// implementing custom Downloaders.
func HTTPGet(ctx context.Context, rawURL string, headers map[string]string, options GetOptions) (*File, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, options.MaxSize+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if options.MaxSize > 0 && int64(len(body)) > options.MaxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, options.MaxSize)
	}

	return &File{Name: filename(resp, rawURL), Data: body}, nil
}

// From Content-Disposition if present, otherwise the last segment of
// the URL path.
func filename(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		_, params, err := mime.ParseMediaType(cd)
		if err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}

	u, err := url.Parse(rawURL)
	if err == nil {
		base := path.Base(u.Path)
		if base != "/" && base != "." {
			return base
		}
	}

	return "download"
}
