package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Filesystem caches downloaded datasets in a directory, so the same
// URL can be reloaded without fetching it again.
type Filesystem struct {
	Dir string

	// Does the actual downloading. HTTP if nil.
	Fetch Downloader

	TimeNow func() time.Time

	mutex sync.Mutex
}

type fsRecord struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	RetrievedAt string `json:"retrieved_at"`
}

func NewFilesystem(dir string) (*Filesystem, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	return &Filesystem{
		Dir:     dir,
		Fetch:   HTTP{},
		TimeNow: time.Now,
	}, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) (*File, error) {

	f.mutex.Lock()
	defer f.mutex.Unlock()

	key := cacheKey(url)

	if options.Cache {
		file, err := f.lookup(key, options.CacheTTL)
		if err != nil {
			return nil, err
		}
		if file != nil {
			return file, nil
		}
	}

	fetch := f.Fetch
	if fetch == nil {
		fetch = HTTP{}
	}
	file, err := fetch.Get(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	if options.Cache {
		err = f.save(key, url, file)
		if err != nil {
			return nil, fmt.Errorf("saving: %w", err)
		}
	}

	return file, nil
}

func cacheKey(url string) string {
	digest := sha256.Sum256([]byte(url))
	return hex.EncodeToString(digest[:])
}

func (f *Filesystem) paths(key string) (string, string) {
	return filepath.Join(f.Dir, key+".json"), filepath.Join(f.Dir, key+".body")
}

// Returns nil if there's no fresh entry.
func (f *Filesystem) lookup(key string, ttl time.Duration) (*File, error) {
	metaPath, bodyPath := f.paths(key)

	buf, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	record := fsRecord{}
	err = json.Unmarshal(buf, &record)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling: %w", err)
	}

	retrievedAt, err := time.Parse(time.RFC3339, record.RetrievedAt)
	if err != nil {
		return nil, err
	}
	if !retrievedAt.Add(ttl).After(f.now()) {
		return nil, nil
	}

	body, err := os.ReadFile(bodyPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	return &File{Name: record.Filename, Data: body}, nil
}

func (f *Filesystem) save(key, url string, file *File) error {
	metaPath, bodyPath := f.paths(key)

	err := os.WriteFile(bodyPath, file.Data, 0644)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	buf, err := json.Marshal(fsRecord{
		URL:         url,
		Filename:    file.Name,
		RetrievedAt: f.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	err = os.WriteFile(metaPath, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	return nil
}

func (f *Filesystem) now() time.Time {
	if f.TimeNow != nil {
		return f.TimeNow()
	}
	return time.Now()
}
