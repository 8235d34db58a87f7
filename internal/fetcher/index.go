package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FetchBulkIndex returns the <year>FD.xml member of the yearly archive. The
// archive is cached under CacheDir; a copy younger than IndexTTL is used
// without touching the network.
func (f *HTTPFetcher) FetchBulkIndex(ctx context.Context, year int) ([]byte, error) {
	if err := os.MkdirAll(f.opts.CacheDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetcher: create cache dir")
	}

	zipPath := filepath.Join(f.opts.CacheDir, fmt.Sprintf("%dFD.zip", year))
	if !f.cacheFresh(zipPath) {
		body, err := f.get(ctx, BulkIndexURL(f.BaseURL(), year))
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: bulk index %d", year)
		}
		if err := writeFileAtomic(zipPath, body); err != nil {
			return nil, eris.Wrap(err, "fetcher: cache bulk index")
		}
		f.log.Debug("bulk index downloaded",
			zap.Int("year", year),
			zap.Int("bytes", len(body)),
		)
	} else {
		f.log.Debug("bulk index served from cache", zap.Int("year", year))
	}

	xmlPath, err := ExtractXMLMember(zipPath, fmt.Sprintf("%dFD.xml", year), filepath.Join(f.opts.CacheDir, fmt.Sprint(year)))
	if err != nil {
		// A corrupt cached archive must not stick around for a whole TTL.
		_ = os.Remove(zipPath)
		return nil, eris.Wrapf(err, "fetcher: bulk index %d", year)
	}

	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read bulk index xml")
	}
	return data, nil
}

func (f *HTTPFetcher) cacheFresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	return f.nowFunc().Sub(info.ModTime()) < f.opts.IndexTTL
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
