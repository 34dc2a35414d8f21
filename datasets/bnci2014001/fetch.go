package bnci2014001

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/datasets"
)

// DefaultBaseURL serves the prepared session files. Override it for a
// mirror that carries the .eeg.gz cache format.
const DefaultBaseURL = "https://bnci-horizon-2020.eu/database/data-sets/001-2014"

// Fetch downloads the missing session files of the subjects into dir.
// Existing files are left alone, so a partially populated cache is resumed
// rather than re-downloaded.
func Fetch(ctx context.Context, dir, baseURL string, subjects []int, logger log.Interface) error {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "bnci2014001: create data dir")
	}
	for _, sid := range subjects {
		for _, sess := range Sessions {
			name := SessionFile(sid, sess)
			dst := filepath.Join(dir, name)
			if _, err := os.Stat(dst); err == nil {
				continue
			}
			logger.WithField("file", name).Info("fetching session")
			if err := fetchOne(ctx, baseURL+"/"+name, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

func fetchOne(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "bnci2014001: build request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "bnci2014001: fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bnci2014001: fetch %s: %s", url, resp.Status)
	}

	// Download into a temp file and rename, so an interrupted transfer
	// never masquerades as a cached session.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return errors.Wrap(err, "bnci2014001: temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "bnci2014001: download %s", url)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// LoadOrFetch loads the subjects from dir, fetching first when the cache is
// incomplete. The data directory doubles as a download cache, so repeated
// runs against the same dir never touch the network.
func LoadOrFetch(ctx context.Context, dir, baseURL string, subjects []int, logger log.Interface) ([]*datasets.Raw, error) {
	if !Cached(dir, subjects) {
		if err := Fetch(ctx, dir, baseURL, subjects, logger); err != nil {
			return nil, err
		}
	}
	return Load(dir, subjects)
}
