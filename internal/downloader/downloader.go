// Package downloader decides whether remote archive files need fetching,
// downloads them into the data directory and records them in the store.
package downloader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"

	"github.com/iteehub/itee_hub/internal/archive"
	"github.com/iteehub/itee_hub/internal/logctx"
	"github.com/iteehub/itee_hub/internal/scrape"
	"github.com/iteehub/itee_hub/internal/storage"
	"github.com/iteehub/itee_hub/internal/telemetry"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// Options tune a single download.
type Options struct {
	// FileNameSuffix is prepended to the file name to disambiguate files
	// that share a base name across countries.
	FileNameSuffix string
	// Refresh re-checks an already downloaded file against the remote
	// last-modified timestamp and re-fetches it when changed.
	Refresh bool
}

// Downloader orchestrates fetch-or-skip decisions and writes downloaded
// files plus their metadata.
type Downloader struct {
	repo      storage.FileRepository
	http      *resty.Client
	scraper   *scrape.Client
	dataDir   string
	telemetry *telemetry.Telemetry
}

func New(repo storage.FileRepository, httpClient *resty.Client, scraper *scrape.Client, dataDir string, tel *telemetry.Telemetry) *Downloader {
	return &Downloader{
		repo:      repo,
		http:      httpClient,
		scraper:   scraper,
		dataDir:   dataDir,
		telemetry: tel,
	}
}

// HasRemoteChanged checks whether the remote file differs from what the
// store knows. It issues a metadata-only HEAD request and reports true iff
// no stored record matches the link and the fresh last-modified timestamp.
func (d *Downloader) HasRemoteChanged(ctx context.Context, link string) (bool, error) {
	res, err := d.http.R().SetContext(ctx).Head(link)
	if err != nil {
		return false, fmt.Errorf("failed to head %q: %w", link, err)
	}

	if res.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d from %q", res.StatusCode(), link)
	}

	lastModified, err := parseLastModified(res.Header().Get("Last-Modified"))
	if err != nil {
		return false, fmt.Errorf("failed to parse last-modified of %q: %w", link, err)
	}

	records, err := d.repo.GetFile(ctx, link, lastModified, "")
	if err != nil {
		return false, fmt.Errorf("failed to query file records for %q: %w", link, err)
	}

	return len(records) == 0, nil
}

// Download fetches the file behind link into <dataDir>/<pathSuffix> unless
// the local copy is up to date, and appends a file record on success.
func (d *Downloader) Download(ctx context.Context, pathSuffix, link, periodLabel string, opts Options) error {
	logger := logctx.LoggerFromContext(ctx)

	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("failed to parse link %q: %w", link, err)
	}

	fileName := path.Base(u.Path)
	if opts.FileNameSuffix != "" {
		fileName = opts.FileNameSuffix + "_" + fileName
	}

	targetDir := filepath.Join(d.dataDir, filepath.FromSlash(pathSuffix))
	if err := os.MkdirAll(targetDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	targetPath := filepath.Join(targetDir, fileName)

	if _, err := os.Stat(targetPath); err == nil {
		if !opts.Refresh {
			logger.Info("already downloaded, skipping", "file", fileName)
			d.telemetry.RecordDownloadSkipped(ctx, "exists")

			return nil
		}

		logger.Info("already downloaded, checking changes", "file", fileName)

		changed, err := d.HasRemoteChanged(ctx, link)
		if err != nil {
			return fmt.Errorf("failed to check remote changes: %w", err)
		}

		if !changed {
			logger.Info("no changes detected", "file", fileName)
			d.telemetry.RecordDownloadSkipped(ctx, "unchanged")

			return nil
		}

		logger.Info("changes detected, downloading", "file", fileName)
	}

	res, err := d.http.R().SetContext(ctx).Get(link)
	if err != nil {
		return fmt.Errorf("failed to fetch %q: %w", link, err)
	}

	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %q", res.StatusCode(), link)
	}

	lastModified, err := parseLastModified(res.Header().Get("Last-Modified"))
	if err != nil {
		return fmt.Errorf("failed to parse last-modified of %q: %w", link, err)
	}

	body := res.Body()

	hash := md5.Sum(body)
	contentHash := hex.EncodeToString(hash[:])

	if err := os.WriteFile(targetPath, body, filePerm); err != nil {
		return fmt.Errorf("failed to write %q: %w", targetPath, err)
	}

	logger.Info("downloaded", "file", fileName, "size", humanize.Bytes(uint64(len(body))))
	d.telemetry.RecordDownload(ctx)

	// A failed append leaves the file on disk but unrecorded; the next
	// refresh run sees no matching record and re-fetches.
	if err := d.repo.AddFile(ctx, link, lastModified, periodLabel, contentHash); err != nil {
		logger.Error("failed to record download", "link", link, "err", err)
	}

	return nil
}

// SyncQuestions scrapes a past-exam question page and downloads every linked
// archive into <year>/questions. A failing item does not abort the batch.
func (d *Downloader) SyncQuestions(ctx context.Context, pageURL string, refresh bool) error {
	logger := logctx.LoggerFromContext(ctx)

	doc, err := d.scraper.FetchDocument(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch question page: %w", err)
	}

	for _, link := range scrape.ExtractQuestionLinks(ctx, pageURL, doc) {
		u, err := url.Parse(link.URL)
		if err != nil {
			logger.Error("failed to parse link", "link", link.URL, "err", err)

			continue
		}

		year := archive.ExtractYear(u.Path)
		if year == "" {
			logger.Error("failed to parse year", "link", link.URL, "period_label", link.PeriodLabel)

			continue
		}

		if err := d.Download(ctx, path.Join(year, "questions"), link.URL, link.PeriodLabel, Options{Refresh: refresh}); err != nil {
			logger.Error("failed to download", "link", link.URL, "err", err)
		}
	}

	return nil
}

// SyncResults scrapes the passers-information page and downloads every
// linked result sheet into <year>/results, prefixing the file name with the
// country. A failing item does not abort the batch.
func (d *Downloader) SyncResults(ctx context.Context, pageURL string, refresh bool) error {
	logger := logctx.LoggerFromContext(ctx)

	doc, err := d.scraper.FetchDocument(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch results page: %w", err)
	}

	for year, links := range scrape.ExtractResultLinks(ctx, pageURL, doc) {
		for _, link := range links {
			opts := Options{FileNameSuffix: link.Country, Refresh: refresh}

			if err := d.Download(ctx, path.Join(year, "results"), link.URL, link.PeriodLabel, opts); err != nil {
				logger.Error("failed to download", "link", link.URL, "err", err)
			}
		}
	}

	return nil
}

func parseLastModified(header string) (int64, error) {
	if header == "" {
		return 0, fmt.Errorf("no last-modified header")
	}

	t, err := http.ParseTime(header)
	if err != nil {
		return 0, err
	}

	return t.Unix(), nil
}
