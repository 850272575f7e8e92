// Package archive pulls the published CSV archives of candidate videos
// and imports them into the triage queue. Parsing is deliberately
// best-effort: rows the archive can't describe well enough to key by
// video id are skipped, not fatal.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/videodesk-io/videodesk/internal/video"
	"github.com/videodesk-io/videodesk/pkg/triage"
)

const fetchTimeout = 30 * time.Second

// Source names one archive to import.
type Source struct {
	Name string // becomes the record's source field
	URL  string // zip containing one or more CSV files
}

// Fetcher downloads archive zips and extracts their CSV payloads.
type Fetcher struct {
	client  *http.Client
	dataDir string
	logger  *slog.Logger
}

// NewFetcher creates a fetcher that extracts into dataDir.
func NewFetcher(dataDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: fetchTimeout},
		dataDir: dataDir,
		logger:  logger,
	}
}

// WithHTTPClient overrides the HTTP client (used by tests).
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch downloads the zip at url and extracts every CSV inside it into
// the data dir, returning the extracted paths. Entry names are
// flattened to their base name.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive: fetch %s: status %d", url, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch %s: %w", url, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("archive: %s is not a zip: %w", url, err)
	}

	var paths []string
	for _, entry := range zr.File {
		if !strings.HasSuffix(strings.ToLower(entry.Name), ".csv") {
			continue
		}
		dest := filepath.Join(f.dataDir, filepath.Base(entry.Name))
		if err := extractFile(entry, dest); err != nil {
			return nil, fmt.Errorf("archive: extract %s: %w", entry.Name, err)
		}
		paths = append(paths, dest)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("archive: %s contains no CSV files", url)
	}

	f.logger.Info("archive fetched", "url", url, "files", len(paths))
	return paths, nil
}

func extractFile(entry *zip.File, dest string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// LoadCSV parses an extracted archive CSV into video records. Headers
// are normalized (trimmed, lowercased, spaces to underscores) and the
// legacy video_link column is treated as link. Rows with no derivable
// video id are skipped.
func LoadCSV(path, source string) ([]*triage.Video, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("archive: read header of %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeHeader(name)] = i
	}
	// Legacy archives name the column video_link.
	if _, ok := cols["link"]; !ok {
		if i, ok := cols["video_link"]; ok {
			cols["link"] = i
		}
	}

	var videos []*triage.Video
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Best-effort parsing: a malformed row doesn't fail the import.
			continue
		}

		link := field(row, cols, "link")
		id := field(row, cols, "video_id")
		if id == "" {
			id = ExtractVideoID(link)
		}
		if id == "" {
			continue
		}

		videos = append(videos, &triage.Video{
			ID:        id,
			Title:     field(row, cols, "title"),
			Channel:   field(row, cols, "channel"),
			Link:      link,
			Published: field(row, cols, "published"),
			Source:    source,
		})
	}
	return videos, nil
}

func normalizeHeader(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

var (
	watchIDPattern = regexp.MustCompile(`[?&]v=([\w-]+)`)
	shortIDPattern = regexp.MustCompile(`(?:youtu\.be/|embed/)([\w-]+)`)
)

// ExtractVideoID pulls the video id out of watch, short, and embed URL
// forms. Returns "" when no id can be derived.
func ExtractVideoID(link string) string {
	if link == "" {
		return ""
	}
	if m := watchIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := shortIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// Importer pulls each configured source and upserts its rows into the
// queue store.
type Importer struct {
	store   video.Store
	fetcher *Fetcher
	sources []Source
	logger  *slog.Logger
}

// NewImporter creates an importer over the given sources.
func NewImporter(store video.Store, fetcher *Fetcher, sources []Source, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, fetcher: fetcher, sources: sources, logger: logger}
}

// Import fetches and upserts every source, returning the number of
// records written. One source failing doesn't stop the others; the
// first error is returned after all sources were attempted.
func (im *Importer) Import(ctx context.Context) (int, error) {
	var imported int
	var firstErr error

	for _, src := range im.sources {
		if src.URL == "" {
			continue
		}
		paths, err := im.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			im.logger.Warn("archive fetch failed", "source", src.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, path := range paths {
			videos, err := LoadCSV(path, src.Name)
			if err != nil {
				im.logger.Warn("archive parse failed", "source", src.Name, "path", path, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			for _, v := range videos {
				if err := im.store.Upsert(v); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				imported++
			}
		}
		im.logger.Info("archive imported", "source", src.Name)
	}
	return imported, firstErr
}
