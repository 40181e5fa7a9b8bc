package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"infra-registry/internal/extraction"
	"infra-registry/internal/importexport"
	"infra-registry/internal/storage"
)

// LoadFiles reads scanner CSVs from disk. additional may be empty.
func LoadFiles(mounts, signs, additional string) (Input, error) {
	var in Input
	var err error
	if in.Mounts, err = readCSV(mounts); err != nil {
		return in, err
	}
	if in.Signs, err = readCSV(signs); err != nil {
		return in, err
	}
	if additional != "" {
		if in.AdditionalSigns, err = readCSV(additional); err != nil {
			return in, err
		}
	}
	return in, nil
}

func readCSV(p string) (*importexport.Dataset, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := importexport.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	return ds, nil
}

// LoadBundle extracts a zip or tar delivery and reads the scanner CSVs in
// it, recognized by file name. The returned function removes the
// extracted files.
func LoadBundle(ctx context.Context, archivePath string) (Input, func(), error) {
	files, dir, err := extraction.ExtractArchive(ctx, archivePath)
	if err != nil {
		return Input{}, func() {}, fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	var csvs []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".csv") {
			csvs = append(csvs, f)
		}
	}
	mounts := extraction.FindByName(csvs, "mount", "kiinnitys")
	additional := extraction.FindByName(without(csvs, mounts), "additional", "lisä")
	signs := extraction.FindByName(without(csvs, mounts, additional), "sign", "merk")
	if mounts == "" || signs == "" {
		cleanup()
		return Input{}, func() {}, fmt.Errorf("bundle %s lacks a mount or sign file", filepath.Base(archivePath))
	}
	in, err := LoadFiles(mounts, signs, additional)
	if err != nil {
		cleanup()
		return Input{}, func() {}, err
	}
	return in, cleanup, nil
}

func without(files []string, drop ...string) []string {
	var out []string
	for _, f := range files {
		keep := true
		for _, d := range drop {
			if f == d {
				keep = false
			}
		}
		if keep {
			out = append(out, f)
		}
	}
	return out
}

// FeedClient downloads scanner deliveries from the vendor feed.
type FeedClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewFeedClient(baseURL, token string, logger *zap.Logger) *FeedClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Minute).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &FeedClient{httpClient: client, logger: logger}
}

// Download fetches the delivery at urlPath into dir and returns the local
// file path.
func (c *FeedClient) Download(ctx context.Context, urlPath, dir string) (string, error) {
	name := path.Base(strings.SplitN(urlPath, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "delivery.zip"
	}
	dest := filepath.Join(dir, name)

	c.logger.Info("downloading scanner delivery", zap.String("path", urlPath))
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(urlPath)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", urlPath, err)
	}
	if resp.IsError() {
		os.Remove(dest)
		return "", fmt.Errorf("feed returned %s for %s", resp.Status(), urlPath)
	}
	c.logger.Info("downloaded scanner delivery",
		zap.String("file", dest),
		zap.Int64("bytes", resp.Size()),
		zap.Duration("took", resp.Time()),
	)
	return dest, nil
}

// Locked runs fn while holding the named lock.
func Locked(ctx context.Context, locker storage.Locker, name string, ttl time.Duration, fn func() error) error {
	release, err := locker.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
