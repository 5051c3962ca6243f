package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// multipartThreshold is the file size above which uploads switch to the
// multipart manager.
const multipartThreshold int64 = 8 * 1024 * 1024

// maxConcurrentUploads bounds the archive upload fan-out. The data
// pipelines themselves stay sequential; only this post-run copy step runs
// uploads in parallel.
const maxConcurrentUploads = 4

// Archiver uploads the exported CSV directories to object storage under a
// date-stamped key prefix, preserving the last path element of each source
// directory so provider layouts stay distinguishable in the bucket.
type Archiver struct {
	writer *Writer
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver writing under the given key prefix.
func NewArchiver(writer *Writer, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// ArchiveDirs uploads every CSV file found directly inside the given
// directories. Missing directories are skipped. It returns the number of
// files uploaded; the first upload error cancels the remaining uploads.
func (a *Archiver) ArchiveDirs(ctx context.Context, dirs []string) (int, error) {
	stamp := a.now().UTC().Format("2006-01-02")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	var uploaded atomic.Int64
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			a.logger.InfoContext(ctx, "archive source missing, skipping",
				slog.String("dir", dir),
			)
			continue
		}
		if err != nil {
			return int(uploaded.Load()), fmt.Errorf("s3blob: list %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
				continue
			}
			src := filepath.Join(dir, entry.Name())
			key := path.Join(a.prefix, stamp, filepath.Base(dir), entry.Name())
			g.Go(func() error {
				if err := a.uploadFile(ctx, src, key); err != nil {
					return err
				}
				uploaded.Add(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return int(uploaded.Load()), err
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("files", uploaded.Load()),
		slog.String("stamp", stamp),
	)
	return int(uploaded.Load()), nil
}

func (a *Archiver) uploadFile(ctx context.Context, src, key string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", src, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("s3blob: stat %s: %w", src, err)
	}

	if info.Size() >= multipartThreshold {
		return a.writer.PutMultipart(ctx, key, file, minPartSize)
	}
	return a.writer.Put(ctx, key, file, "text/csv")
}
