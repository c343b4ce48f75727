package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	progressEvery = 10_000_000
	minCodeLen    = 3
	maxCodeLen    = 50
)

// scanner finds coupon codes that occur in more than one source file using
// two streaming passes: one bloom filter per file, then a check of every
// code against the other files' filters.
type scanner struct {
	capacity uint
	fpr      float64
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

// normalizeCode returns the canonical form of a line, or false when the line
// is not a usable code.
func normalizeCode(line string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(line))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", false
	}
	return code, true
}

// duplicates returns the codes present in two or more of files.
func (s scanner) duplicates(ctx context.Context, files []string) (map[string]struct{}, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files are supported, got %d", bits.UintSize, len(files))
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := s.buildBloomFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes shared between files")

	dups, err := s.findShared(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "find shared codes")
	}
	return dups, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func (s scanner) buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(s.capacity, s.fpr)
			var count uint64

			if err := streamGzFile(ctx, f, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", f), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}

			slog.Info("pass 1 complete", slog.String("file", f), slog.Uint64("total_codes", count))

			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findShared re-streams each file and checks codes against the other files'
// bloom filters. Bloom hits are only candidates; a code counts as shared once
// two files have reported it.
func (s scanner) findShared(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			if err := streamGzFile(ctx, f, func(code string) {
				for j, other := range filters {
					if j != i && other.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", f)
			}

			slog.Info("pass 2 complete", slog.String("file", f), slog.Int("candidates", len(candidates)))

			results[i] = fileResult{candidates: candidates}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	shared := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			shared[code] = struct{}{}
		}
	}
	return shared, nil
}

// uniqueCodes streams files in order and calls fn with batches of codes not
// in skip. A code repeated in one file is reported once.
func uniqueCodes(ctx context.Context, files []string, skip map[string]struct{}, size int, fn func([]string) error) error {
	batch := make([]string, 0, size)
	for _, f := range files {
		seen := make(map[string]struct{})
		var flushErr error
		err := streamGzFile(ctx, f, func(code string) {
			if flushErr != nil {
				return
			}
			if _, ok := skip[code]; ok {
				return
			}
			if _, ok := seen[code]; ok {
				return
			}
			seen[code] = struct{}{}
			batch = append(batch, code)
			if len(batch) == size {
				flushErr = fn(batch)
				batch = batch[:0]
			}
		})
		if err != nil {
			return err
		}
		if flushErr != nil {
			return flushErr
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each usable code.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code, ok := normalizeCode(sc.Text()); ok {
			fn(code)
		}
	}

	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
