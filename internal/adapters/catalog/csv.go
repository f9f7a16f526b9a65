// Package catalog loads the static candidate catalog from CSV, either from
// a local file or over HTTP, and keeps it fresh.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/similarity"
)

const artistSeparator = ";"

// column aliases seen in public track datasets
var columnAliases = map[string]string{
	"id":          "track_id",
	"name":        "track_name",
	"genre":       "track_genre",
	"album":       "album_name",
	"artist_name": "artists",
}

// Opener returns a fresh reader over the catalog bytes.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Rows yields every record of the CSV produced by open, keyed by normalized
// header name. Each range over the sequence opens the source again, so the
// sequence can be iterated more than once. Iteration stops at the first
// read error, which is yielded with a nil row.
func Rows(ctx context.Context, open Opener) iter.Seq2[similarity.Row, error] {
	return func(yield func(similarity.Row, error) bool) {
		rc, err := open(ctx)
		if err != nil {
			yield(nil, fmt.Errorf("catalog: open: %w", err))
			return
		}
		defer rc.Close()

		r := csv.NewReader(rc)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true

		header, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			yield(nil, fmt.Errorf("catalog: read header: %w", err))
			return
		}
		columns := normalizeHeader(header)

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("catalog: read record: %w", err))
				return
			}

			row := make(similarity.Row, len(columns))
			for i, col := range columns {
				if col == "" || i >= len(record) {
					continue
				}
				row[col] = record[i]
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Entries adapts Rows into catalog entries.
func Entries(ctx context.Context, open Opener) iter.Seq2[domain.CatalogEntry, error] {
	return func(yield func(domain.CatalogEntry, error) bool) {
		for row, err := range Rows(ctx, open) {
			if err != nil {
				yield(domain.CatalogEntry{}, err)
				return
			}
			if !yield(ParseEntry(row), nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq2[domain.CatalogEntry, error]) ([]domain.CatalogEntry, error) {
	var out []domain.CatalogEntry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseEntry builds a catalog entry from a raw row. Feature columns that are
// missing or not numeric stay 0.
func ParseEntry(row similarity.Row) domain.CatalogEntry {
	e := domain.CatalogEntry{
		ID:        strings.TrimSpace(row["track_id"]),
		TrackName: strings.TrimSpace(row["track_name"]),
		AlbumName: strings.TrimSpace(row["album_name"]),
		Genre:     strings.TrimSpace(row["track_genre"]),
		Artists:   splitArtists(row["artists"]),
	}
	if p, err := strconv.ParseFloat(strings.TrimSpace(row["popularity"]), 64); err == nil && !math.IsNaN(p) && !math.IsInf(p, 0) {
		e.Popularity = p
	}
	for _, f := range similarity.ExtendedFields {
		v, ok := row.FeatureValue(string(f))
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		e.Features.SetFeatureValue(string(f), v)
	}
	e.Features.ID = e.ID
	return e
}

func splitArtists(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, artistSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if h == "" || h == "unnamed: 0" {
			continue
		}
		if canonical, ok := columnAliases[h]; ok {
			h = canonical
		}
		out[i] = h
	}
	return out
}
