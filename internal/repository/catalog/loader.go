// Package catalog loads the book catalog and prediction tables from CSV files.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain/catalog"
)

// Files names the inputs relative to DataDir.
type Files struct {
	DataDir        string
	Books          string
	Tags           string
	BookTags       string
	TopN           string
	Universe       string
	TopNScheme     catalog.IDScheme
	UniverseScheme catalog.IDScheme
}

// Dataset is everything loaded at startup.
type Dataset struct {
	Catalog  *catalog.Catalog
	TopN     *catalog.Predictions
	Universe *catalog.Predictions
}

// Loader reads a Dataset from disk.
type Loader struct {
	files  Files
	logger *zap.Logger
}

// NewLoader creates a loader for the given file layout.
func NewLoader(files Files, logger *zap.Logger) *Loader {
	return &Loader{files: files, logger: logger}
}

// Load reads all five tables and checks that both prediction tables join to the catalog.
// A table where no row resolves is fatal (domain.ErrCatalogMismatch); partial gaps are logged.
func (l *Loader) Load(ctx context.Context) (Dataset, error) {
	books, err := readFile(ctx, l.path(l.files.Books), ReadBooks)
	if err != nil {
		return Dataset{}, err
	}
	tags, err := readFile(ctx, l.path(l.files.Tags), ReadTags)
	if err != nil {
		return Dataset{}, err
	}
	bookTags, err := readFile(ctx, l.path(l.files.BookTags), ReadBookTags)
	if err != nil {
		return Dataset{}, err
	}

	cat, err := catalog.New(books, tags, bookTags)
	if err != nil {
		return Dataset{}, fmt.Errorf("build catalog: %w", err)
	}

	topN, err := l.loadPredictions(ctx, "top_n", l.files.TopN, l.files.TopNScheme, cat)
	if err != nil {
		return Dataset{}, err
	}
	universe, err := l.loadPredictions(ctx, "universe", l.files.Universe, l.files.UniverseScheme, cat)
	if err != nil {
		return Dataset{}, err
	}

	l.logger.Info("Catalog loaded",
		zap.Int("books", len(books)),
		zap.Int("tags", len(tags)),
		zap.Int("book_tags", len(bookTags)),
		zap.Int("top_n_rows", topN.Len()),
		zap.Int("universe_rows", universe.Len()),
	)

	return Dataset{Catalog: cat, TopN: topN, Universe: universe}, nil
}

func (l *Loader) loadPredictions(
	ctx context.Context, table, file string, scheme catalog.IDScheme, cat *catalog.Catalog,
) (*catalog.Predictions, error) {
	rows, err := readFile(ctx, l.path(file), ReadPredictions)
	if err != nil {
		return nil, err
	}
	p, err := catalog.NewPredictions(rows, scheme)
	if err != nil {
		return nil, fmt.Errorf("%s predictions: %w", table, err)
	}

	rec, err := cat.Reconcile(p)
	if err != nil {
		return nil, fmt.Errorf("%s predictions (%s ids): %w", table, scheme, err)
	}
	if rec.Unresolved > 0 {
		l.logger.Warn("Prediction rows reference unknown books",
			zap.String("table", table),
			zap.String("scheme", string(scheme)),
			zap.Int("rows", rec.Rows),
			zap.Int("unresolved", rec.Unresolved),
		)
	}
	return p, nil
}

func (l *Loader) path(name string) string {
	if filepath.IsAbs(name) || l.files.DataDir == "" {
		return name
	}
	return filepath.Join(l.files.DataDir, name)
}

func readFile[T any](ctx context.Context, path string, read func(string, io.Reader) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return read(filepath.Base(path), f)
}

// ReadBooks parses books.csv. book_id, goodreads_book_id, title and authors are required.
func ReadBooks(name string, r io.Reader) ([]catalog.Book, error) {
	t, err := newTable(name, r, "book_id", "goodreads_book_id", "title", "authors")
	if err != nil {
		return nil, err
	}

	var out []catalog.Book
	err = t.each(func(r row) error {
		id, err := r.int("book_id")
		if err != nil {
			return err
		}
		ext, err := r.int("goodreads_book_id")
		if err != nil {
			return err
		}
		out = append(out, catalog.Book{
			ID:            id,
			ExternalID:    ext,
			Title:         r.str("title"),
			Authors:       r.str("authors"),
			OriginalTitle: r.str("original_title"),
			ISBN:          r.str("isbn"),
			Year:          r.optInt("original_publication_year"),
			LanguageCode:  r.str("language_code"),
			AverageRating: r.optFloat("average_rating"),
			RatingsCount:  r.optInt("ratings_count"),
			ImageURL:      r.str("image_url"),
		})
		return nil
	})
	return out, err
}

// ReadTags parses tags.csv (tag_id, tag_name).
func ReadTags(name string, r io.Reader) ([]catalog.Tag, error) {
	t, err := newTable(name, r, "tag_id", "tag_name")
	if err != nil {
		return nil, err
	}

	var out []catalog.Tag
	err = t.each(func(r row) error {
		id, err := r.int("tag_id")
		if err != nil {
			return err
		}
		out = append(out, catalog.Tag{ID: id, Name: r.str("tag_name")})
		return nil
	})
	return out, err
}

// ReadBookTags parses book_tags.csv (goodreads_book_id, tag_id, optional count).
func ReadBookTags(name string, r io.Reader) ([]catalog.BookTag, error) {
	t, err := newTable(name, r, "goodreads_book_id", "tag_id")
	if err != nil {
		return nil, err
	}

	var out []catalog.BookTag
	err = t.each(func(r row) error {
		ext, err := r.int("goodreads_book_id")
		if err != nil {
			return err
		}
		tag, err := r.int("tag_id")
		if err != nil {
			return err
		}
		out = append(out, catalog.BookTag{ExternalBookID: ext, TagID: tag, Count: r.optInt("count")})
		return nil
	})
	return out, err
}

// ReadPredictions parses a prediction table: user_id, book_id or item_id, prediction.
func ReadPredictions(name string, r io.Reader) ([]catalog.Prediction, error) {
	t, err := newTable(name, r, "user_id", "prediction")
	if err != nil {
		return nil, err
	}
	itemCol, ok := t.pick("book_id", "item_id")
	if !ok {
		return nil, fmt.Errorf("%s: missing column \"book_id\" or \"item_id\"", name)
	}

	var out []catalog.Prediction
	err = t.each(func(r row) error {
		user, err := r.int("user_id")
		if err != nil {
			return err
		}
		item, err := r.int(itemCol)
		if err != nil {
			return err
		}
		score, err := r.float("prediction")
		if err != nil {
			return err
		}
		out = append(out, catalog.Prediction{UserID: user, ItemID: item, Score: score})
		return nil
	})
	return out, err
}
