package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source represents a catalog row.
type Source struct {
	Name        string
	Type        string
	URL         string
	Description string
	IsRGB       bool
	IsPyramid   bool
	Dimensions  []dims.Dimension
	UpdatedAt   time.Time
}

// Info is the loader input for the source.
func (s Source) Info() loader.Info {
	return loader.Info{
		URL:        s.URL,
		Dimensions: s.Dimensions,
		IsRGB:      s.IsRGB,
		IsPyramid:  s.IsPyramid,
	}
}
