package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no row matches.
var ErrNotFound = errors.New("repository: not found")

// SourceRepo handles catalog sources.
type SourceRepo struct {
	db DBTX
}

func NewSourceRepo(db DBTX) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Upsert(ctx context.Context, s Source) error {
	dimensions, err := json.Marshal(s.Dimensions)
	if err != nil {
		return fmt.Errorf("encode dimensions: %w", err)
	}
	if s.Dimensions == nil {
		dimensions = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO sources(name, type, url, description, is_rgb, is_pyramid, dimensions_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
	 type=excluded.type,
	 url=excluded.url,
	 description=excluded.description,
	 is_rgb=excluded.is_rgb,
	 is_pyramid=excluded.is_pyramid,
	 dimensions_json=excluded.dimensions_json,
	 updated_at=excluded.updated_at;
	`, s.Name, s.Type, s.URL, s.Description, s.IsRGB, s.IsPyramid, string(dimensions))
	return err
}

func (r *SourceRepo) Get(ctx context.Context, name string) (Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, ErrNotFound
	}
	return s, err
}

func (r *SourceRepo) List(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SourceRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE name = ?`, name)
	return err
}

const sourceColumns = `name, type, url, description, is_rgb, is_pyramid, dimensions_json, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(sc scanner) (Source, error) {
	var (
		s          Source
		dimensions string
	)
	if err := sc.Scan(&s.Name, &s.Type, &s.URL, &s.Description, &s.IsRGB, &s.IsPyramid, &dimensions, &s.UpdatedAt); err != nil {
		return Source{}, err
	}
	if err := json.Unmarshal([]byte(dimensions), &s.Dimensions); err != nil {
		return Source{}, fmt.Errorf("decode dimensions of %q: %w", s.Name, err)
	}
	return s, nil
}
