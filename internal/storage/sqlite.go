package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/genomesearch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a
// private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	memory := dbPath == ":memory:"
	if dir := filepath.Dir(dbPath); !memory && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_records (
		index_key TEXT PRIMARY KEY,
		ref TEXT NOT NULL,
		name TEXT,
		type TEXT NOT NULL,
		scientific_name TEXT,
		feature_count INTEGER NOT NULL,
		contig_count INTEGER NOT NULL,
		built_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_index_records_built_at ON index_records(built_at);

	CREATE TABLE IF NOT EXISTS features (
		index_key TEXT NOT NULL,
		pos INTEGER NOT NULL,
		feature_id TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (index_key, pos)
	);

	CREATE TABLE IF NOT EXISTS contigs (
		index_key TEXT NOT NULL,
		pos INTEGER NOT NULL,
		contig_id TEXT NOT NULL,
		length INTEGER NOT NULL,
		feature_count INTEGER NOT NULL,
		name TEXT,
		description TEXT,
		PRIMARY KEY (index_key, pos)
	);

	CREATE INDEX IF NOT EXISTS idx_contigs_contig_id ON contigs(index_key, contig_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveIndex replaces everything stored under rec.Key in one transaction.
func (s *SQLiteStorage) SaveIndex(ctx context.Context, rec *models.IndexRecord, features []models.FeatureData, contigs []models.ContigData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteIndexTx(ctx, tx, rec.Key); err != nil {
		return err
	}

	featureStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features (index_key, pos, feature_id, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer featureStmt.Close()
	for _, f := range features {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal feature %s: %w", f.FeatureID, err)
		}
		if _, err := featureStmt.ExecContext(ctx, rec.Key, f.FeatureIdx, f.FeatureID, string(data)); err != nil {
			return err
		}
	}

	contigStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contigs (index_key, pos, contig_id, length, feature_count, name, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer contigStmt.Close()
	for _, c := range contigs {
		if _, err := contigStmt.ExecContext(ctx, rec.Key, c.Position, c.ContigID, c.Length, c.FeatureCount, c.Name, c.Description); err != nil {
			return err
		}
	}

	if rec.BuiltAt.IsZero() {
		rec.BuiltAt = time.Now().UTC()
	}
	rec.FeatureCount = int64(len(features))
	rec.ContigCount = int64(len(contigs))
	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_records (index_key, ref, name, type, scientific_name, feature_count, contig_count, built_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Ref, rec.Name, rec.Type, rec.ScientificName, rec.FeatureCount, rec.ContigCount, rec.BuiltAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetIndexRecord returns the catalogue entry for key.
func (s *SQLiteStorage) GetIndexRecord(ctx context.Context, key string) (*models.IndexRecord, error) {
	var rec models.IndexRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT index_key, ref, name, type, scientific_name, feature_count, contig_count, built_at
		 FROM index_records WHERE index_key = ?`, key,
	).Scan(&rec.Key, &rec.Ref, &rec.Name, &rec.Type, &rec.ScientificName, &rec.FeatureCount, &rec.ContigCount, &rec.BuiltAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: index %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIndexRecords returns catalogue entries, most recently built first.
func (s *SQLiteStorage) ListIndexRecords(ctx context.Context, offset, limit int) ([]*models.IndexRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT index_key, ref, name, type, scientific_name, feature_count, contig_count, built_at
		 FROM index_records ORDER BY built_at DESC, index_key LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.IndexRecord
	for rows.Next() {
		var rec models.IndexRecord
		if err := rows.Scan(&rec.Key, &rec.Ref, &rec.Name, &rec.Type, &rec.ScientificName, &rec.FeatureCount, &rec.ContigCount, &rec.BuiltAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// DeleteIndex removes the catalogue entry and all records of key.
func (s *SQLiteStorage) DeleteIndex(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteIndexTx(ctx, tx, key); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteIndexTx(ctx context.Context, tx *sql.Tx, key string) error {
	for _, table := range []string{"features", "contigs", "index_records"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE index_key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// GetFeatures returns the features at positions, in the given order.
// Unknown positions are skipped.
func (s *SQLiteStorage) GetFeatures(ctx context.Context, key string, positions []int64) ([]models.FeatureData, error) {
	if len(positions) == 0 {
		return []models.FeatureData{}, nil
	}
	args := positionArgs(key, positions)
	rows, err := s.db.QueryContext(ctx,
		`SELECT pos, data FROM features WHERE index_key = ? AND pos IN (`+placeholders(len(positions))+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPos := make(map[int64]models.FeatureData, len(positions))
	for rows.Next() {
		pos, f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		byPos[pos] = f
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.FeatureData, 0, len(positions))
	for _, p := range positions {
		if f, ok := byPos[p]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// AllFeatures returns every feature of key in position order.
func (s *SQLiteStorage) AllFeatures(ctx context.Context, key string) ([]models.FeatureData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pos, data FROM features WHERE index_key = ? ORDER BY pos`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FeatureData
	for rows.Next() {
		_, f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFeature(rows *sql.Rows) (int64, models.FeatureData, error) {
	var (
		pos  int64
		data string
		f    models.FeatureData
	)
	if err := rows.Scan(&pos, &data); err != nil {
		return 0, f, err
	}
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return 0, f, fmt.Errorf("failed to unmarshal feature at %d: %w", pos, err)
	}
	return pos, f, nil
}

// GetContigs returns the contigs at positions, in the given order.
func (s *SQLiteStorage) GetContigs(ctx context.Context, key string, positions []int64) ([]models.ContigData, error) {
	if len(positions) == 0 {
		return []models.ContigData{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT pos, contig_id, length, feature_count, name, description
		 FROM contigs WHERE index_key = ? AND pos IN (`+placeholders(len(positions))+`)`,
		positionArgs(key, positions)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPos := make(map[int64]models.ContigData, len(positions))
	for rows.Next() {
		c, err := scanContig(rows)
		if err != nil {
			return nil, err
		}
		byPos[c.Position] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.ContigData, 0, len(positions))
	for _, p := range positions {
		if c, ok := byPos[p]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// AllContigs returns every contig of key in position order.
func (s *SQLiteStorage) AllContigs(ctx context.Context, key string) ([]models.ContigData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pos, contig_id, length, feature_count, name, description
		 FROM contigs WHERE index_key = ? ORDER BY pos`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContigData
	for rows.Next() {
		c, err := scanContig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContig(rows *sql.Rows) (models.ContigData, error) {
	var (
		c                 models.ContigData
		name, description sql.NullString
	)
	if err := rows.Scan(&c.Position, &c.ContigID, &c.Length, &c.FeatureCount, &name, &description); err != nil {
		return c, err
	}
	c.Name = name.String
	c.Description = description.String
	return c, nil
}

// GetContigLength returns the length of contigID within key.
func (s *SQLiteStorage) GetContigLength(ctx context.Context, key, contigID string) (int64, bool, error) {
	var length int64
	err := s.db.QueryRowContext(ctx,
		`SELECT length FROM contigs WHERE index_key = ? AND contig_id = ? LIMIT 1`, key, contigID,
	).Scan(&length)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return length, true, nil
}

// CountIndexes returns the number of catalogue entries.
func (s *SQLiteStorage) CountIndexes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_records`).Scan(&count)
	return count, err
}

// CountFeatures returns the total number of stored features.
func (s *SQLiteStorage) CountFeatures(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func positionArgs(key string, positions []int64) []interface{} {
	args := make([]interface{}, 0, len(positions)+1)
	args = append(args, key)
	for _, p := range positions {
		args = append(args, p)
	}
	return args
}
