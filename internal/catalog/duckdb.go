package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBStore is the embedded, "sqlite-like" Store implementation (§4.6):
// a single-file database suited to a single indexer process. Grounded on
// internal/database/database.go's connection/schema conventions and
// internal/storage/node_operations.go's chunked transactional bulk insert.
type DuckDBStore struct {
	conn     *sql.DB
	bulkSize int
}

// OpenDuckDB opens (creating if absent) a DuckDB-backed catalog at dsn and
// ensures its schema exists.
func OpenDuckDB(dsn string, bulkSize int) (*DuckDBStore, error) {
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: pinging duckdb: %w", err)
	}

	store := &DuckDBStore{conn: conn, bulkSize: bulkSize}
	if err := store.createSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *DuckDBStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS servers (
			address TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			online BOOLEAN NOT NULL DEFAULT FALSE,
			last_online TIMESTAMP,
			last_indexed TIMESTAMP,
			size BIGINT NOT NULL DEFAULT 0,
			indexing TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id BIGINT PRIMARY KEY,
			server_address TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			is_directory BOOLEAN NOT NULL DEFAULT FALSE,
			size BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE SEQUENCE IF NOT EXISTS files_id_seq`,
		`CREATE TABLE IF NOT EXISTS params (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_server ON files(server_address)`,
		`CREATE INDEX IF NOT EXISTS idx_servers_last_indexed ON servers(last_indexed)`,
		`CREATE INDEX IF NOT EXISTS idx_servers_last_online ON servers(last_online)`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("catalog: creating schema: %w", err)
		}
	}
	return nil
}

func (s *DuckDBStore) InsertServerIfAbsent(ctx context.Context, record *ServerRecord) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO servers (address, name, online, last_online, last_indexed, size, indexing)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM servers WHERE address = ?)`,
		record.Address, record.Name, record.Online, record.LastOnline,
		record.LastIndexed, record.Size, record.Indexing, record.Address)
	if err != nil {
		return false, fmt.Errorf("catalog: insert server if absent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *DuckDBStore) ConditionalLease(ctx context.Context, address string, now time.Time) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE servers SET indexing = ? WHERE address = ? AND indexing IS NULL`,
		now, address)
	if err != nil {
		return false, fmt.Errorf("catalog: conditional lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *DuckDBStore) GetServer(ctx context.Context, address string) (*ServerRecord, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing
		FROM servers WHERE address = ?`, address)
	return scanServer(row)
}

func (s *DuckDBStore) UpdateServer(ctx context.Context, record *ServerRecord) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE servers SET name = ?, online = ?, last_online = ?, last_indexed = ?, size = ?, indexing = ?
		WHERE address = ?`,
		record.Name, record.Online, record.LastOnline, record.LastIndexed,
		record.Size, record.Indexing, record.Address)
	if err != nil {
		return fmt.Errorf("catalog: update server: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DuckDBStore) ListServers(ctx context.Context) ([]*ServerRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing FROM servers`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list servers: %w", err)
	}
	defer rows.Close()
	return scanServers(rows)
}

func (s *DuckDBStore) ListServersByLastIndexedAsc(ctx context.Context, limit int) ([]*ServerRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing
		FROM servers ORDER BY last_indexed ASC NULLS FIRST LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list servers by last indexed: %w", err)
	}
	defer rows.Close()
	return scanServers(rows)
}

func (s *DuckDBStore) DeleteServersOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM servers WHERE last_online < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("catalog: delete stale servers: %w", err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *DuckDBStore) GetFiles(ctx context.Context, serverAddress string) (map[string]*FileEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, server_address, path, name, is_directory, size
		FROM files WHERE server_address = ?`, serverAddress)
	if err != nil {
		return nil, fmt.Errorf("catalog: get files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*FileEntry)
	for rows.Next() {
		var f FileEntry
		if err := rows.Scan(&f.ID, &f.ServerAddress, &f.Path, &f.Name, &f.IsDirectory, &f.Size); err != nil {
			return nil, fmt.Errorf("catalog: scanning file: %w", err)
		}
		out[f.FullPath()] = &f
	}
	return out, rows.Err()
}

func (s *DuckDBStore) DeleteFiles(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM files WHERE id IN (%s)", strings.Join(placeholders, ","))
	_, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("catalog: delete files: %w", err)
	}
	return nil
}

// BulkInsertFiles inserts entries inside one transaction, issuing a
// multi-row INSERT per BulkSize()-sized chunk.
func (s *DuckDBStore) BulkInsertFiles(ctx context.Context, entries []*FileEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	chunk := s.bulkSize
	if chunk <= 0 {
		chunk = 100
	}
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.insertChunk(ctx, tx, entries[start:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *DuckDBStore) insertChunk(ctx context.Context, tx *sql.Tx, chunk []*FileEntry) error {
	rows := make([]string, len(chunk))
	args := make([]any, 0, len(chunk)*5)
	for i, e := range chunk {
		rows[i] = "(nextval('files_id_seq'), ?, ?, ?, ?, ?)"
		args = append(args, e.ServerAddress, e.Path, e.Name, e.IsDirectory, e.Size)
	}
	query := fmt.Sprintf(
		"INSERT INTO files (id, server_address, path, name, is_directory, size) VALUES %s",
		strings.Join(rows, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("catalog: insert file chunk: %w", err)
	}
	return nil
}

func (s *DuckDBStore) GetParam(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM params WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("catalog: get param: %w", err)
	}
	return value, true, nil
}

func (s *DuckDBStore) SetParam(ctx context.Context, name, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO params (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, name, value)
	if err != nil {
		return fmt.Errorf("catalog: set param: %w", err)
	}
	return nil
}

func (s *DuckDBStore) BulkSize() int {
	if s.bulkSize > 0 {
		return s.bulkSize
	}
	return 100
}

func (s *DuckDBStore) Close() error {
	return s.conn.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanServer(row scannable) (*ServerRecord, error) {
	var rec ServerRecord
	var lastIndexed, indexing sql.NullTime
	err := row.Scan(&rec.Address, &rec.Name, &rec.Online, &rec.LastOnline, &lastIndexed, &rec.Size, &indexing)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: scanning server: %w", err)
	}
	if lastIndexed.Valid {
		rec.LastIndexed = &lastIndexed.Time
	}
	if indexing.Valid {
		rec.Indexing = &indexing.Time
	}
	return &rec, nil
}

func scanServers(rows *sql.Rows) ([]*ServerRecord, error) {
	var out []*ServerRecord
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
