package catalog

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig configures the server-class Store (§4.6).
type ClickHouseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	UseSSL       bool
	MaxOpenConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Compression  string
	BulkSize     int
}

// ClickHouseStore is the server-class Store implementation. Grounded on
// internal/database/clickhouse.go's connection setup and
// internal/storage/clickhouse_storage.go's native PrepareBatch insert path.
//
// ClickHouse has no row-level transactional UPDATE: servers is a
// ReplacingMergeTree keyed on address, where every write (including the
// lease) inserts a new versioned row and reads go through FINAL. conditional
// lease is therefore implemented as read-check-insert rather than a single
// atomic statement. See DESIGN.md for the resulting race window and why it
// is acceptable for this engine's single-active-indexer-per-tick model.
type ClickHouseStore struct {
	conn     driver.Conn
	bulkSize int
	nextID   int64 // process-local file id counter, seeded from current max on open
}

// OpenClickHouse connects to a ClickHouse server and ensures its schema
// exists.
func OpenClickHouse(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	}
	if cfg.UseSSL {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening clickhouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: pinging clickhouse: %w", err)
	}

	store := &ClickHouseStore{conn: conn, bulkSize: cfg.BulkSize}
	if err := store.createSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	if err := store.seedNextID(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *ClickHouseStore) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS servers (
			address String,
			name String DEFAULT '',
			online Bool DEFAULT false,
			last_online DateTime,
			last_indexed Nullable(DateTime),
			size Int64 DEFAULT 0,
			indexing Nullable(DateTime),
			version UInt64
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY address`,
		`CREATE TABLE IF NOT EXISTS files (
			id Int64,
			server_address String,
			path String,
			name String,
			is_directory Bool DEFAULT false,
			size Int64 DEFAULT 0
		) ENGINE = MergeTree()
		ORDER BY (server_address, path, name)`,
		`CREATE TABLE IF NOT EXISTS params (
			name String,
			value String,
			version UInt64
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY name`,
	}
	for _, stmt := range statements {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: creating clickhouse schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStore) seedNextID(ctx context.Context) error {
	var max int64
	row := s.conn.QueryRow(ctx, `SELECT max(id) FROM files`)
	if err := row.Scan(&max); err != nil {
		return fmt.Errorf("catalog: seeding file id counter: %w", err)
	}
	atomic.StoreInt64(&s.nextID, max)
	return nil
}

func (s *ClickHouseStore) insertServerVersion(ctx context.Context, record *ServerRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO servers
		(address, name, online, last_online, last_indexed, size, indexing, version)`)
	if err != nil {
		return fmt.Errorf("catalog: preparing server insert: %w", err)
	}
	if err := batch.Append(
		record.Address, record.Name, record.Online, record.LastOnline,
		record.LastIndexed, record.Size, record.Indexing, uint64(time.Now().UnixNano()),
	); err != nil {
		return fmt.Errorf("catalog: appending server row: %w", err)
	}
	return batch.Send()
}

func (s *ClickHouseStore) InsertServerIfAbsent(ctx context.Context, record *ServerRecord) (bool, error) {
	if _, err := s.GetServer(ctx, record.Address); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.insertServerVersion(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// ConditionalLease is read-check-insert rather than a single atomic
// statement: ClickHouse has no row-level compare-and-set. A concurrent
// second writer racing between the read and the insert could both observe
// indexing IS NULL and both insert a lease row; the engine tolerates this
// because in practice one indexer process drives the scheduler per tick.
func (s *ClickHouseStore) ConditionalLease(ctx context.Context, address string, now time.Time) (bool, error) {
	rec, err := s.GetServer(ctx, address)
	if err != nil {
		return false, err
	}
	if rec.Indexing != nil {
		return false, nil
	}
	rec.Indexing = &now
	if err := s.insertServerVersion(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ClickHouseStore) GetServer(ctx context.Context, address string) (*ServerRecord, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing
		FROM servers FINAL WHERE address = ?`, address)

	var rec ServerRecord
	err := row.Scan(&rec.Address, &rec.Name, &rec.Online, &rec.LastOnline,
		&rec.LastIndexed, &rec.Size, &rec.Indexing)
	if err != nil {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *ClickHouseStore) UpdateServer(ctx context.Context, record *ServerRecord) error {
	if _, err := s.GetServer(ctx, record.Address); err != nil {
		return err
	}
	return s.insertServerVersion(ctx, record)
}

func (s *ClickHouseStore) ListServers(ctx context.Context) ([]*ServerRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing
		FROM servers FINAL`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list servers: %w", err)
	}
	defer rows.Close()

	var out []*ServerRecord
	for rows.Next() {
		var rec ServerRecord
		if err := rows.Scan(&rec.Address, &rec.Name, &rec.Online, &rec.LastOnline,
			&rec.LastIndexed, &rec.Size, &rec.Indexing); err != nil {
			return nil, fmt.Errorf("catalog: scanning server: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) ListServersByLastIndexedAsc(ctx context.Context, limit int) ([]*ServerRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT address, name, online, last_online, last_indexed, size, indexing
		FROM servers FINAL ORDER BY last_indexed ASC NULLS FIRST LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list servers by last indexed: %w", err)
	}
	defer rows.Close()

	var out []*ServerRecord
	for rows.Next() {
		var rec ServerRecord
		if err := rows.Scan(&rec.Address, &rec.Name, &rec.Online, &rec.LastOnline,
			&rec.LastIndexed, &rec.Size, &rec.Indexing); err != nil {
			return nil, fmt.Errorf("catalog: scanning server: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) DeleteServersOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	servers, err := s.ListServers(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, rec := range servers {
		if rec.LastOnline.Before(cutoff) {
			stale = append(stale, rec.Address)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.conn.Exec(ctx,
		`ALTER TABLE servers DELETE WHERE address IN ? SETTINGS mutations_sync = 1`, stale); err != nil {
		return 0, fmt.Errorf("catalog: deleting stale servers: %w", err)
	}
	if err := s.conn.Exec(ctx,
		`ALTER TABLE files DELETE WHERE server_address IN ? SETTINGS mutations_sync = 1`, stale); err != nil {
		return 0, fmt.Errorf("catalog: cascading file deletes: %w", err)
	}
	return len(stale), nil
}

func (s *ClickHouseStore) GetFiles(ctx context.Context, serverAddress string) (map[string]*FileEntry, error) {
	rows, err := s.conn.Query(ctx, `
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

func (s *ClickHouseStore) DeleteFiles(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.conn.Exec(ctx,
		`ALTER TABLE files DELETE WHERE id IN ? SETTINGS mutations_sync = 1`, ids); err != nil {
		return fmt.Errorf("catalog: delete files: %w", err)
	}
	return nil
}

// BulkInsertFiles appends entries through PrepareBatch in BulkSize()-sized
// chunks, the native parameterized path (no SQL string building).
func (s *ClickHouseStore) BulkInsertFiles(ctx context.Context, entries []*FileEntry) error {
	if len(entries) == 0 {
		return nil
	}

	chunk := s.BulkSize()
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.insertFileChunk(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStore) insertFileChunk(ctx context.Context, chunk []*FileEntry) error {
	batch, err := s.conn.PrepareBatch(ctx,
		`INSERT INTO files (id, server_address, path, name, is_directory, size)`)
	if err != nil {
		return fmt.Errorf("catalog: preparing file batch: %w", err)
	}

	for _, e := range chunk {
		id := atomic.AddInt64(&s.nextID, 1)
		e.ID = id
		if err := batch.Append(e.ID, e.ServerAddress, e.Path, e.Name, e.IsDirectory, e.Size); err != nil {
			return fmt.Errorf("catalog: appending file row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("catalog: sending file batch: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) GetParam(ctx context.Context, name string) (string, bool, error) {
	var value string
	row := s.conn.QueryRow(ctx, `SELECT value FROM params FINAL WHERE name = ?`, name)
	if err := row.Scan(&value); err != nil {
		return "", false, nil
	}
	return value, true, nil
}

func (s *ClickHouseStore) SetParam(ctx context.Context, name, value string) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO params (name, value, version)`)
	if err != nil {
		return fmt.Errorf("catalog: preparing param insert: %w", err)
	}
	if err := batch.Append(name, value, uint64(time.Now().UnixNano())); err != nil {
		return fmt.Errorf("catalog: appending param row: %w", err)
	}
	return batch.Send()
}

func (s *ClickHouseStore) BulkSize() int {
	if s.bulkSize > 0 {
		return s.bulkSize
	}
	return 10000
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
