package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteVecIndex stores vectors in a sqlite-vec vec0 virtual table and answers
// KNN queries with its L2 distance. Row ids are position+1.
//
// Facts live in process memory, so the table is emptied on open to keep
// positions aligned with them.
type SQLiteVecIndex struct {
	mu     sync.Mutex
	db     *sql.DB
	dims   int
	count  int
	logger *zap.Logger
}

// NewSQLiteVecIndex opens (or creates) the database at path with the sqlite-vec
// extension loaded. Use ":memory:" for an in-memory database.
func NewSQLiteVecIndex(path string, dims int, logger *zap.Logger) (*SQLiteVecIndex, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if path == "" {
		return nil, fmt.Errorf("sqlite-vec: database path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables on ":memory:" are per connection
	db.SetMaxOpenConns(1)

	idx, err := NewSQLiteVecIndexWithDB(context.Background(), db, dims, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// NewSQLiteVecIndexWithDB prepares the vec0 table on an already opened handle.
func NewSQLiteVecIndexWithDB(ctx context.Context, db *sql.DB, dims int, logger *zap.Logger) (*SQLiteVecIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	createVec := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_facts USING vec0(embedding float[%d])`, dims)
	if _, err := db.ExecContext(ctx, createVec); err != nil {
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM vec_facts`); err != nil {
		return nil, fmt.Errorf("resetting vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.Int("dimensions", dims),
		zap.String("vec_version", vecVersion),
	)
	return &SQLiteVecIndex{db: db, dims: dims, logger: logger}, nil
}

func (s *SQLiteVecIndex) Add(ctx context.Context, vec []float32) (int, error) {
	if len(vec) != s.dims {
		return NoMatch, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dims)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.count
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vec_facts(rowid, embedding) VALUES (?, ?)`,
		int64(pos+1), serializeFloat32(vec),
	); err != nil {
		return NoMatch, fmt.Errorf("inserting embedding: %w", err)
	}
	s.count++
	return pos, nil
}

func (s *SQLiteVecIndex) Search(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, distance FROM vec_facts WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		serializeFloat32(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var rowID int64
		var distance float64
		if err := rows.Scan(&rowID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		pos := int(rowID) - 1
		if pos < 0 || pos >= s.count {
			pos = NoMatch
		}
		out = append(out, Neighbor{Position: pos, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	return out, nil
}

func (s *SQLiteVecIndex) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *SQLiteVecIndex) Close() error {
	return s.db.Close()
}

// serializeFloat32 converts a float32 slice to the little-endian blob format sqlite-vec reads.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

var _ Index = (*SQLiteVecIndex)(nil)
