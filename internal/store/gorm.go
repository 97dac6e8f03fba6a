package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaultsandbox/peermail/internal/record"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// row is the table layout of one log entry.
type row struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	Hash      string `gorm:"size:64;uniqueIndex;not null"`
	Kind      string `gorm:"size:32;index;not null"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (row) TableName() string { return "records" }

// GormLog is a Log backed by a GORM database.
type GormLog struct {
	db  *gorm.DB
	mu  sync.Mutex
	now func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite log at path.
// Use ":memory:" for a private in-memory log.
func OpenSQLite(path string) (*GormLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an existing GORM connection and migrates the records table.
func New(db *gorm.DB) (*GormLog, error) {
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return &GormLog{db: db, now: time.Now}, nil
}

// Append encodes e and stores it unless an identical record exists.
func (l *GormLog) Append(ctx context.Context, e record.Entry) (record.ID, error) {
	kind, payload, err := record.Encode(e)
	if err != nil {
		return record.ID{}, err
	}
	id := record.Hash(kind, payload)

	l.mu.Lock()
	defer l.mu.Unlock()

	r := row{
		Hash:      id.String(),
		Kind:      string(kind),
		Payload:   payload,
		CreatedAt: l.now().UTC(),
	}
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(&r)
	if result.Error != nil {
		return record.ID{}, fmt.Errorf("store: append %s: %w", kind, result.Error)
	}
	return id, nil
}

// Query returns every record of kind in append order.
func (l *GormLog) Query(ctx context.Context, kind record.Kind) ([]Record, error) {
	var rows []row
	if err := l.db.WithContext(ctx).Where("kind = ?", string(kind)).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: query %s: %w", kind, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record with the given id.
func (l *GormLog) Get(ctx context.Context, id record.ID) (Record, error) {
	var r row
	err := l.db.WithContext(ctx).Where("hash = ?", id.String()).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get %s: %w", id.Short(), err)
	}
	return r.decode()
}

// Count returns the number of records of kind.
func (l *GormLog) Count(ctx context.Context, kind record.Kind) (int64, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&row{}).Where("kind = ?", string(kind)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count %s: %w", kind, err)
	}
	return n, nil
}

// Close releases the underlying database connection.
func (l *GormLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

func (r row) decode() (Record, error) {
	kind, err := record.ParseKind(r.Kind)
	if err != nil {
		return Record{}, fmt.Errorf("store: row %d: %w", r.Seq, err)
	}
	entry, err := record.Decode(kind, r.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("store: row %d: %w", r.Seq, err)
	}
	id, err := record.ParseID(r.Hash)
	if err != nil {
		return Record{}, fmt.Errorf("store: row %d: %w", r.Seq, err)
	}
	return Record{ID: id, Seq: r.Seq, Entry: entry, CreatedAt: r.CreatedAt}, nil
}
