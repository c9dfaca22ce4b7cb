package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

// OpenSQLite catalog bazasini ochish va jadvallarni yaratish
//
// The pool holds a single connection: sqlite has one writer, so concurrent
// import transactions queue on the pool instead of failing with SQLITE_BUSY.
func OpenSQLite(dbPath string) (*gorm.DB, error) {
	if dbPath == "" {
		return nil, errors.New("db path bo'sh bo'lmasligi kerak")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("db papkasini yaratib bo'lmadi: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(logger.Component("storage")),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite ochilmadi: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("schema yaratib bo'lmadi: %w", err)
	}
	return db, nil
}

// Close closes the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fatalCodes are sqlite result codes after which the transaction can not be
// trusted any more.
var fatalCodes = map[sqlite3.ErrNo]bool{
	sqlite3.ErrFull:     true,
	sqlite3.ErrIoErr:    true,
	sqlite3.ErrCorrupt:  true,
	sqlite3.ErrNotADB:   true,
	sqlite3.ErrReadonly: true,
	sqlite3.ErrBusy:     true,
	sqlite3.ErrLocked:   true,
	sqlite3.ErrNomem:    true,
	sqlite3.ErrCantOpen: true,
	sqlite3.ErrProtocol: true,
	sqlite3.ErrPerm:     true,
}

// isFatal reports whether err leaves the transaction unusable.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return fatalCodes[sqliteErr.Code]
	}
	return false
}

// classify wraps a write error as TransactionFatal or BatchWrite.
func classify(op, entity, key string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.KindOf(err); ok {
		return err
	}
	if isFatal(err) {
		return apperror.WrapRecord(apperror.TransactionFatal, op, entity, key, err)
	}
	return apperror.WrapRecord(apperror.BatchWrite, op, entity, key, err)
}

// gormLogger routes gorm's slow query and error logs through logrus.
type gormLogger struct {
	log   *logrus.Entry
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(log *logrus.Entry) gormlogger.Interface {
	return &gormLogger{log: log, level: gormlogger.Warn, slow: time.Second}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Errorf(msg, args...)
	}
}

// Trace row-level write errors are expected and handled by the caller, so
// only slow statements are logged here.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), _ error) {
	if l.level < gormlogger.Warn {
		return
	}
	if elapsed := time.Since(begin); elapsed > l.slow {
		query, rows := fc()
		l.log.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Warnf("sekin so'rov: %.200s", query)
	}
}
