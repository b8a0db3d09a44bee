// Package store persists completed survey submissions in a single
// append-only table, users_personality. SQLite is the default backend;
// Postgres is selected by driver name.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultDSN is the SQLite database file used when none is configured.
const DefaultDSN = "data.db"

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// Record is the row layout of users_personality.
type Record struct {
	ID                    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CurrentDate           string `gorm:"column:current_date;type:text"`
	Ratings               string `gorm:"column:ratings;type:text"`
	PersonalityAssessment string `gorm:"column:personality_assessment;type:text"`
}

func (Record) TableName() string { return "users_personality" }

func (r Record) submission() model.Submission {
	return model.Submission{
		ID:          r.ID,
		CurrentDate: r.CurrentDate,
		Ratings:     r.Ratings,
		Assessment:  r.PersonalityAssessment,
	}
}

// Options configures Open.
type Options struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string
	// Verbose logs every SQL statement.
	Verbose bool
	Logger  *logger.Logger
}

// Store is the record store. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects to the database and creates the table if it is missing.
func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	dsn := opts.DSN

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "sqlite3":
		driver = DriverSQLite
		if dsn == "" {
			dsn = DefaultDSN
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	logg = logg.With("service", "Store", "driver", driver)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logg, opts.Verbose)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer; queue callers on a single connection
		// instead of surfacing "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("create users_personality table: %w", err)
	}

	return &Store{db: db, driver: driver, log: logg}, nil
}

// newGormLogger sends gorm's statement and warning output through zap, so
// it follows the configured log destination. With verbose every statement
// is logged at info level; otherwise only slow queries and errors, at warn.
func newGormLogger(logg *logger.Logger, verbose bool) gormLogger.Interface {
	level, at := gormLogger.Warn, zapcore.WarnLevel
	if verbose {
		level, at = gormLogger.Info, zapcore.InfoLevel
	}
	std, err := zap.NewStdLogAt(logg.SugaredLogger.Desugar(), at)
	if err != nil {
		std = zap.NewStdLog(logg.SugaredLogger.Desugar())
	}
	return gormLogger.New(std, gormLogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Driver returns the normalized driver name.
func (s *Store) Driver() string { return s.driver }

// Add inserts one submission and returns it with its assigned id.
func (s *Store) Add(ctx context.Context, timestamp string, ratings model.RatingSet, narrative string) (*model.Submission, error) {
	blob, err := ratings.Encode()
	if err != nil {
		return nil, err
	}
	rec := &Record{
		CurrentDate:           timestamp,
		Ratings:               blob,
		PersonalityAssessment: narrative,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	s.log.Debug("submission stored", "id", rec.ID, "ratings", len(ratings))

	sub := rec.submission()
	return &sub, nil
}

// All returns every stored submission ordered by id.
func (s *Store) All(ctx context.Context) ([]model.Submission, error) {
	var recs []Record
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	out := make([]model.Submission, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.submission())
	}
	return out, nil
}

// Count returns the number of stored submissions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
