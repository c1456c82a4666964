package database

import (
	"context"
	"fmt"
	"time"

	"anoa.com/challengebot/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Options struct {
	DSN           string
	Host          string
	User          string
	Password      string
	Name          string
	Port          string
	LogLevel      string
	SlowThreshold time.Duration
}

// zapWriter feeds gorm's logger into zap.
type zapWriter struct {
	log *zap.SugaredLogger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.log.Infof(format, args...)
}

func (o Options) dsn() string {
	if o.DSN != "" {
		return o.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		valueOrDefault(o.Host, "localhost"),
		valueOrDefault(o.User, "postgres"),
		o.Password,
		valueOrDefault(o.Name, "challengebot"),
		valueOrDefault(o.Port, "5432"),
	)
}

func Connect(opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(opts.dsn()), &gorm.Config{
		Logger:         NewGormLogger(opts.LogLevel, opts.SlowThreshold),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithComponent("database").Info("database connection established")
	return db, nil
}

func NewGormLogger(level string, slow time.Duration) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch level {
	case "debug":
		lvl = gormlogger.Info
	case "error":
		lvl = gormlogger.Silent
	case "warn":
		lvl = gormlogger.Error
	default:
		lvl = gormlogger.Warn
	}
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	return gormlogger.New(
		&zapWriter{log: logger.WithComponent("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func valueOrDefault(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
