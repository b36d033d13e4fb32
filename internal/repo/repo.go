package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const maxTxAttempts = 3

type GormRepo struct {
	DB *gorm.DB
}

// InTx runs fn in a transaction, restarting it when postgres reports a serialization
// failure or deadlock.
func (r *GormRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.inTx(ctx, fn, isSerializationFailure)
}

// InTxRetryConflicts also restarts on unique violations, for writers that insert-if-absent.
func (r *GormRepo) InTxRetryConflicts(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.inTx(ctx, fn, func(err error) bool {
		return isSerializationFailure(err) || errors.Is(err, gorm.ErrDuplicatedKey)
	})
}

func (r *GormRepo) inTx(ctx context.Context, fn func(tx *gorm.DB) error, retryable func(error) bool) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.DB.WithContext(ctx).Transaction(fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (r *GormRepo) AutoMigrate(models ...any) error {
	return r.DB.AutoMigrate(models...)
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
