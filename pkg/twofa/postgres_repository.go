package twofa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxExecutor is the subset of *pgxpool.Pool the repository uses.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresUserRepository stores 2FA state in the users table.
type PostgresUserRepository struct {
	db      PgxExecutor
	builder squirrel.StatementBuilderType
}

func NewPostgresUserRepository(db PgxExecutor) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const usersTable = "users"

func (r *PostgresUserRepository) GetUser(ctx context.Context, userID uuid.UUID) (UserRecord, error) {
	query, args, err := r.builder.
		Select("id", "email", "password_hash", "two_factor_enabled", "two_factor_secret", "two_factor_backup_codes").
		From(usersTable).
		Where(squirrel.Eq{"id": userID.String()}).
		ToSql()
	if err != nil {
		return UserRecord{}, fmt.Errorf("build select user: %w", err)
	}

	var (
		rec         UserRecord
		secret      sql.NullString
		backupCodes sql.NullString
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&rec.ID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.TwoFactorEnabled,
		&secret,
		&backupCodes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrRecordNotFound
		}
		return UserRecord{}, fmt.Errorf("select user %s: %w", userID, err)
	}
	rec.TwoFactorSecret = nullStringPtr(secret)
	rec.TwoFactorBackupCodes = nullStringPtr(backupCodes)
	return rec, nil
}

func (r *PostgresUserRepository) UpdateTwoFactor(ctx context.Context, userID uuid.UUID, update TwoFactorUpdate) error {
	query, args, err := r.builder.
		Update(usersTable).
		Set("two_factor_enabled", update.Enabled).
		Set("two_factor_secret", update.Secret).
		Set("two_factor_backup_codes", update.BackupCodes).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": userID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update two factor: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update two factor for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes string) (bool, error) {
	query, args, err := r.builder.
		Update(usersTable).
		Set("two_factor_backup_codes", codes).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.And{
			squirrel.Eq{"id": userID.String()},
			squirrel.Eq{"two_factor_enabled": true},
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build replace backup codes: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("replace backup codes for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Tell a missing user apart from one with 2FA off.
	if _, err := r.GetUser(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// RemoveBackupCodeIfPresent locks the row with SELECT ... FOR UPDATE so a
// concurrent consumption of the same code waits and then sees it gone.
func (r *PostgresUserRepository) RemoveBackupCodeIfPresent(ctx context.Context, userID uuid.UUID, code string) (removed bool, err error) {
	selectQuery, selectArgs, err := r.builder.
		Select("two_factor_backup_codes").
		From(usersTable).
		Where(squirrel.Eq{"id": userID.String()}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select backup codes: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}

	var stored sql.NullString
	if err := tx.QueryRow(ctx, selectQuery, selectArgs...).Scan(&stored); err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrRecordNotFound
		}
		return false, fmt.Errorf("select backup codes for %s: %w", userID, err)
	}

	rec := UserRecord{ID: userID, TwoFactorBackupCodes: nullStringPtr(stored)}
	removed, err = removeCode(&rec, code)
	if err != nil || !removed {
		_ = tx.Rollback(ctx)
		return false, err
	}

	updateQuery, updateArgs, err := r.builder.
		Update(usersTable).
		Set("two_factor_backup_codes", *rec.TwoFactorBackupCodes).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": userID.String()}).
		ToSql()
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("build update backup codes: %w", err)
	}

	if _, err := tx.Exec(ctx, updateQuery, updateArgs...); err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("update backup codes for %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit backup code removal: %w", err)
	}
	return true, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
