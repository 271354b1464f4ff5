package twofa

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts Postgres with the finance schema. It needs Docker,
// so it only runs with TWOFA_PG_INTEGRATION=1.
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() || os.Getenv("TWOFA_PG_INTEGRATION") != "1" {
		t.Skip("set TWOFA_PG_INTEGRATION=1 to run postgres integration tests")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("..", "..", "migrations", "finance_db.sql")),
		postgres.WithDatabase("finance_db"),
		postgres.WithUsername("finance"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresUserRepository_Integration(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	repo := NewPostgresUserRepository(pool)

	id := uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`, id, "a@b.com", "hash")
	require.NoError(t, err)

	m := NewTwoFactorManager(repo)
	setup, err := m.BeginSetup(ctx, id)
	require.NoError(t, err)
	codes, err := m.GenerateBackupCodes()
	require.NoError(t, err)
	_, err = m.EnableTwoFactor(ctx, id, setup.Secret, codeAt(setup.Secret, time.Now()), codes)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.ConsumeBackupCode(ctx, id, codes[0])
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	status, err := m.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Status{Enabled: true, BackupCodesRemaining: BackupCodeCount - 1, Email: "a@b.com"}, status)

	_, err = m.DisableTwoFactor(ctx, id)
	require.NoError(t, err)
	_, err = m.DisableTwoFactor(ctx, id)
	assert.ErrorIs(t, err, ErrNotEnabled)
}
