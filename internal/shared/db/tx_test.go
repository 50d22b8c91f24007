package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestLocalTxManager_NestedJoinsOuter(t *testing.T) {
	m := NewLocalTxManager()

	calls := 0
	err := m.WithTx(context.Background(), func(ctx context.Context) error {
		calls++
		return m.WithTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestLocalTxManager_SerializesUnitsOfWork(t *testing.T) {
	m := NewLocalTxManager()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithTx(context.Background(), func(ctx context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestLocalTxManager_PropagatesError(t *testing.T) {
	m := NewLocalTxManager()
	boom := errors.New("boom")

	err := m.WithTx(context.Background(), func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "22P02"}))
	require.False(t, IsUniqueViolation(errors.New("other")))
}
