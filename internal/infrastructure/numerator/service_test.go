package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "posledger/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = m.val
	}
	return nil
}

// mockQuerier simulates one sys_sequences row per key.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	m.values[key]++
	return &mockRow{val: m.values[key]}
}

func newService(q *mockQuerier) *Service {
	return New(func(context.Context) Querier { return q })
}

var day = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestNext_Sequential(t *testing.T) {
	svc := newService(newMockQuerier())
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixInvoice, "BR01")

	first, err := svc.Next(ctx, cfg, day)
	require.NoError(t, err)
	second, err := svc.Next(ctx, cfg, day)
	require.NoError(t, err)

	assert.Equal(t, "INV-20250615-BR01-00001", first)
	assert.Equal(t, "INV-20250615-BR01-00002", second)
}

func TestNext_SequenceIsPerPrefixNotPerBranch(t *testing.T) {
	svc := newService(newMockQuerier())
	ctx := context.Background()

	a, err := svc.Next(ctx, corenumerator.DefaultConfig(corenumerator.PrefixInvoice, "BR01"), day)
	require.NoError(t, err)
	b, err := svc.Next(ctx, corenumerator.DefaultConfig(corenumerator.PrefixInvoice, "BR02"), day)
	require.NoError(t, err)
	r, err := svc.Next(ctx, corenumerator.DefaultConfig(corenumerator.PrefixReturn, "BR01"), day)
	require.NoError(t, err)

	assert.Equal(t, "INV-20250615-BR01-00001", a)
	assert.Equal(t, "INV-20250615-BR02-00002", b)
	assert.Equal(t, "RET-20250615-BR01-00001", r)
}

func TestNext_Concurrent(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixInvoice, "BR01")

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(ctx, cfg, day)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, int64(50), q.values[corenumerator.PrefixInvoice])
}

func TestNext_QueryError(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection reset")

	_, err := newService(q).Next(context.Background(), corenumerator.DefaultConfig(corenumerator.PrefixInvoice, "BR01"), day)
	assert.ErrorContains(t, err, "next INV sequence")
}

func TestNext_Uninitialized(t *testing.T) {
	var svc *Service
	_, err := svc.Next(context.Background(), corenumerator.Config{Prefix: "INV"}, day)
	assert.Error(t, err)
}
