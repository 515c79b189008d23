//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"billpos/internal/infra"
	"billpos/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(url, 1)
	require.NoError(t, err)
	return rdb
}

func TestPool_DeliversPrintJobs(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	pool := worker.NewPool(rdb, 1)
	pool.Handle(worker.QueuePrint, worker.JobPrint, func(_ context.Context, raw json.RawMessage) error {
		var p worker.PrintJobPayload
		_ = json.Unmarshal(raw, &p)
		got <- p.BillID
		return nil
	})
	pool.Start(ctx)

	billID := uuid.New()
	require.NoError(t, worker.NewDispatcher(rdb).EnqueuePrint(ctx, billID))

	select {
	case id := <-got:
		assert.Equal(t, billID.String(), id)
	case <-time.After(10 * time.Second):
		t.Fatal("print job was never processed")
	}

	cancel()
	pool.Wait()
}

func TestPool_RetriesThenDeadLetters(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	pool := worker.NewPool(rdb, 1)
	pool.Handle(worker.QueuePrint, worker.JobPrint, func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return errors.New("ledger unavailable")
	})
	pool.Start(ctx)

	require.NoError(t, worker.NewDispatcher(rdb).EnqueuePrint(ctx, uuid.New()))

	require.Eventually(t, func() bool {
		n, err := worker.DLQLength(ctx, rdb, worker.QueuePrint)
		return err == nil && n == 1
	}, 20*time.Second, 100*time.Millisecond)
	assert.EqualValues(t, worker.MaxJobAttempts, calls.Load())

	entries, err := worker.ListDLQ(ctx, rdb, worker.QueuePrint, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, worker.JobPrint, entries[0].JobType)
	assert.Equal(t, "ledger unavailable", entries[0].Reason)
	assert.Equal(t, worker.MaxJobAttempts, entries[0].Attempts)
}

func TestPool_MalformedEnvelopeIsDeadLettered(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(rdb, 1)
	pool.Handle(worker.QueuePrint, worker.JobPrint, func(context.Context, json.RawMessage) error { return nil })
	pool.Start(ctx)

	require.NoError(t, rdb.LPush(ctx, worker.QueuePrint, "{not json").Err())

	require.Eventually(t, func() bool {
		n, err := worker.DLQLength(ctx, rdb, worker.QueuePrint)
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)
}
