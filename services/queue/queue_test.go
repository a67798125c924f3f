package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testQueue(t *testing.T, p Processor) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	q, err := New(Config{TickInterval: 5 * time.Millisecond, SnapshotPath: path}, p, logger.NewNop())
	require.NoError(t, err)
	return q, path
}

func await(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job outcome")
		return Outcome{}
	}
}

func okResult(job Job) *Result {
	return &Result{Success: true, Message: "enhanced " + job.Title}
}

func TestQueue_RunsJobsInOrderOneAtATime(t *testing.T) {
	var (
		mu      sync.Mutex
		order   []uint
		running int32
		maxSeen int32
	)
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			prev := atomic.LoadInt32(&maxSeen)
			if n <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, n) {
				break
			}
		}

		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		order = append(order, job.ModuleID)
		mu.Unlock()
		return okResult(job), nil
	}))

	var outcomes []<-chan Outcome
	for id := uint(1); id <= 4; id++ {
		outcomes = append(outcomes, q.Enqueue(EnqueueRequest{ModuleID: id, Title: "Module"}))
	}
	q.Start()
	defer q.Shutdown()

	for _, ch := range outcomes {
		out := await(t, ch)
		require.NoError(t, out.Err)
		assert.True(t, out.Result.Success)
	}

	assert.Equal(t, []uint{1, 2, 3, 4}, order)
	assert.EqualValues(t, 1, atomic.LoadInt32(&maxSeen))
}

func TestQueue_TickDoesNotStartSecondJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		started <- job.ID
		<-release
		return okResult(job), nil
	}))

	first := q.Enqueue(EnqueueRequest{ModuleID: 1, Title: "First"})
	second := q.Enqueue(EnqueueRequest{ModuleID: 2, Title: "Second"})

	q.tick()
	<-started
	q.tick()
	q.tick()

	status := q.Status()
	assert.Equal(t, 1, status.InFlightCount)
	assert.Equal(t, 1, status.PendingCount)
	require.Len(t, status.Items, 1)
	assert.Equal(t, "Second", status.Items[0].Title)

	close(release)
	require.NoError(t, await(t, first).Err)

	// The finished job frees the slot for the next tick
	require.Eventually(t, func() bool { return q.Status().InFlightCount == 0 }, time.Second, time.Millisecond)
	q.tick()
	require.NoError(t, await(t, second).Err)
	assert.Equal(t, 0, q.Status().PendingCount)
}

func TestQueue_FailuresDoNotWedgeTheExecutor(t *testing.T) {
	boom := errors.New("store unavailable")
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		switch job.ModuleID {
		case 1:
			return nil, boom
		case 2:
			panic("pipeline exploded")
		}
		return okResult(job), nil
	}))

	failed := q.Enqueue(EnqueueRequest{ModuleID: 1, Title: "Fails"})
	panicked := q.Enqueue(EnqueueRequest{ModuleID: 2, Title: "Panics"})
	fine := q.Enqueue(EnqueueRequest{ModuleID: 3, Title: "Works"})
	q.Start()
	defer q.Shutdown()

	assert.ErrorIs(t, await(t, failed).Err, boom)
	out := await(t, panicked)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "pipeline exploded")
	assert.NoError(t, await(t, fine).Err)
	assert.Equal(t, 0, q.Status().InFlightCount)
}

func TestQueue_ShutdownRejectsPendingAndRecoversOnRestart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "data", "queue.json")
	never := ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		t.Error("no job should run before shutdown")
		return nil, nil
	})

	q1, err := New(Config{TickInterval: time.Hour, SnapshotPath: path}, never, logger.NewNop())
	require.NoError(t, err)
	q1.Start()

	a := q1.Enqueue(EnqueueRequest{ModuleID: 7, Title: "Photosynthesis", Content: "Plants...", SubjectID: 3, InstructionOverride: "Keep it short", SubjectName: "Biology"})
	b := q1.Enqueue(EnqueueRequest{ModuleID: 8, Title: "Respiration", Content: "Cells..."})
	before := q1.Status().Items

	q1.Shutdown()
	q1.Shutdown()

	assert.ErrorIs(t, await(t, a).Err, ErrQueueShutdown)
	assert.ErrorIs(t, await(t, b).Err, ErrQueueShutdown)
	assert.Equal(t, 0, q1.Status().PendingCount)
	assert.ErrorIs(t, await(t, q1.Enqueue(EnqueueRequest{ModuleID: 9, Title: "Late"})).Err, ErrQueueShutdown)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "Keep it short", saved[0]["instructionOverride"])
	assert.NotContains(t, saved[0], "SubjectName")
	assert.NotContains(t, saved[0], "subjectName")

	var ran []string
	var mu sync.Mutex
	q2, err := New(Config{TickInterval: 5 * time.Millisecond, SnapshotPath: path}, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		mu.Lock()
		ran = append(ran, job.Title)
		mu.Unlock()
		return okResult(job), nil
	}), logger.NewNop())
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "snapshot is consumed on load")

	status := q2.Status()
	require.Equal(t, 2, status.PendingCount)
	assert.Equal(t, before[0].ID, status.Items[0].ID)
	assert.Equal(t, before[1].ID, status.Items[1].ID)
	assert.True(t, before[0].EnqueuedAt.Equal(status.Items[0].EnqueuedAt))

	fresh := q2.Enqueue(EnqueueRequest{ModuleID: 10, Title: "Fresh"})
	q2.Start()
	require.NoError(t, await(t, fresh).Err)

	mu.Lock()
	assert.Equal(t, []string{"Photosynthesis", "Respiration", "Fresh"}, ran)
	mu.Unlock()

	q2.Shutdown()
	require.NoError(t, q2.Wait(context.Background()))

	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "an empty queue leaves no snapshot")
}

func TestQueue_ShutdownLeavesRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	started := make(chan struct{})
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		close(started)
		<-release
		return okResult(job), nil
	}))

	running := q.Enqueue(EnqueueRequest{ModuleID: 1, Title: "Running"})
	waiting := q.Enqueue(EnqueueRequest{ModuleID: 2, Title: "Waiting"})
	q.tick()
	<-started

	q.Shutdown()
	assert.ErrorIs(t, await(t, waiting).Err, ErrQueueShutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Wait(context.Background()))
	assert.NoError(t, await(t, running).Err)
}

func TestQueue_CorruptSnapshotIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	q, err := New(Config{SnapshotPath: path}, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		return okResult(job), nil
	}), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, q.Status().PendingCount)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestQueue_JobIDsAreUnique(t *testing.T) {
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		return okResult(job), nil
	}))
	fixed := time.UnixMilli(1700000000000)
	q.now = func() time.Time { return fixed }

	id1, _ := q.EnqueueJob(EnqueueRequest{ModuleID: 5, Title: "A"})
	id2, _ := q.EnqueueJob(EnqueueRequest{ModuleID: 5, Title: "A"})
	id3, _ := q.EnqueueJob(EnqueueRequest{ModuleID: 5, Title: "A"})

	assert.Equal(t, "module-5-1700000000000", id1)
	assert.Equal(t, "module-5-1700000000000-1", id2)
	assert.Equal(t, "module-5-1700000000000-2", id3)
}

func TestQueue_RejectsIncompleteRequests(t *testing.T) {
	q, _ := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		return okResult(job), nil
	}))

	id, done := q.EnqueueJob(EnqueueRequest{Title: "No module"})
	assert.Empty(t, id)
	assert.ErrorIs(t, await(t, done).Err, ErrInvalidJob)

	id, done = q.EnqueueJob(EnqueueRequest{ModuleID: 3})
	assert.Empty(t, id)
	assert.ErrorIs(t, await(t, done).Err, ErrInvalidJob)

	assert.Equal(t, 0, q.Status().PendingCount)
}

func TestQueue_StatusSoftLimit(t *testing.T) {
	q, err := New(Config{SnapshotPath: filepath.Join(t.TempDir(), "q.json"), SoftLimit: 2}, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		return okResult(job), nil
	}), logger.NewNop())
	require.NoError(t, err)

	q.Enqueue(EnqueueRequest{ModuleID: 1, Title: "A"})
	assert.False(t, q.Status().AtSoftLimit())

	q.Enqueue(EnqueueRequest{ModuleID: 2, Title: "B"})
	q.Enqueue(EnqueueRequest{ModuleID: 3, Title: "C"})
	status := q.Status()
	assert.True(t, status.AtSoftLimit())
	assert.Equal(t, 3, status.PendingCount, "the soft limit never refuses work")
	assert.Equal(t, ConcurrencyLimit, status.ConcurrencyLimit)
}

func TestNew_RequiresProcessor(t *testing.T) {
	_, err := New(Config{}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestQueue_PersistSnapshotKeepsQueueRunning(t *testing.T) {
	q, path := testQueue(t, ProcessorFunc(func(ctx context.Context, job Job) (*Result, error) {
		return okResult(job), nil
	}))

	done := q.Enqueue(EnqueueRequest{ModuleID: 4, Title: "Pollination"})
	require.NoError(t, q.PersistSnapshot())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []Job
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "Pollination", saved[0].Title)
	assert.Equal(t, 1, q.Status().PendingCount)

	q.tick()
	require.NoError(t, await(t, done).Err)
	require.NoError(t, q.Wait(context.Background()))
}
