package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	redisAddr, cleanup := setupRedisTest(t)
	t.Cleanup(cleanup)

	logger, _ := test.NewNullLogger()
	queue, err := NewRedisQueue(&Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryDelay:  time.Second,
	}, WithQueueLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	queue := newTestQueue(t)
	assert.NotNil(t, queue)

	_, err := NewRedisQueue(&Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	payload := &IndexBlobPayload{Container: "documents", Name: "report.pdf", Size: 42}
	taskID, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/report.pdf", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskIndexBlob, task.Type)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, "documents/report.pdf", task.Document)

	var decoded IndexBlobPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, *payload, decoded)
}

// TestRedisQueue_GetTasksByDocument 测试按文档查询任务
func TestRedisQueue_GetTasksByDocument(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	id1, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/a.pdf", nil)
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/a.pdf", nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskIndexBlob, "documents/b.pdf", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksByDocument(ctx, "documents/a.pdf")
	require.NoError(t, err)
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{id1, id2}, ids)

	tasks, err = queue.GetTasksByDocument(ctx, "documents/none.pdf")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/a.pdf", nil)
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	result := &IndexBlobResult{RunID: "run-1", Status: "completed", Records: 3, Indexed: 2, Failed: 1}
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	var decoded IndexBlobResult
	require.NoError(t, UnmarshalPayload(task.Result, &decoded))
	assert.Equal(t, *result, decoded)

	err = queue.UpdateTaskStatus(ctx, "missing", StatusFailed, nil, "x")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisWorker_Run 测试单个任务的执行和状态回写
func TestRedisWorker_Run(t *testing.T) {
	queue := newTestQueue(t)
	worker := NewRedisWorker(queue, nil)
	ctx := context.Background()

	okID, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/ok.pdf", &IndexBlobPayload{Name: "ok.pdf"})
	require.NoError(t, err)

	var seen *Task
	ok := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		seen = task
		return &IndexBlobResult{Status: "completed", Indexed: 1}, nil
	})
	require.NoError(t, worker.run(ctx, okID, ok))
	require.NotNil(t, seen)
	assert.Equal(t, "documents/ok.pdf", seen.Document)

	task, err := queue.GetTask(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.JSONEq(t, `{"run_id":"","status":"completed","records":0,"indexed":1,"failed":0}`, string(task.Result))

	failID, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/bad.pdf", nil)
	require.NoError(t, err)
	boom := errors.New("extraction failed")
	fail := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, worker.run(ctx, failID, fail), boom)

	task, err = queue.GetTask(ctx, failID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "extraction failed", task.Error)

	assert.ErrorIs(t, worker.run(ctx, "missing", ok), ErrTaskNotFound)
}

// TestRedisWorker 测试Redis工作者
// 需要本地Redis服务
func TestRedisWorker(t *testing.T) {
	redisAddr := "localhost:6379"

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
	}
	client.Close()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryDelay:  time.Second,
		Queues:      map[string]int{"default": 1},
	}
	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	worker := NewRedisWorker(queue, cfg)
	done := make(chan string, 1)
	worker.RegisterHandler(TaskIndexBlob, HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		done <- task.ID
		return nil, nil
	}))
	require.NoError(t, worker.Start())
	defer worker.Stop()

	taskID, err := queue.Enqueue(ctx, TaskIndexBlob, "documents/worker.pdf", nil)
	require.NoError(t, err)

	select {
	case id := <-done:
		assert.Equal(t, taskID, id)
	case <-time.After(10 * time.Second):
		t.Fatal("task was not processed")
	}
}

func TestNewQueueFactory(t *testing.T) {
	_, err := NewQueue("kafka", DefaultConfig())
	assert.Error(t, err)

	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()
	q, err := NewQueue("redis", &Config{RedisAddr: redisAddr})
	require.NoError(t, err)
	assert.NoError(t, q.Close())
}
