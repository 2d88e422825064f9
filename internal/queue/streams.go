package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartats/ats-backend/internal/domain"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
}

// StreamsQueue implements Producer+Consumer backed by Redis Streams. The
// consumer group gives single delivery-in-flight per message; handler
// failures are requeued up to MaxAttempts and then parked on the DLQ.
type StreamsQueue struct {
	client      *redis.Client
	stream      string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "ats_parse_jobs"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "ats_parse_jobs_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "ats_parse_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		stream:      cfg.Stream,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.ParseMessage) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: streamValues(message),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) EnqueueBatch(ctx context.Context, messages []domain.ParseMessage) error {
	if len(messages) == 0 {
		return nil
	}

	pipeline := q.client.Pipeline()
	for _, message := range messages {
		pipeline.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: streamValues(message),
		})
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue batch to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.ParseMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				message, parseErr := parseStreamMessage(item)
				if parseErr != nil {
					_ = q.sendToDLQ(ctx, domain.ParseMessage{}, item, parseErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				handleErr := handler(ctx, message)
				if handleErr == nil {
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				message.Attempt++
				if message.Attempt >= q.maxAttempts {
					_ = q.sendToDLQ(ctx, message, item, handleErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
					_ = q.sendToDLQ(ctx, message, item, fmt.Sprintf("requeue failed: %v", requeueErr))
				}
				_ = q.ackAndDelete(ctx, item.ID)
			}
		}
	}
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *StreamsQueue) sendToDLQ(
	ctx context.Context,
	message domain.ParseMessage,
	item redis.XMessage,
	errorMessage string,
) error {
	values := streamValues(message)
	values["stream_id"] = item.ID
	values["error"] = errorMessage
	values["moved_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func streamValues(message domain.ParseMessage) map[string]any {
	return map[string]any{
		"task_id":      message.TaskID,
		"resume_id":    message.ResumeID,
		"reference":    message.Reference,
		"file_name":    message.FileName,
		"owner_id":     message.OwnerID,
		"attempt":      message.Attempt,
		"requested_at": message.RequestedAt.Format(time.RFC3339Nano),
	}
}

func parseStreamMessage(item redis.XMessage) (domain.ParseMessage, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}

	taskID, err := getString("task_id")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	resumeID, err := getString("resume_id")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	reference, err := getString("reference")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	fileName, err := getString("file_name")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	ownerID, err := getString("owner_id")
	if err != nil {
		return domain.ParseMessage{}, err
	}

	attemptString, err := getString("attempt")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	attempt, err := strconv.Atoi(attemptString)
	if err != nil {
		return domain.ParseMessage{}, fmt.Errorf("invalid attempt: %w", err)
	}

	requestedAtString, err := getString("requested_at")
	if err != nil {
		return domain.ParseMessage{}, err
	}
	requestedAt, err := time.Parse(time.RFC3339Nano, requestedAtString)
	if err != nil {
		return domain.ParseMessage{}, fmt.Errorf("invalid requested_at: %w", err)
	}

	return domain.ParseMessage{
		TaskID:      taskID,
		ResumeID:    resumeID,
		Reference:   reference,
		FileName:    fileName,
		OwnerID:     ownerID,
		Attempt:     attempt,
		RequestedAt: requestedAt,
	}, nil
}
