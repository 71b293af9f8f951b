package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisService is the Redis-backed StateStore. Run state lives in plain keys
// with a TTL; agent updates go to one stream per run so UIs can follow
// progress live.
type RedisService struct {
	client *redis.Client
	logger *logger.Logger
	config config.RedisConfig
}

func NewRedisService(cfg config.RedisConfig, log *logger.Logger) (*RedisService, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.DialTimeout = cfg.DialTimeout

	service := &RedisService{
		client: redis.NewClient(opt),
		logger: log,
		config: cfg,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis service initialized",
		"pool_size", cfg.PoolSize,
		"state_ttl", cfg.StateTTL.String())

	return service, nil
}

func (service *RedisService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := service.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}

func runStateKey(runID string) string {
	return fmt.Sprintf("run:%s:state", runID)
}

func runUpdatesStream(runID string) string {
	return fmt.Sprintf("run:%s:agent_updates", runID)
}

func (service *RedisService) PublishAgentUpdate(ctx context.Context, update *models.AgentUpdate) error {
	streamName := runUpdatesStream(update.RunID)

	updateData := map[string]interface{}{
		"type":       "agent_update",
		"run_id":     update.RunID,
		"request_id": update.RequestID,
		"agent_name": update.AgentName,
		"status":     string(update.Status),
		"message":    update.Message,
		"progress":   fmt.Sprintf("%.2f", update.Progress),
		"timestamp":  update.Timestamp.Format(time.RFC3339),
		"retryable":  update.Retryable,
	}

	if update.Data != nil {
		dataJSON, err := json.Marshal(update.Data)
		if err == nil {
			updateData["data"] = string(dataJSON)
		} else {
			service.logger.WithError(err).Warn("Failed to marshal agent update data")
		}
	}

	if update.Error != "" {
		updateData["error"] = update.Error
	}

	result, err := service.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: updateData,
		MaxLen: 1024,
	}).Result()

	if err != nil {
		service.logger.LogService("redis", "publish_agent_update", 0, map[string]interface{}{
			"stream_name": streamName,
			"agent_name":  update.AgentName,
			"run_id":      update.RunID,
		}, err)
		return models.NewExternalError("REDIS_PUBLISH_FAILED", "failed to publish agent update").WithCause(err)
	}

	service.logger.WithFields(logger.Fields{
		"stream_name": streamName,
		"message_id":  result,
		"agent_name":  update.AgentName,
		"status":      update.Status,
	}).Debug("Agent update published")

	return nil
}

func (service *RedisService) StoreRunState(ctx context.Context, run *models.PipelineRun) error {
	key := runStateKey(run.ID)
	startTime := time.Now()

	stateJSON, err := json.Marshal(run)
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "failed to serialize run state").WithCause(err)
	}

	pipe := service.client.Pipeline()
	pipe.Set(ctx, key, stateJSON, service.config.StateTTL)
	pipe.Expire(ctx, runUpdatesStream(run.ID), service.config.StateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		service.logger.LogService("redis", "store_run_state", time.Since(startTime), map[string]interface{}{
			"run_id": run.ID,
			"key":    key,
		}, err)
		return models.NewExternalError("REDIS_STORE_FAILED", "failed to store run state").WithCause(err)
	}

	service.logger.LogService("redis", "store_run_state", time.Since(startTime), map[string]interface{}{
		"run_id": run.ID,
		"status": string(run.Status),
	}, nil)

	return nil
}

func (service *RedisService) GetRunState(ctx context.Context, runID string) (*models.PipelineRun, error) {
	key := runStateKey(runID)
	startTime := time.Now()

	stateJSON, err := service.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, models.ErrRunNotFound.WithMetadata("run_id", runID)
		}
		service.logger.LogService("redis", "get_run_state", time.Since(startTime), map[string]interface{}{
			"run_id": runID,
			"key":    key,
		}, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "failed to get run state").WithCause(err)
	}

	var run models.PipelineRun
	if err := json.Unmarshal([]byte(stateJSON), &run); err != nil {
		return nil, models.NewInternalError("DESERIALIZATION_FAILED", "failed to deserialize run state").WithCause(err)
	}

	service.logger.LogService("redis", "get_run_state", time.Since(startTime), map[string]interface{}{
		"run_id": runID,
	}, nil)

	return &run, nil
}

func (service *RedisService) GetAgentUpdates(ctx context.Context, runID string, limit int) ([]models.AgentUpdate, error) {
	if limit <= 0 {
		limit = 100
	}

	messages, err := service.client.XRevRangeN(ctx, runUpdatesStream(runID), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, models.NewExternalError("REDIS_READ_FAILED", "failed to read agent updates").WithCause(err)
	}

	updates := make([]models.AgentUpdate, 0, len(messages))
	// XRevRange returns newest first; walk backwards for chronological order.
	for i := len(messages) - 1; i >= 0; i-- {
		updates = append(updates, decodeAgentUpdate(messages[i].Values))
	}
	return updates, nil
}

func decodeAgentUpdate(values map[string]interface{}) models.AgentUpdate {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}

	update := models.AgentUpdate{
		RunID:     str("run_id"),
		RequestID: str("request_id"),
		AgentName: str("agent_name"),
		Status:    models.AgentStatus(str("status")),
		Message:   str("message"),
		Error:     str("error"),
	}

	if progress, err := strconv.ParseFloat(str("progress"), 64); err == nil {
		update.Progress = progress
	}
	if ts, err := time.Parse(time.RFC3339, str("timestamp")); err == nil {
		update.Timestamp = ts
	}
	if retryable, err := strconv.ParseBool(str("retryable")); err == nil {
		update.Retryable = retryable
	}
	if data := str("data"); data != "" {
		parsed := make(map[string]any)
		if err := json.Unmarshal([]byte(data), &parsed); err == nil {
			update.Data = parsed
		}
	}

	return update
}

func (service *RedisService) HealthCheck(ctx context.Context) error {
	if err := service.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}

func (service *RedisService) Close() error {
	service.logger.Info("Closing Redis service")
	if err := service.client.Close(); err != nil {
		return fmt.Errorf("error closing Redis connection: %w", err)
	}
	return nil
}
