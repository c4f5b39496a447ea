package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed  = errors.New("job already processed")
	ErrLockAcquireFailed = errors.New("failed to acquire processing lock")
)

type IdempotencyConfig struct {
	LockTTL            time.Duration
	ProcessedTTL       time.Duration
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		LockKeyPrefix:      "reindex:lock:",
		ProcessedKeyPrefix: "reindex:done:",
	}
}

// IdempotencyService keeps two markers per job key: a short lock while a
// worker handles it and a long lived marker once it succeeded.
type IdempotencyService struct {
	redis  redis.Adapter
	config IdempotencyConfig
}

func NewIdempotencyService(adapter redis.Adapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{redis: adapter, config: config}
}

type ProcessingContext struct {
	Key          string
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, key string) (*ProcessingContext, error) {
	done, err := s.IsProcessed(ctx, key)
	if err != nil {
		logger.Warn("failed to check processed marker", "key", key, "error", err)
	} else if done {
		return nil, ErrAlreadyProcessed
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+key, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "key", key, "lock_ttl", s.config.LockTTL)
	return &ProcessingContext{Key: key, lockAcquired: true}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.Key, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	return s.ReleaseLock(ctx, pc)
}

// MarkFailure drops the lock so the redelivered job can take it again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	logger.Warn("job processing failed, lock released for retry", "key", pc.Key, "reason", reason)
	return s.ReleaseLock(ctx, pc)
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.Key); err != nil {
		logger.Warn("failed to release lock", "key", pc.Key, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, key string) (bool, error) {
	return s.redis.Exists(ctx, s.config.ProcessedKeyPrefix+key)
}
