package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/trekker/logger"
)

const timeFormat = "2006-01-02 15:04:05"

// TokenManager resolves the bot account and API token used for a course's
// repositories. Production installs keep one redis hash per course; small
// installs can fall back to a single credential pair from the config file.
// Tokens never appear in logs.
type TokenManager struct {
	redis           *redis.Client
	keyTemplate     string
	fallbackAccount string
	fallbackToken   string
}

func NewTokenManager(config *Config) (*TokenManager, error) {
	tm := &TokenManager{
		keyTemplate:     config.Tokens.KeyTemplate,
		fallbackAccount: config.Github.Account,
		fallbackToken:   config.Github.Token,
	}

	if config.Tokens.RedisURL == "" {
		if tm.fallbackToken == "" {
			return nil, fmt.Errorf("neither tokens.redis_url nor github.token configured")
		}
		logger.Debug.Printf("Token manager using config credentials, redis disabled")
		return tm, nil
	}

	opt, err := redis.ParseURL(config.Tokens.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	tm.redis = client
	return tm, nil
}

// CourseCredentials returns the (account, token) pair for a course, updating
// the per-course fetch stats on the way.
func (tm *TokenManager) CourseCredentials(ctx context.Context, course string) (string, string, error) {
	if tm.redis == nil {
		return tm.fallbackAccount, tm.fallbackToken, nil
	}

	key := strings.NewReplacer("{course}", course).Replace(tm.keyTemplate)

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch course credentials: %w", err)
	}
	if len(values) == 0 || values["token"] == "" {
		if tm.fallbackToken != "" {
			logger.Debug.Printf("No credentials for course %s in redis, using config fallback", course)
			return tm.fallbackAccount, tm.fallbackToken, nil
		}
		return "", "", fmt.Errorf("no credentials found for course %s", course)
	}

	pipe := tm.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "fetch_count", 1)
	pipe.HSet(ctx, key, "last_fetch_dttm_utc", time.Now().UTC().Format(timeFormat))
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Debug.Printf("Failed to update fetch stats for course %s: %v", course, err)
	}

	return values["account"], values["token"], nil
}

func (tm *TokenManager) Close() error {
	if tm.redis != nil {
		return tm.redis.Close()
	}
	return nil
}
