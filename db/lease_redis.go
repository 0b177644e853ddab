package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// releaseScript delete the lease key only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaseParams redis lease provider parameters
type RedisLeaseParams struct {
	// KeyPrefix prefix of the lease keys
	KeyPrefix string
	// TTL lease expiry, bounds how long a crashed holder blocks a secret
	TTL time.Duration
	// RetryInterval wait between acquisition attempts
	RetryInterval time.Duration
}

// redisLeaseProvider implements LeaseProvider across processes sharing one redis
type redisLeaseProvider struct {
	goutils.Component
	client *redis.Client
	params RedisLeaseParams
}

/*
NewRedisLeaseProvider define a lease provider backed by redis

Use this when several server instances share a database without row level locking.

	@param ctx context.Context - execution context
	@param client *redis.Client - redis client
	@param params RedisLeaseParams - provider parameters
	@returns provider
*/
func NewRedisLeaseProvider(
	ctx context.Context, client *redis.Client, params RedisLeaseParams,
) (LeaseProvider, error) {
	if params.KeyPrefix == "" {
		params.KeyPrefix = "secretshare:lease:"
	}
	if params.TTL <= 0 {
		params.TTL = time.Second * 30
	}
	if params.RetryInterval <= 0 {
		params.RetryInterval = time.Millisecond * 25
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis not reachable [%w]", err)
	}

	return &redisLeaseProvider{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "db", "component": "redis-lease"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		client: client,
		params: params,
	}, nil
}

func (p *redisLeaseProvider) Acquire(ctx context.Context, secretID string) (Lease, error) {
	key := p.params.KeyPrefix + secretID
	token := ulid.Make().String()

	for {
		acquired, err := p.client.SetNX(ctx, key, token, p.params.TTL).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf(
					"lease on secret %s not acquired [%w] [%w]", secretID, ErrStoreContention, err,
				)
			}
			return nil, fmt.Errorf("lease on secret %s request failed [%w]", secretID, err)
		}
		if acquired {
			return &redisLease{provider: p, key: key, token: token}, nil
		}

		select {
		case <-time.After(p.params.RetryInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf(
				"lease on secret %s not acquired [%w] [%w]", secretID, ErrStoreContention, ctx.Err(),
			)
		}
	}
}

type redisLease struct {
	provider *redisLeaseProvider
	key      string
	token    string
	released bool
}

func (l *redisLease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true
	if err := releaseScript.Run(
		ctx, l.provider.client, []string{l.key}, l.token,
	).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease %s [%w]", l.key, err)
	}
	return nil
}
