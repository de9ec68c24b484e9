package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"shopcheckout/internal/domain/model"
	"shopcheckout/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 15 * time.Minute
	//読み込み1回より十分長ければよい
	generationTTL = 24 * time.Hour
)

// 世代が読み込み前と同じときだけ書く
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if (current or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// カートの読み取りキャッシュ（正はDB）。キーは cart:<owner>
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: defaultTTL,
	}
}

func (r *RedisCartCache) Get(ctx context.Context, owner model.OwnerKey) (model.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Cart{}, usecase.ErrCacheMiss
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return model.Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	//JSONに出さない列はキーから戻す
	cart.UserID, cart.GuestToken = owner.Columns()
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	return cart, nil
}

func (r *RedisCartCache) Generation(ctx context.Context, owner model.OwnerKey) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Set はgenerationがDeleteで進んでいたら何もしない
func (r *RedisCartCache) Set(ctx context.Context, cart model.Cart, generation int64) error {
	owner := cart.Owner()
	if !owner.Valid() {
		return errors.New("cart has no owner")
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	//同時に切れないよう少しずらす
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	keys := []string{cacheKey(owner), generationKey(owner)}
	if err := setIfGeneration.Run(ctx, r.client, keys, strconv.FormatInt(generation, 10), data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartCache) Delete(ctx context.Context, owners ...model.OwnerKey) error {
	if len(owners) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range owners {
			pipe.Incr(ctx, generationKey(o))
			pipe.Expire(ctx, generationKey(o), generationTTL)
			pipe.Del(ctx, cacheKey(o))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner model.OwnerKey) string {
	return fmt.Sprintf("cart:%s", owner.String())
}

func generationKey(owner model.OwnerKey) string {
	return fmt.Sprintf("cartgen:%s", owner.String())
}
