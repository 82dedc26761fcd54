package adapter

import (
	"context"
	"fmt"
	"time"

	"buyone/internal/pkg/redis"
	"buyone/internal/service/inventory/domain"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const (
	decreaseScriptName   = "stock_decrease"
	increaseScriptName   = "stock_increase"
	creditOnceScriptName = "stock_credit_once"

	// 归还标记的保留时间 = creditMarkerLeaseFactor × 租约
	creditMarkerLeaseFactor = 7
)

// StockRedisAdapter 是 StockLedger 的 Redis 实现，每个修改都是一次 Lua 脚本调用。
// 同一商品的 key 使用相同的 hash tag，集群模式下落在同一个 slot。
type StockRedisAdapter struct {
	redisClient *redis.Client
	markerTTL   time.Duration
}

// NewStockRedisAdapter 创建适配器并加载所需的 Lua 脚本。
func NewStockRedisAdapter(redisClient *redis.Client, lease time.Duration) (*StockRedisAdapter, error) {
	scripts := map[string]string{
		decreaseScriptName:   decreaseScript,
		increaseScriptName:   increaseScript,
		creditOnceScriptName: creditOnceScript,
	}
	for name, content := range scripts {
		if err := redisClient.LoadScriptFromContent(name, content); err != nil {
			return nil, errors.Wrap(err, "failed to load stock script")
		}
	}
	return &StockRedisAdapter{
		redisClient: redisClient,
		markerTTL:   creditMarkerLeaseFactor * lease,
	}, nil
}

var _ domain.StockLedger = (*StockRedisAdapter)(nil)

func stockKey(productID string) string {
	return fmt.Sprintf("stock:available:{%s}", productID)
}

func creditKey(productID, reservationID string) string {
	return fmt.Sprintf("stock:credit:{%s}:%s", productID, reservationID)
}

func (a *StockRedisAdapter) Get(ctx context.Context, productID string) (int64, error) {
	n, err := a.redisClient.GetClient().Get(ctx, stockKey(productID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "redis get stock")
	}
	return n, nil
}

func (a *StockRedisAdapter) Decrease(ctx context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	code, value, err := a.runPair(ctx, decreaseScriptName, []string{stockKey(productID)}, amount)
	if err != nil {
		return 0, err
	}
	switch code {
	case 1:
		return value, nil
	case 0:
		return value, domain.ErrInsufficientStock
	case -1:
		return 0, domain.ErrProductNotFound
	default:
		return 0, errors.Errorf("unknown result code from decrease script: %d", code)
	}
}

func (a *StockRedisAdapter) Increase(ctx context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	code, value, err := a.runPair(ctx, increaseScriptName, []string{stockKey(productID)}, amount)
	if err != nil {
		return 0, err
	}
	if code == -1 {
		return 0, domain.ErrProductNotFound
	}
	return value, nil
}

func (a *StockRedisAdapter) CreditOnce(ctx context.Context, productID string, amount int64, reservationID string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	keys := []string{stockKey(productID), creditKey(productID, reservationID)}
	result, err := a.redisClient.RunScript(ctx, creditOnceScriptName, keys, amount, a.markerTTL.Milliseconds())
	if err != nil {
		return false, errors.Wrap(err, "run credit script")
	}
	code, ok := result.(int64)
	if !ok {
		return false, errors.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	case -1:
		return false, domain.ErrProductNotFound
	default:
		return false, errors.Errorf("unknown result code from credit script: %d", code)
	}
}

func (a *StockRedisAdapter) Seed(ctx context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	ok, err := a.redisClient.GetClient().SetNX(ctx, stockKey(productID), quantity, 0).Result()
	if err != nil {
		return errors.Wrap(err, "redis seed stock")
	}
	if !ok {
		return domain.ErrProductExists
	}
	return nil
}

func (a *StockRedisAdapter) Set(ctx context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	ok, err := a.redisClient.GetClient().SetXX(ctx, stockKey(productID), quantity, 0).Result()
	if err != nil {
		return errors.Wrap(err, "redis set stock")
	}
	if !ok {
		return domain.ErrProductNotFound
	}
	return nil
}

// runPair 执行返回 {code, value} 的脚本。
func (a *StockRedisAdapter) runPair(ctx context.Context, script string, keys []string, args ...interface{}) (int64, int64, error) {
	result, err := a.redisClient.RunScript(ctx, script, keys, args...)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "run %s script", script)
	}
	pair, ok := result.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, 0, errors.Errorf("unexpected result from %s script: %v", script, result)
	}
	code, ok1 := pair[0].(int64)
	value, ok2 := pair[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, errors.Errorf("unexpected result types from %s script: %T, %T", script, pair[0], pair[1])
	}
	return code, value, nil
}

// KEYS[1]: 库存 key, 例如 stock:available:{p-1}
// ARGV[1]: 扣减数量
// 返回 {1, 剩余} 成功, {0, 当前} 库存不足, {-1, 0} 商品不存在
var decreaseScript = `
local stock = redis.call('get', KEYS[1])
if not stock then
    return {-1, 0}
end
stock = tonumber(stock)
local amount = tonumber(ARGV[1])
if stock < amount then
    return {0, stock}
end
return {1, redis.call('decrby', KEYS[1], amount)}
`

var increaseScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return {-1, 0}
end
return {1, redis.call('incrby', KEYS[1], tonumber(ARGV[1]))}
`

// KEYS[1]: 库存 key
// KEYS[2]: 归还标记, 例如 stock:credit:{p-1}:<reservationId>
// ARGV[1]: 归还数量  ARGV[2]: 标记 TTL (ms)
// 返回 1 已归还, 0 之前已归还过, -1 商品不存在
var creditOnceScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end
if not redis.call('set', KEYS[2], '1', 'NX', 'PX', ARGV[2]) then
    return 0
end
redis.call('incrby', KEYS[1], tonumber(ARGV[1]))
return 1
`
