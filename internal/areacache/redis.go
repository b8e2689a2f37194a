// 包 areacache：区域层级的 Redis 二级缓存，跨进程共享已拉取的区域目录
package areacache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mealody/internal/area"
	"mealody/internal/logger"
)

const (
	KeyPrefix  = "area:"
	DefaultTTL = 24 * time.Hour
)

// RedisStore：实现 gourmet.AreaStore；client 为空时所有读取未命中、写入无操作
type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func New(rc *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rc: rc, ttl: ttl, log: logger.L()}
}

// Key：area:<tier>:<parent>，顶层（都道府県全表）parent 为空
func Key(tier area.Kind, parent string) string {
	return KeyPrefix + tier.String() + ":" + parent
}

// node：区域链上的一级
type node struct {
	Kind area.Kind `json:"k"`
	Code string    `json:"c"`
	Name string    `json:"n"`
}

// record：扁平化的区域，Chain 自根到直接父级
type record struct {
	node
	Chain []node `json:"p,omitempty"`
}

func flatten(a area.Area) record {
	r := record{node: node{a.Kind, a.Code, a.Name}}
	anc := a.Ancestors()
	for _, p := range anc[:len(anc)-1] {
		r.Chain = append(r.Chain, node{p.Kind, p.Code, p.Name})
	}
	return r
}

func (r record) area() area.Area {
	var parent *area.Area
	for _, n := range r.Chain {
		cur := area.Area{Kind: n.Kind, Code: n.Code, Name: n.Name, Parent: parent}
		parent = &cur
	}
	return area.Area{Kind: r.Kind, Code: r.Code, Name: r.Name, Parent: parent}
}

// 文档注释：读取某层级缓存
// 约束：键不存在、Redis 不可用或内容无法解析都视为未命中；空列表不写入，因此读到的列表非空。
func (s *RedisStore) LoadTier(ctx context.Context, tier area.Kind, parent string) ([]area.Area, bool) {
	if s == nil || s.rc == nil {
		return nil, false
	}
	key := Key(tier, parent)
	raw, err := s.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("areacache_get_error", "key", key, "err", err)
		}
		return nil, false
	}
	var recs []record
	if err := json.Unmarshal(raw, &recs); err != nil || len(recs) == 0 {
		s.log.Warn("areacache_decode_error", "key", key, "err", err)
		return nil, false
	}
	out := make([]area.Area, len(recs))
	for i, r := range recs {
		out[i] = r.area()
	}
	s.log.Debug("areacache_hit", "key", key, "count", len(out))
	return out, true
}

// SaveTier：写入失败只记录日志
func (s *RedisStore) SaveTier(ctx context.Context, tier area.Kind, parent string, list []area.Area) {
	if s == nil || s.rc == nil || len(list) == 0 {
		return
	}
	recs := make([]record, len(list))
	for i, a := range list {
		recs[i] = flatten(a)
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return
	}
	key := Key(tier, parent)
	if err := s.rc.Set(ctx, key, b, s.ttl).Err(); err != nil {
		s.log.Warn("areacache_set_error", "key", key, "err", err)
	}
}

// Clear：删除全部 area: 前缀的键
func (s *RedisStore) Clear(ctx context.Context) error {
	if s == nil || s.rc == nil {
		return nil
	}
	iter := s.rc.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	n, err := s.rc.Del(ctx, keys...).Result()
	if err != nil {
		return err
	}
	s.log.Debug("areacache_clear", "deleted", n)
	return nil
}
