package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/session"
)

type sessionEntry struct {
	s    *session.Session
	last time.Time
}

// 文档注释：检索会话登记表
// 背景：每个客户端检索界面对应一个服务端会话，以 uuid 标识；长时间未访问的会话被回收。
// 约束：移除（显式删除、过期、Close）时调用 session.Close，等待其后台任务退出。
type Sessions struct {
	newSession func() *session.Session
	ttl        time.Duration
	now        func() time.Time

	mu sync.Mutex
	m  map[string]*sessionEntry
}

func NewSessions(factory func() *session.Session, ttl time.Duration) *Sessions {
	return &Sessions{newSession: factory, ttl: ttl, now: time.Now, m: map[string]*sessionEntry{}}
}

func (r *Sessions) Create() (string, *session.Session) {
	id := uuid.NewString()
	s := r.newSession()
	r.mu.Lock()
	r.m[id] = &sessionEntry{s: s, last: r.now()}
	n := len(r.m)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	logger.L().Debug("session_create", "id", id)
	return id, s
}

// Get：命中时刷新最近访问时间
func (r *Sessions) Get(id string) (*session.Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok {
		return nil, false
	}
	e.last = r.now()
	return e.s, true
}

func (r *Sessions) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.m[id]
	delete(r.m, id)
	n := len(r.m)
	r.mu.Unlock()
	if !ok {
		return false
	}
	metrics.ActiveSessions.Set(float64(n))
	e.s.Close()
	return true
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Sweep：回收空闲超过 ttl 的会话，返回回收数量
func (r *Sessions) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	var idle []*session.Session
	r.mu.Lock()
	for id, e := range r.m {
		if e.last.Before(cutoff) {
			idle = append(idle, e.s)
			delete(r.m, id)
		}
	}
	n := len(r.m)
	r.mu.Unlock()
	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		logger.L().Debug("session_sweep", "removed", len(idle), "remaining", n)
	}
	return len(idle)
}

// Run：按 interval 周期回收，直到 ctx 结束
func (r *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// Close：关闭全部会话
func (r *Sessions) Close() {
	r.mu.Lock()
	all := r.m
	r.m = map[string]*sessionEntry{}
	r.mu.Unlock()
	for _, e := range all {
		e.s.Close()
	}
	metrics.ActiveSessions.Set(0)
}
