// 包 session：单个检索上下文的分页状态机（检索、追加、选择、重置）
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mealody/internal/gourmet"
	"mealody/internal/logger"
	"mealody/internal/metrics"
	"mealody/internal/query"
	"mealody/internal/shop"
)

var (
	// ErrBusy：同一会话已有检索在进行中
	ErrBusy = errors.New("session busy")
	// ErrClosed：会话已关闭
	ErrClosed = errors.New("session closed")
	// ErrReset：进行中的操作被 Reset 取消
	ErrReset = errors.New("session reset")
)

// Searcher：会话依赖的检索能力，由 *gourmet.Client 实现
type Searcher interface {
	Search(ctx context.Context, q query.SearchQuery, doCache bool) (shop.Results, error)
	ShopByID(ctx context.Context, id string, qt shop.QueryType, doCache bool) (*shop.Shop, error)
	AddToHistory(s shop.Shop)
}

// 文档注释：检索会话
// 背景：一个会话对应一个检索界面上下文，累积分页结果并维护所选店铺。
// 约束：同一时刻只允许一个 Search/SearchMore，重叠调用返回 ErrBusy；
// Reset 取消进行中的请求，被取消的请求完成后不再修改状态；Close 等待后台的选择任务退出。
type Session struct {
	src     Searcher
	log     *slog.Logger
	doCache bool

	mu        sync.Mutex
	state     State
	lastQuery *query.SearchQuery
	lastResp  *shop.Results
	results   []shop.Shop
	selected  *shop.Shop
	busy      bool
	gen       uint64
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	listeners []func(Snapshot)

	wg sync.WaitGroup
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// WithCache：检索结果是否写入店铺缓存（默认不写）
func WithCache(on bool) Option { return func(s *Session) { s.doCache = on } }

func New(src Searcher, opts ...Option) *Session {
	s := &Session{src: src, state: Initial}
	for _, fn := range opts {
		fn(s)
	}
	if s.log == nil {
		s.log = logger.L()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// opContext：调用方 ctx 与会话 ctx 任一结束即取消
func opContext(parent, session context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(session, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// 文档注释：发起新检索
// 约束：状态先置 Loading 并记录条件；成功时替换（不合并）结果列表并转为 Empty/Success；失败转为 Error 并返回原错误。
func (s *Session) Search(ctx context.Context, q query.SearchQuery) ([]shop.Shop, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		metrics.SessionOpsTotal.WithLabelValues("search", "busy").Inc()
		return nil, ErrBusy
	}
	s.busy = true
	s.state = Loading
	qc := q
	s.lastQuery = &qc
	gen, sctx := s.gen, s.ctx
	s.mu.Unlock()
	s.notify()

	octx, done := opContext(ctx, sctx)
	res, err := s.src.Search(octx, q, s.doCache)
	done()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, ErrReset
	}
	s.busy = false
	if err != nil {
		s.state = Error
		s.mu.Unlock()
		s.log.Warn("session_search_error", "err", err)
		metrics.SessionOpsTotal.WithLabelValues("search", "error").Inc()
		s.notify()
		return nil, err
	}
	s.lastResp = &res
	s.results = slices.Clone(res.Shops)
	if len(s.results) == 0 {
		s.state = Empty
	} else {
		s.state = Success
	}
	out := slices.Clone(s.results)
	s.mu.Unlock()
	s.log.Debug("session_search", "available", res.Available, "returned", res.Returned)
	metrics.SessionOpsTotal.WithLabelValues("search", "ok").Inc()
	s.notify()
	return out, nil
}

// 文档注释：追加下一页
// 约束：无上次检索返回 ErrInvalidState 且不改状态；已到末页时原样返回当前列表；
// 成功时以新页为先合并（MergeShopList(新页, 已有)），更新上次条件与响应，状态不变；失败时状态不变。
func (s *Session) SearchMore(ctx context.Context) ([]shop.Shop, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		metrics.SessionOpsTotal.WithLabelValues("more", "busy").Inc()
		return nil, ErrBusy
	}
	if s.lastQuery == nil || s.lastResp == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no previous search", gourmet.ErrInvalidState)
	}
	next, ok := s.lastQuery.NextPage(*s.lastResp)
	if !ok {
		out := slices.Clone(s.results)
		s.mu.Unlock()
		return out, nil
	}
	s.busy = true
	gen, sctx := s.gen, s.ctx
	s.mu.Unlock()

	octx, done := opContext(ctx, sctx)
	res, err := s.src.Search(octx, next, s.doCache)
	done()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, ErrReset
	}
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("session_more_error", "err", err)
		metrics.SessionOpsTotal.WithLabelValues("more", "error").Inc()
		return nil, err
	}
	s.lastQuery = &next
	s.lastResp = &res
	s.results = shop.MergeShopList(res.Shops, s.results)
	out := slices.Clone(s.results)
	s.mu.Unlock()
	s.log.Debug("session_more", "start", res.Start, "returned", res.Returned, "accumulated", len(out))
	metrics.SessionOpsTotal.WithLabelValues("more", "ok").Inc()
	s.notify()
	return out, nil
}

// 文档注释：选择店铺并在后台补全详情
// 约束：成功取到详情时选中详情记录，否则（失败或无结果）选中传入记录；两种情况都写入访问历史。
// 返回的通道恰好送出一次最终选中的店铺后关闭；期间若会话被 Reset 则不修改选中状态。
func (s *Session) SelectShop(ctx context.Context, sh shop.Shop) <-chan *shop.Shop {
	ch := make(chan *shop.Shop, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ch <- &sh
		close(ch)
		return ch
	}
	gen, sctx := s.gen, s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(ch)
		octx, done := opContext(context.WithoutCancel(ctx), sctx)
		defer done()

		selected := sh
		got, err := s.src.ShopByID(octx, sh.ID, shop.Detail, true)
		switch {
		case err != nil:
			s.log.Debug("session_select_fallback", "shop_id", sh.ID, "err", err)
			metrics.SessionOpsTotal.WithLabelValues("select", "fallback").Inc()
		case got != nil:
			selected = *got
			metrics.SessionOpsTotal.WithLabelValues("select", "ok").Inc()
		default:
			metrics.SessionOpsTotal.WithLabelValues("select", "fallback").Inc()
		}

		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.selected = &selected
		}
		s.mu.Unlock()
		if current {
			s.src.AddToHistory(selected)
			s.notify()
		}
		ch <- &selected
	}()
	return ch
}

// SelectShopSync：阻塞直到选择完成；ctx 结束时返回传入记录
func (s *Session) SelectShopSync(ctx context.Context, sh shop.Shop) shop.Shop {
	select {
	case v, ok := <-s.SelectShop(ctx, sh):
		if ok && v != nil {
			return *v
		}
	case <-ctx.Done():
	}
	return sh
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.notify()
}

// 文档注释：重置为 Initial
// 约束：取消进行中的请求并清空条件、响应、结果与选中店铺；之后的新请求使用新的会话 ctx。
func (s *Session) Reset() {
	s.mu.Lock()
	s.cancel()
	s.gen++
	if !s.closed {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.busy = false
	s.state = Initial
	s.lastQuery = nil
	s.lastResp = nil
	s.results = nil
	s.selected = nil
	s.mu.Unlock()
	s.notify()
}

// Close：取消全部进行中的工作并等待后台任务退出；之后的操作返回 ErrClosed
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// SetError / SetEmpty：供外部（如定位失败）直接报告状态
func (s *Session) SetError() { s.setState(Error) }
func (s *Session) SetEmpty() { s.setState(Empty) }

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify()
}

// OnChange：注册状态变化回调；回调在锁外、于触发变化的 goroutine 中同步执行
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	ls := slices.Clone(s.listeners)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	for _, fn := range ls {
		fn(snap)
	}
}
