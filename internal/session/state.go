package session

import (
	"fmt"
	"slices"

	"mealody/internal/query"
	"mealody/internal/shop"
)

type State int

const (
	Initial State = iota
	Loading
	Success
	Empty
	Error
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Empty:
		return "empty"
	case Error:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot：会话某一时刻的值拷贝，供对外输出
type Snapshot struct {
	State            State              `json:"state"`
	LastQuery        *query.SearchQuery `json:"last_query,omitempty"`
	LastResponse     *PageInfo          `json:"last_response,omitempty"`
	Results          []shop.Shop        `json:"results"`
	Selected         *shop.Shop         `json:"selected,omitempty"`
	StoredShops      int                `json:"stored_shops"`
	AccumulatedCount int                `json:"accumulated_count"`
	AvailableShops   int                `json:"available_shops"`
	HasMore          bool               `json:"has_more"`
}

// PageInfo：最近一页的分页计数
type PageInfo struct {
	APIVersion string `json:"api_version,omitempty"`
	Available  int    `json:"results_available"`
	Returned   int    `json:"results_returned"`
	Start      int    `json:"results_start"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Results() []shop.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

func (s *Session) LastQuery() (query.SearchQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastQuery == nil {
		return query.SearchQuery{}, false
	}
	return *s.lastQuery, true
}

// LastResponse：最近一页（不含店铺列表以外的累积结果）
func (s *Session) LastResponse() (shop.Results, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResp == nil {
		return shop.Results{}, false
	}
	r := *s.lastResp
	r.Shops = slices.Clone(r.Shops)
	return r, true
}

func (s *Session) Selected() *shop.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	v := *s.selected
	return &v
}

// 文档注释：已取得的店铺数
// 约束：按最近一页计算 Returned+Start-1，与累积结果去重后的条数可能不同（见 AccumulatedCount）；无响应时为 0。
func (s *Session) StoredShops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedLocked()
}

func (s *Session) storedLocked() int {
	if s.lastResp == nil {
		return 0
	}
	return s.lastResp.Returned + s.lastResp.Start - 1
}

// AccumulatedCount：累积结果列表的实际条数
func (s *Session) AccumulatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *Session) AvailableShops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResp == nil {
		return 0
	}
	return s.lastResp.Available
}

func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResp != nil && s.lastResp.HasMore()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:            s.state,
		Results:          slices.Clone(s.results),
		StoredShops:      s.storedLocked(),
		AccumulatedCount: len(s.results),
	}
	if snap.Results == nil {
		snap.Results = []shop.Shop{}
	}
	if s.lastQuery != nil {
		q := *s.lastQuery
		snap.LastQuery = &q
	}
	if s.lastResp != nil {
		snap.LastResponse = &PageInfo{
			APIVersion: s.lastResp.APIVersion,
			Available:  s.lastResp.Available,
			Returned:   s.lastResp.Returned,
			Start:      s.lastResp.Start,
		}
		snap.AvailableShops = s.lastResp.Available
		snap.HasMore = s.lastResp.HasMore()
	}
	if s.selected != nil {
		v := *s.selected
		snap.Selected = &v
	}
	return snap
}
