package area

import (
	"slices"
	"sync"
)

// 文档注释：区域分层缓存
// 背景：四个层级各自独立缓存，按需由远端目录接口填充；由持有者显式创建并注入，生命周期与进程一致。
// 约束：条目写入后不再原地修改，读取返回副本；Clear 清空全部层级（含大服务区）。
type Taxonomy struct {
	mu      sync.RWMutex
	service []Area
	large   []Area
	middle  map[string][]Area
	small   map[string][]Area
}

func NewTaxonomy() *Taxonomy {
	return &Taxonomy{middle: make(map[string][]Area), small: make(map[string][]Area)}
}

func (t *Taxonomy) ServiceAreas() ([]Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.service == nil {
		return nil, false
	}
	return slices.Clone(t.service), true
}

func (t *Taxonomy) LargeAreas() ([]Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.large == nil {
		return nil, false
	}
	return slices.Clone(t.large), true
}

// SetLarge：写入都道府县层，并由其父链派生大服务区层；返回派生出的大服务区
func (t *Taxonomy) SetLarge(list []Area) []Area {
	services := DistinctParents(list)
	if services == nil {
		services = []Area{}
	}
	large := slices.Clone(list)
	if large == nil {
		large = []Area{}
	}
	t.mu.Lock()
	t.large = large
	t.service = services
	t.mu.Unlock()
	return slices.Clone(services)
}

func (t *Taxonomy) Middle(largeCode string) ([]Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.middle[largeCode]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (t *Taxonomy) SetMiddle(largeCode string, list []Area) {
	v := slices.Clone(list)
	if v == nil {
		v = []Area{}
	}
	t.mu.Lock()
	t.middle[largeCode] = v
	t.mu.Unlock()
}

func (t *Taxonomy) Small(middleCode string) ([]Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.small[middleCode]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (t *Taxonomy) SetSmall(middleCode string, list []Area) {
	v := slices.Clone(list)
	if v == nil {
		v = []Area{}
	}
	t.mu.Lock()
	t.small[middleCode] = v
	t.mu.Unlock()
}

// FindMiddle：在所有已缓存的市区町村层中按编码查找
func (t *Taxonomy) FindMiddle(code string) (Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return find(t.middle, code)
}

func (t *Taxonomy) FindSmall(code string) (Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return find(t.small, code)
}

func find(m map[string][]Area, code string) (Area, bool) {
	for _, list := range m {
		for _, a := range list {
			if a.Code == code {
				return a, true
			}
		}
	}
	return Area{}, false
}

func (t *Taxonomy) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.service = nil
	t.large = nil
	t.middle = make(map[string][]Area)
	t.small = make(map[string][]Area)
}
