package gourmet

import (
	"sync"

	"mealody/internal/shop"
)

const (
	DefaultHistorySize = 20
	// 批量加入时最多取前 5 条
	historyBatch = 5
)

// 文档注释：最近访问店铺（新的在前，按 ID 去重）
// 约束：重复加入同一店铺会移到首位而不是新增；长度不超过 size。
type History struct {
	mu    sync.Mutex
	size  int
	shops []shop.Shop
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

func (h *History) Add(s shop.Shop) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.add(s)
}

func (h *History) add(s shop.Shop) {
	for i, v := range h.shops {
		if v.ID == s.ID {
			h.shops = append(h.shops[:i], h.shops[i+1:]...)
			break
		}
	}
	h.shops = append([]shop.Shop{s}, h.shops...)
	if len(h.shops) > h.size {
		h.shops = h.shops[:h.size]
	}
}

// AddAll：取前 5 条按调用顺序逐条加入（最后一条位于首位）
func (h *History) AddAll(list []shop.Shop) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range list {
		if i >= historyBatch {
			break
		}
		h.add(s)
	}
}

func (h *History) List() []shop.Shop {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shop.Shop, len(h.shops))
	copy(out, h.shops)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.shops)
}
