// 包 query：店铺检索条件及其线上编码
package query

import (
	"errors"
	"fmt"

	"mealody/internal/shop"
)

const (
	MaxIDCount          = 20
	MaxServiceAreaCount = 3
	MaxLargeAreaCount   = 3
	MaxMiddleAreaCount  = 5
	MaxSmallAreaCount   = 5
	MaxBudgetCount      = 2

	MinCount     = 1
	MaxCount     = 100
	DefaultCount = 10

	DefaultFormat = "json"
	ListSeparator = ","
)

var (
	// ErrNoAnchor：未设置任何必需条件（ID/名称/关键字/坐标/区域等）
	ErrNoAnchor = errors.New("query has no anchor field")
	// ErrLimit：列表条数或 count 超出上限
	ErrLimit = errors.New("query limit exceeded")
)

// 文档注释：店铺检索条件
// 背景：远端接口约 45 个可选参数，全部以查询串传递。
// 约束：零值字段不编码；指针字段区分“未设置”与零值；至少一个锚点字段非空才允许发出请求。
type SearchQuery struct {
	IDs     []string `json:"id,omitempty"`
	Keyword string   `json:"keyword,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`

	LargeServiceArea string   `json:"large_service_area,omitempty"`
	ServiceArea      []string `json:"service_area,omitempty"`
	LargeArea        []string `json:"large_area,omitempty"`
	MiddleArea       []string `json:"middle_area,omitempty"`
	SmallArea        []string `json:"small_area,omitempty"`

	Name     string `json:"name,omitempty"`
	NameKana string `json:"name_kana,omitempty"`
	NameAny  string `json:"name_any,omitempty"`
	Tel      string `json:"tel,omitempty"`
	Address  string `json:"address,omitempty"`

	Special           []string `json:"special,omitempty"`
	SpecialOr         []string `json:"special_or,omitempty"`
	SpecialCategory   []string `json:"special_category,omitempty"`
	SpecialCategoryOr []string `json:"special_category_or,omitempty"`

	// Range：1:300m 2:500m 3:1000m 4:2000m 5:3000m
	Range *int   `json:"range,omitempty"`
	Datum string `json:"datum,omitempty"`

	Genre         []string `json:"genre,omitempty"`
	Budget        []string `json:"budget,omitempty"`
	PartyCapacity *int     `json:"party_capacity,omitempty"`

	Wifi         *bool `json:"wifi,omitempty"`
	Wedding      *bool `json:"wedding,omitempty"`
	Course       *bool `json:"course,omitempty"`
	FreeDrink    *bool `json:"free_drink,omitempty"`
	FreeFood     *bool `json:"free_food,omitempty"`
	PrivateRoom  *bool `json:"private_room,omitempty"`
	Horigotatsu  *bool `json:"horigotatsu,omitempty"`
	Tatami       *bool `json:"tatami,omitempty"`
	Cocktail     *bool `json:"cocktail,omitempty"`
	Shochu       *bool `json:"shochu,omitempty"`
	Sake         *bool `json:"sake,omitempty"`
	Wine         *bool `json:"wine,omitempty"`
	Card         *bool `json:"card,omitempty"`
	NonSmoking   *bool `json:"non_smoking,omitempty"`
	Charter      *bool `json:"charter,omitempty"`
	Ktai         *bool `json:"ktai,omitempty"`
	Parking      *bool `json:"parking,omitempty"`
	BarrierFree  *bool `json:"barrier_free,omitempty"`
	Sommelier    *bool `json:"sommelier,omitempty"`
	NightView    *bool `json:"night_view,omitempty"`
	OpenAir      *bool `json:"open_air,omitempty"`
	Show         *bool `json:"show,omitempty"`
	Equipment    *bool `json:"equipment,omitempty"`
	Karaoke      *bool `json:"karaoke,omitempty"`
	Band         *bool `json:"band,omitempty"`
	TV           *bool `json:"tv,omitempty"`
	Lunch        *bool `json:"lunch,omitempty"`
	Midnight     *bool `json:"midnight,omitempty"`
	MidnightMeal *bool `json:"midnight_meal,omitempty"`
	English      *bool `json:"english,omitempty"`
	Pet          *bool `json:"pet,omitempty"`
	Child        *bool `json:"child,omitempty"`

	CreditCard []string `json:"credit_card,omitempty"`

	Type *shop.QueryType `json:"type,omitempty"`
	// Order：1:店名かな順 2:ジャンル順 3:エリア順 4:おすすめ順
	Order *int `json:"order,omitempty"`
	Start *int `json:"start,omitempty"`
	Count *int `json:"count,omitempty"`
}

// IsValid：至少设置了一个锚点字段
func (q SearchQuery) IsValid() bool {
	return len(q.IDs) > 0 ||
		q.Name != "" ||
		q.NameKana != "" ||
		q.NameAny != "" ||
		q.Tel != "" ||
		q.Address != "" ||
		q.Keyword != "" ||
		(q.Lat != nil && q.Lng != nil) ||
		q.LargeServiceArea != "" ||
		len(q.ServiceArea) > 0 ||
		len(q.LargeArea) > 0 ||
		len(q.MiddleArea) > 0 ||
		len(q.SmallArea) > 0
}

// 文档注释：发出请求前的完整校验
// 约束：无锚点返回 ErrNoAnchor；列表超限或 count 越界返回包装了字段名的 ErrLimit。
func (q SearchQuery) Validate() error {
	if !q.IsValid() {
		return ErrNoAnchor
	}
	limits := []struct {
		field string
		n     int
		max   int
	}{
		{"id", len(q.IDs), MaxIDCount},
		{"service_area", len(q.ServiceArea), MaxServiceAreaCount},
		{"large_area", len(q.LargeArea), MaxLargeAreaCount},
		{"middle_area", len(q.MiddleArea), MaxMiddleAreaCount},
		{"small_area", len(q.SmallArea), MaxSmallAreaCount},
		{"budget", len(q.Budget), MaxBudgetCount},
	}
	for _, l := range limits {
		if l.n > l.max {
			return fmt.Errorf("%s: %d > %d: %w", l.field, l.n, l.max, ErrLimit)
		}
	}
	if q.Count != nil && (*q.Count < MinCount || *q.Count > MaxCount) {
		return fmt.Errorf("count: %d not in [%d,%d]: %w", *q.Count, MinCount, MaxCount, ErrLimit)
	}
	return nil
}

// EffectiveType：未指定时按 Detail
func (q SearchQuery) EffectiveType() shop.QueryType {
	if q.Type == nil {
		return shop.Detail
	}
	return *q.Type
}

// 文档注释：基于当前结果页生成下一页条件
// 约束：当前页已到末尾返回 false；否则复制条件，仅 Start 改为 r.Start+r.Returned。
func (q SearchQuery) NextPage(r shop.Results) (SearchQuery, bool) {
	if r.Start+r.Returned-1 >= r.Available {
		return SearchQuery{}, false
	}
	next := q
	start := r.Start + r.Returned
	next.Start = &start
	return next, true
}

// ForIDs：按 ID 列表与查询类型构造条件，count 取 ID 数
func ForIDs(ids []string, qt shop.QueryType) SearchQuery {
	n := len(ids)
	if n < MinCount {
		n = MinCount
	}
	return SearchQuery{IDs: ids, Type: &qt, Count: &n}
}
