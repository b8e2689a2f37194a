package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"mealody/internal/shop"
)

// ErrBadParam：入站查询串中的数值/布尔参数无法解析
var ErrBadParam = errors.New("bad query parameter")

type flagField struct {
	key string
	ptr **bool
}

func (q *SearchQuery) flags() []flagField {
	return []flagField{
		{"wifi", &q.Wifi}, {"wedding", &q.Wedding}, {"course", &q.Course},
		{"free_drink", &q.FreeDrink}, {"free_food", &q.FreeFood}, {"private_room", &q.PrivateRoom},
		{"horigotatsu", &q.Horigotatsu}, {"tatami", &q.Tatami}, {"cocktail", &q.Cocktail},
		{"shochu", &q.Shochu}, {"sake", &q.Sake}, {"wine", &q.Wine}, {"card", &q.Card},
		{"non_smoking", &q.NonSmoking}, {"charter", &q.Charter}, {"ktai", &q.Ktai},
		{"parking", &q.Parking}, {"barrier_free", &q.BarrierFree}, {"sommelier", &q.Sommelier},
		{"night_view", &q.NightView}, {"open_air", &q.OpenAir}, {"show", &q.Show},
		{"equipment", &q.Equipment}, {"karaoke", &q.Karaoke}, {"band", &q.Band}, {"tv", &q.TV},
		{"lunch", &q.Lunch}, {"midnight", &q.Midnight}, {"midnight_meal", &q.MidnightMeal},
		{"english", &q.English}, {"pet", &q.Pet}, {"child", &q.Child},
	}
}

type listField struct {
	key string
	ptr *[]string
}

func (q *SearchQuery) lists() []listField {
	return []listField{
		{"id", &q.IDs}, {"service_area", &q.ServiceArea}, {"large_area", &q.LargeArea},
		{"middle_area", &q.MiddleArea}, {"small_area", &q.SmallArea},
		{"special", &q.Special}, {"special_or", &q.SpecialOr},
		{"special_category", &q.SpecialCategory}, {"special_category_or", &q.SpecialCategoryOr},
		{"genre", &q.Genre}, {"budget", &q.Budget}, {"credit_card", &q.CreditCard},
	}
}

type stringField struct {
	key string
	ptr *string
}

func (q *SearchQuery) texts() []stringField {
	return []stringField{
		{"keyword", &q.Keyword}, {"large_service_area", &q.LargeServiceArea},
		{"name", &q.Name}, {"name_kana", &q.NameKana}, {"name_any", &q.NameAny},
		{"tel", &q.Tel}, {"address", &q.Address}, {"datum", &q.Datum},
	}
}

type intField struct {
	key string
	ptr **int
}

func (q *SearchQuery) ints() []intField {
	return []intField{
		{"range", &q.Range}, {"party_capacity", &q.PartyCapacity},
		{"order", &q.Order}, {"start", &q.Start}, {"count", &q.Count},
	}
}

// 文档注释：编码为远端检索接口的查询参数
// 约束：布尔转 "1"/"0"；列表以 "," 连接；type 为空时不传；count 缺省 10；format 固定 json。
// key 为空时不写入 key 参数（由传输层补齐）。
func (q SearchQuery) Values(key string) url.Values {
	v := url.Values{}
	if key != "" {
		v.Set("key", key)
	}
	for _, f := range q.texts() {
		if *f.ptr != "" {
			v.Set(f.key, *f.ptr)
		}
	}
	for _, f := range q.lists() {
		if len(*f.ptr) > 0 {
			v.Set(f.key, strings.Join(*f.ptr, ListSeparator))
		}
	}
	if q.Lat != nil {
		v.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
	}
	if q.Lng != nil {
		v.Set("lng", strconv.FormatFloat(*q.Lng, 'f', -1, 64))
	}
	for _, f := range q.ints() {
		if *f.ptr != nil {
			v.Set(f.key, strconv.Itoa(**f.ptr))
		}
	}
	for _, f := range q.flags() {
		if *f.ptr != nil {
			if **f.ptr {
				v.Set(f.key, "1")
			} else {
				v.Set(f.key, "0")
			}
		}
	}
	if p := q.EffectiveType().Param(); p != "" {
		v.Set("type", p)
	}
	if q.Count == nil {
		v.Set("count", strconv.Itoa(DefaultCount))
	}
	v.Set("format", DefaultFormat)
	return v
}

// 文档注释：从入站 HTTP 查询串解析检索条件
// 背景：对外 API 直接沿用远端参数名，列表可用逗号分隔或重复参数。
// 约束：数值/布尔无法解析返回 ErrBadParam；不做锚点校验（由 Validate 负责）。
func FromValues(v url.Values) (SearchQuery, error) {
	var q SearchQuery
	for _, f := range q.texts() {
		*f.ptr = strings.TrimSpace(v.Get(f.key))
	}
	for _, f := range q.lists() {
		*f.ptr = splitList(v[f.key])
	}
	var err error
	if q.Lat, err = parseFloat(v, "lat"); err != nil {
		return SearchQuery{}, err
	}
	if q.Lng, err = parseFloat(v, "lng"); err != nil {
		return SearchQuery{}, err
	}
	for _, f := range q.ints() {
		if *f.ptr, err = parseInt(v, f.key); err != nil {
			return SearchQuery{}, err
		}
	}
	for _, f := range q.flags() {
		if *f.ptr, err = parseBool(v, f.key); err != nil {
			return SearchQuery{}, err
		}
	}
	if s := v.Get("type"); s != "" {
		qt := shop.ParseQueryType(s)
		q.Type = &qt
	}
	return q, nil
}

func splitList(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, p := range strings.Split(r, ListSeparator) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseFloat(v url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s=%q: %w", key, s, ErrBadParam)
	}
	return &f, nil
}

func parseInt(v url.Values, key string) (*int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s=%q: %w", key, s, ErrBadParam)
	}
	return &n, nil
}

func parseBool(v url.Values, key string) (*bool, error) {
	s := strings.TrimSpace(v.Get(key))
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "1", "true":
		b := true
		return &b, nil
	case "0", "false":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("%s=%q: %w", key, s, ErrBadParam)
}
