package hotpepper

import (
	"encoding/json"
	"regexp"
	"strconv"

	"mealody/internal/area"
	"mealody/internal/shop"
)

type apiErrorRecord struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type errorFields struct {
	APIVersion string           `json:"api_version"`
	Error      []apiErrorRecord `json:"error"`
}

func (e errorFields) apiError() error {
	if len(e.Error) == 0 {
		return nil
	}
	return &APIError{Status: 200, Code: e.Error[0].Code, Message: e.Error[0].Message}
}

type gourmetEnvelope struct {
	Results gourmetResults `json:"results"`
}

type gourmetResults struct {
	errorFields
	Available int         `json:"results_available"`
	Returned  int         `json:"results_returned"`
	Start     int         `json:"results_start"`
	Shop      []shop.Shop `json:"shop"`
}

func (r gourmetResults) toResults() *shop.Results {
	shops := r.Shop
	if shops == nil {
		shops = []shop.Shop{}
	}
	return &shop.Results{
		APIVersion: r.APIVersion,
		Available:  r.Available,
		Returned:   r.Returned,
		Start:      r.Start,
		Shops:      shops,
	}
}

type ref struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (r ref) service() area.Area { return area.NewService(r.Code, r.Name, nil) }

type largeAreaRecord struct {
	ref
	ServiceArea      ref `json:"service_area"`
	LargeServiceArea ref `json:"large_service_area"`
}

// 都道府県的父级取大服务区（SS），service_area（SA）不进入链
func (r largeAreaRecord) toArea() area.Area {
	return area.NewLarge(r.Code, r.Name, r.LargeServiceArea.service())
}

type middleAreaRecord struct {
	ref
	LargeArea        ref `json:"large_area"`
	ServiceArea      ref `json:"service_area"`
	LargeServiceArea ref `json:"large_service_area"`
}

func (r middleAreaRecord) toArea() area.Area {
	z := area.NewLarge(r.LargeArea.Code, r.LargeArea.Name, r.LargeServiceArea.service())
	return area.NewMiddle(r.Code, r.Name, z)
}

type smallAreaRecord struct {
	ref
	MiddleArea       ref `json:"middle_area"`
	LargeArea        ref `json:"large_area"`
	ServiceArea      ref `json:"service_area"`
	LargeServiceArea ref `json:"large_service_area"`
}

func (r smallAreaRecord) toArea() area.Area {
	z := area.NewLarge(r.LargeArea.Code, r.LargeArea.Name, r.LargeServiceArea.service())
	y := area.NewMiddle(r.MiddleArea.Code, r.MiddleArea.Name, z)
	return area.NewSmall(r.Code, r.Name, y)
}

// 这些键在响应中可能是数字、数字字符串或说明文字；无法转为整数时视为缺失
var intKeys = map[string]bool{
	"results_available": true,
	"results_returned":  true,
	"results_start":     true,
	"capacity":          true,
	"party_capacity":    true,
	"ktai_coupon":       true,
}

var charRef = regexp.MustCompile(`&#(\d+);`)

// 文档注释：递归规整解码后的 JSON 树
// 约束：空串字段删除（按缺失处理）；字符串中的 &#NNN; 还原为字符；intKeys 中的键转为整数或删除。
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if s, ok := child.(string); ok && s == "" {
				continue
			}
			if intKeys[k] {
				if n, ok := toInt(child); ok {
					out[k] = n
				}
				continue
			}
			out[k] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, child := range t {
			out = append(out, normalize(child))
		}
		return out
	case string:
		return decodeCharRefs(t)
	}
	return v
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	case float64:
		return int(t), true
	}
	return 0, false
}

func decodeCharRefs(s string) string {
	return charRef.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || n <= 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
}
