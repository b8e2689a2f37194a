package shop

import "strings"

// 文档注释：查询类型（记录完整度描述）
// 背景：接口的 type 参数决定返回字段子集；缓存据此判断已有记录能否满足新请求。
// 约束：非 lite 的信息量包含 lite；Credit/Special 为独立的附加字段集。零值即 Detail。
type QueryType struct {
	Lite    bool `json:"lite"`
	Credit  bool `json:"credit"`
	Special bool `json:"special"`
}

var (
	Detail        = QueryType{}
	Lite          = QueryType{Lite: true}
	Credit        = QueryType{Credit: true}
	SpecialOnly   = QueryType{Special: true}
	LiteCredit    = QueryType{Lite: true, Credit: true}
	LiteSpecial   = QueryType{Lite: true, Special: true}
	CreditSpecial = QueryType{Credit: true, Special: true}
	LiteAll       = QueryType{Lite: true, Credit: true, Special: true}
)

// Contains：q 的字段集是否覆盖 o
func (q QueryType) Contains(o QueryType) bool {
	if !o.Lite && q.Lite {
		return false
	}
	if o.Credit && !q.Credit {
		return false
	}
	if o.Special && !q.Special {
		return false
	}
	return true
}

// Merge：同时满足 q 与 o 所需的最小类型
func (q QueryType) Merge(o QueryType) QueryType {
	return QueryType{
		Lite:    q.Lite && o.Lite,
		Credit:  q.Credit || o.Credit,
		Special: q.Special || o.Special,
	}
}

// Param：接口 type 参数值；Detail 返回空串表示不传
func (q QueryType) Param() string {
	var parts []string
	if q.Lite {
		parts = append(parts, "lite")
	}
	if q.Credit {
		parts = append(parts, "credit_card")
	}
	if q.Special {
		parts = append(parts, "special")
	}
	return strings.Join(parts, "+")
}

// ParseQueryType：Param 的逆操作，未知片段忽略
func ParseQueryType(s string) QueryType {
	var q QueryType
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ' ' || r == ',' }) {
		switch p {
		case "lite":
			q.Lite = true
		case "credit_card":
			q.Credit = true
		case "special":
			q.Special = true
		}
	}
	return q
}

func (q QueryType) String() string {
	if p := q.Param(); p != "" {
		return p
	}
	return "detail"
}
