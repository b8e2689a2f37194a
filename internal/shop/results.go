package shop

// 文档注释：一次分页检索的结果页
// 约束：Start 从 1 开始；Returned 为本页条数；Available 为命中总数。
type Results struct {
	APIVersion string `json:"api_version,omitempty"`
	Available  int    `json:"results_available"`
	Returned   int    `json:"results_returned"`
	Start      int    `json:"results_start"`
	Shops      []Shop `json:"shop"`
}

// HasMore：本页末尾之后是否还有结果
func (r Results) HasMore() bool {
	return r.Start+r.Returned-1 < r.Available
}

// 文档注释：合并两页结果
// 约束：Available 取大、Start 取小；店铺按 ID 合并（r 的顺序优先），Returned 为合并后条数。
func (r Results) Merge(o Results) Results {
	shops := MergeShopList(r.Shops, o.Shops)
	return Results{
		APIVersion: r.APIVersion,
		Available:  max(r.Available, o.Available),
		Start:      min(r.Start, o.Start),
		Returned:   len(shops),
		Shops:      shops,
	}
}
