// 包 shop：店铺记录模型、完整度描述（QueryType）与分页结果的合并规则
package shop

import "mealody/internal/area"

// 文档注释：店铺记录
// 背景：远端接口按查询类型返回不同字段子集，同一店铺的多次部分获取需要合并。
// 约束：ID 在所有部分记录中稳定；标识/基础字段（ID 至 Photo）总是存在；其余字段为 nil 表示未获取。
// json 标签与 Hotpepper 字段名一致，解码与对外输出共用。
type Shop struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Genre   Genre   `json:"genre"`
	Catch   string  `json:"catch"`
	URLs    URLs    `json:"urls"`
	Photo   Photo   `json:"photo"`

	LogoImage   *string `json:"logo_image,omitempty"`
	NameKana    *string `json:"name_kana,omitempty"`
	StationName *string `json:"station_name,omitempty"`
	KtaiCoupon  *int    `json:"ktai_coupon,omitempty"`

	LargeServiceArea *AreaRef `json:"large_service_area,omitempty"`
	ServiceArea      *AreaRef `json:"service_area,omitempty"`
	LargeArea        *AreaRef `json:"large_area,omitempty"`
	MiddleArea       *AreaRef `json:"middle_area,omitempty"`
	SmallArea        *AreaRef `json:"small_area,omitempty"`

	SubGenre      *Genre  `json:"sub_genre,omitempty"`
	Budget        *Budget `json:"budget,omitempty"`
	BudgetMemo    *string `json:"budget_memo,omitempty"`
	Access        *string `json:"access,omitempty"`
	MobileAccess  *string `json:"mobile_access,omitempty"`
	Capacity      *int    `json:"capacity,omitempty"`
	PartyCapacity *int    `json:"party_capacity,omitempty"`

	Open  *string `json:"open,omitempty"`
	Close *string `json:"close,omitempty"`

	Wifi        *string `json:"wifi,omitempty"`
	Wedding     *string `json:"wedding,omitempty"`
	Course      *string `json:"course,omitempty"`
	FreeDrink   *string `json:"free_drink,omitempty"`
	FreeFood    *string `json:"free_food,omitempty"`
	PrivateRoom *string `json:"private_room,omitempty"`
	Horigotatsu *string `json:"horigotatsu,omitempty"`
	Tatami      *string `json:"tatami,omitempty"`
	Card        *string `json:"card,omitempty"`
	NonSmoking  *string `json:"non_smoking,omitempty"`
	Charter     *string `json:"charter,omitempty"`
	Ktai        *string `json:"ktai,omitempty"`
	Parking     *string `json:"parking,omitempty"`
	BarrierFree *string `json:"barrier_free,omitempty"`
	Sommelier   *string `json:"sommelier,omitempty"`
	NightView   *string `json:"night_view,omitempty"`
	OpenAir     *string `json:"open_air,omitempty"`
	Show        *string `json:"show,omitempty"`
	Equipment   *string `json:"equipment,omitempty"`
	Karaoke     *string `json:"karaoke,omitempty"`
	Band        *string `json:"band,omitempty"`
	TV          *string `json:"tv,omitempty"`
	English     *string `json:"english,omitempty"`
	Pet         *string `json:"pet,omitempty"`
	Child       *string `json:"child,omitempty"`
	Lunch       *string `json:"lunch,omitempty"`
	Midnight    *string `json:"midnight,omitempty"`

	ShopDetailMemo *string `json:"shop_detail_memo,omitempty"`
	OtherMemo      *string `json:"other_memo,omitempty"`

	// 仅在 type 含 special / credit_card 时返回；nil 表示未获取
	Special    []Special    `json:"special,omitempty"`
	CreditCard []CreditCard `json:"credit_card,omitempty"`

	CouponURLs *CouponURLs `json:"coupon_urls,omitempty"`
}

type Genre struct {
	Code  string `json:"code"`
	Catch string `json:"catch,omitempty"`
	Name  string `json:"name"`
}

type Budget struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Average string `json:"average,omitempty"`
}

type URLs struct {
	PC string `json:"pc"`
}

type Photo struct {
	PC     PhotoURLs  `json:"pc"`
	Mobile *PhotoURLs `json:"mobile,omitempty"`
}

type PhotoURLs struct {
	L string `json:"l"`
	M string `json:"m,omitempty"`
	S string `json:"s"`
}

type Special struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Category SpecialCategory `json:"special_category"`
	Title    string          `json:"title"`
}

type SpecialCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreditCard struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CouponURLs struct {
	PC *string `json:"pc,omitempty"`
	SP *string `json:"sp,omitempty"`
}

// AreaRef：店铺记录内嵌的区域引用（仅编码与名称）
type AreaRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// 文档注释：由店铺自带的区域引用构造小区域链
// 约束：四级引用（小/中/大/大服务区）需全部存在，否则返回 false，由调用方改用地址解析。
func (s Shop) AreaChain() (area.Area, bool) {
	if s.SmallArea == nil || s.MiddleArea == nil || s.LargeArea == nil || s.LargeServiceArea == nil {
		return area.Area{}, false
	}
	ss := area.NewService(s.LargeServiceArea.Code, s.LargeServiceArea.Name, nil)
	z := area.NewLarge(s.LargeArea.Code, s.LargeArea.Name, ss)
	y := area.NewMiddle(s.MiddleArea.Code, s.MiddleArea.Name, z)
	return area.NewSmall(s.SmallArea.Code, s.SmallArea.Name, y), true
}

// SmallImageURL：列表缩略图地址，优先移动端小图
func (s Shop) SmallImageURL() string {
	if s.Photo.Mobile != nil && s.Photo.Mobile.S != "" {
		return s.Photo.Mobile.S
	}
	return s.Photo.PC.S
}
