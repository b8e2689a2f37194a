package shop

// 文档注释：合并两条同一店铺的部分记录
// 约束：标识/基础字段一律取 primary；可选字段 primary 非空优先，否则取 secondary。
// 不检查两者 ID 是否一致，由调用方保证。
func MergeShop(primary, secondary Shop) Shop {
	m := primary

	m.LogoImage = or(primary.LogoImage, secondary.LogoImage)
	m.NameKana = or(primary.NameKana, secondary.NameKana)
	m.StationName = or(primary.StationName, secondary.StationName)
	m.KtaiCoupon = or(primary.KtaiCoupon, secondary.KtaiCoupon)

	m.LargeServiceArea = or(primary.LargeServiceArea, secondary.LargeServiceArea)
	m.ServiceArea = or(primary.ServiceArea, secondary.ServiceArea)
	m.LargeArea = or(primary.LargeArea, secondary.LargeArea)
	m.MiddleArea = or(primary.MiddleArea, secondary.MiddleArea)
	m.SmallArea = or(primary.SmallArea, secondary.SmallArea)

	m.SubGenre = or(primary.SubGenre, secondary.SubGenre)
	m.Budget = or(primary.Budget, secondary.Budget)
	m.BudgetMemo = or(primary.BudgetMemo, secondary.BudgetMemo)
	m.Access = or(primary.Access, secondary.Access)
	m.MobileAccess = or(primary.MobileAccess, secondary.MobileAccess)
	m.Capacity = or(primary.Capacity, secondary.Capacity)
	m.PartyCapacity = or(primary.PartyCapacity, secondary.PartyCapacity)

	m.Open = or(primary.Open, secondary.Open)
	m.Close = or(primary.Close, secondary.Close)

	m.Wifi = or(primary.Wifi, secondary.Wifi)
	m.Wedding = or(primary.Wedding, secondary.Wedding)
	m.Course = or(primary.Course, secondary.Course)
	m.FreeDrink = or(primary.FreeDrink, secondary.FreeDrink)
	m.FreeFood = or(primary.FreeFood, secondary.FreeFood)
	m.PrivateRoom = or(primary.PrivateRoom, secondary.PrivateRoom)
	m.Horigotatsu = or(primary.Horigotatsu, secondary.Horigotatsu)
	m.Tatami = or(primary.Tatami, secondary.Tatami)
	m.Card = or(primary.Card, secondary.Card)
	m.NonSmoking = or(primary.NonSmoking, secondary.NonSmoking)
	m.Charter = or(primary.Charter, secondary.Charter)
	m.Ktai = or(primary.Ktai, secondary.Ktai)
	m.Parking = or(primary.Parking, secondary.Parking)
	m.BarrierFree = or(primary.BarrierFree, secondary.BarrierFree)
	m.Sommelier = or(primary.Sommelier, secondary.Sommelier)
	m.NightView = or(primary.NightView, secondary.NightView)
	m.OpenAir = or(primary.OpenAir, secondary.OpenAir)
	m.Show = or(primary.Show, secondary.Show)
	m.Equipment = or(primary.Equipment, secondary.Equipment)
	m.Karaoke = or(primary.Karaoke, secondary.Karaoke)
	m.Band = or(primary.Band, secondary.Band)
	m.TV = or(primary.TV, secondary.TV)
	m.English = or(primary.English, secondary.English)
	m.Pet = or(primary.Pet, secondary.Pet)
	m.Child = or(primary.Child, secondary.Child)
	m.Lunch = or(primary.Lunch, secondary.Lunch)
	m.Midnight = or(primary.Midnight, secondary.Midnight)

	m.ShopDetailMemo = or(primary.ShopDetailMemo, secondary.ShopDetailMemo)
	m.OtherMemo = or(primary.OtherMemo, secondary.OtherMemo)

	m.Special = orSlice(primary.Special, secondary.Special)
	m.CreditCard = orSlice(primary.CreditCard, secondary.CreditCard)

	m.CouponURLs = or(primary.CouponURLs, secondary.CouponURLs)
	return m
}

func or[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

func orSlice[T any](a, b []T) []T {
	if a != nil {
		return a
	}
	return b
}

// 文档注释：按 ID 合并两个店铺列表
// 约束：输出顺序为 list1 原序，随后是 list2 中新出现的 ID（按 list2 顺序）；
// 同 ID 以 list1 中的记录为 primary 合并。输出无重复 ID。
func MergeShopList(list1, list2 []Shop) []Shop {
	out := make([]Shop, 0, len(list1)+len(list2))
	index := make(map[string]int, len(list1)+len(list2))
	add := func(s Shop) {
		if i, ok := index[s.ID]; ok {
			out[i] = MergeShop(out[i], s)
			return
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	for _, s := range list1 {
		add(s)
	}
	for _, s := range list2 {
		add(s)
	}
	return out
}
