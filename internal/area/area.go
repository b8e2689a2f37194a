// 包 area：Hotpepper 四级区域（大服务区 → 都道府县 → 市区町村 → 小区域）的值模型
package area

import (
	"fmt"
	"strings"
)

// Kind：区域层级
type Kind int

const (
	Service Kind = iota
	Large
	Middle
	Small
)

func (k Kind) String() string {
	switch k {
	case Service:
		return "service"
	case Large:
		return "large"
	case Middle:
		return "middle"
	case Small:
		return "small"
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "service":
		*k = Service
	case "large":
		*k = Large
	case "middle":
		*k = Middle
	case "small":
		*k = Small
	default:
		return fmt.Errorf("unknown area kind %q", string(b))
	}
	return nil
}

// 文档注释：由区域编码前缀判定层级
// 约束：SS/SA → 服务区，Z → 都道府县，Y → 市区町村，X → 小区域；其他前缀返回 false。
func KindOf(code string) (Kind, bool) {
	switch {
	case strings.HasPrefix(code, "SS"), strings.HasPrefix(code, "SA"):
		return Service, true
	case strings.HasPrefix(code, "Z"):
		return Large, true
	case strings.HasPrefix(code, "Y"):
		return Middle, true
	case strings.HasPrefix(code, "X"):
		return Small, true
	}
	return 0, false
}

// 文档注释：区域值
// 约束：Parent 指向构造时即确定的父链，之后不再修改；链的根必为服务区。
// 服务区的 Parent 可为空，也可为上一级服务区（service_area → large_service_area）。
type Area struct {
	Kind   Kind   `json:"kind"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Parent *Area  `json:"parent,omitempty"`
}

func NewService(code, name string, parent *Area) Area {
	var p *Area
	if parent != nil {
		c := *parent
		p = &c
	}
	return Area{Kind: Service, Code: code, Name: name, Parent: p}
}

func NewLarge(code, name string, service Area) Area {
	return Area{Kind: Large, Code: code, Name: name, Parent: &service}
}

func NewMiddle(code, name string, large Area) Area {
	return Area{Kind: Middle, Code: code, Name: name, Parent: &large}
}

func NewSmall(code, name string, middle Area) Area {
	return Area{Kind: Small, Code: code, Name: name, Parent: &middle}
}

// Ancestors：自根到自身的区域链
func (a Area) Ancestors() []Area {
	var chain []Area
	for cur := &a; cur != nil; cur = cur.Parent {
		chain = append(chain, *cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// FullName：自根到自身的名称，以单个空格连接
func (a Area) FullName() string {
	chain := a.Ancestors()
	names := make([]string, 0, len(chain))
	for _, c := range chain {
		names = append(names, c.Name)
	}
	return strings.Join(names, " ")
}

func (a Area) Root() Area {
	cur := a
	for cur.Parent != nil {
		cur = *cur.Parent
	}
	return cur
}

func (a Area) ParentCode() string {
	if a.Parent == nil {
		return ""
	}
	return a.Parent.Code
}

// 文档注释：按编码去重收集父区域
// 背景：大服务区列表由都道府县列表的父链派生，不单独请求接口。
// 约束：保留首次出现的顺序；无父区域的元素跳过。
func DistinctParents(list []Area) []Area {
	seen := make(map[string]struct{}, len(list))
	var out []Area
	for _, a := range list {
		if a.Parent == nil {
			continue
		}
		if _, ok := seen[a.Parent.Code]; ok {
			continue
		}
		seen[a.Parent.Code] = struct{}{}
		out = append(out, *a.Parent)
	}
	return out
}
