package area

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSmall() Area {
	ss := NewService("SS10", "関東", nil)
	z := NewLarge("Z011", "東京", ss)
	y := NewMiddle("Y005", "新宿", z)
	return NewSmall("X010", "歌舞伎町", y)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		code string
		kind Kind
		ok   bool
	}{
		{"SS10", Service, true},
		{"SA11", Service, true},
		{"Z011", Large, true},
		{"Y005", Middle, true},
		{"X010", Small, true},
		{"A123", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			k, ok := KindOf(tc.code)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.kind, k)
			}
		})
	}
}

func TestArea_Chain(t *testing.T) {
	x := sampleSmall()

	chain := x.Ancestors()
	require.Len(t, chain, 4)
	assert.Equal(t, []string{"SS10", "Z011", "Y005", "X010"}, []string{chain[0].Code, chain[1].Code, chain[2].Code, chain[3].Code})
	assert.Equal(t, "関東 東京 新宿 歌舞伎町", x.FullName())
	assert.Equal(t, "SS10", x.Root().Code)
	assert.Equal(t, Service, x.Root().Kind)
	assert.Equal(t, "Y005", x.ParentCode())
	assert.Equal(t, "", x.Root().ParentCode())
	assert.Equal(t, "関東", x.Root().FullName())
}

func TestArea_ServiceWithParent(t *testing.T) {
	parent := NewService("SS10", "関東", nil)
	sa := NewService("SA11", "東京", &parent)
	assert.Equal(t, "関東 東京", sa.FullName())

	parent.Name = "changed"
	assert.Equal(t, "関東", sa.Parent.Name)
}

func TestArea_JSONRoundTrip(t *testing.T) {
	x := sampleSmall()
	b, err := json.Marshal(x)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"small"`)

	var back Area
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, x, back)
}

func TestDistinctParents(t *testing.T) {
	kanto := NewService("SS10", "関東", nil)
	kansai := NewService("SS40", "関西", nil)
	list := []Area{
		NewLarge("Z011", "東京", kanto),
		NewLarge("Z012", "神奈川", kanto),
		NewLarge("Z023", "大阪", kansai),
		kanto,
	}
	got := DistinctParents(list)
	require.Len(t, got, 2)
	assert.Equal(t, "SS10", got[0].Code)
	assert.Equal(t, "SS40", got[1].Code)
}

func TestTaxonomy(t *testing.T) {
	tx := NewTaxonomy()
	_, ok := tx.LargeAreas()
	assert.False(t, ok)

	kanto := NewService("SS10", "関東", nil)
	tokyo := NewLarge("Z011", "東京", kanto)
	services := tx.SetLarge([]Area{tokyo})
	require.Len(t, services, 1)

	got, ok := tx.ServiceAreas()
	require.True(t, ok)
	assert.Equal(t, "SS10", got[0].Code)

	shinjuku := NewMiddle("Y005", "新宿", tokyo)
	tx.SetMiddle("Z011", []Area{shinjuku})
	tx.SetSmall("Y005", []Area{NewSmall("X010", "歌舞伎町", shinjuku)})

	m, ok := tx.FindMiddle("Y005")
	require.True(t, ok)
	assert.Equal(t, "新宿", m.Name)
	s, ok := tx.FindSmall("X010")
	require.True(t, ok)
	assert.Equal(t, "Y005", s.ParentCode())
	_, ok = tx.FindSmall("X999")
	assert.False(t, ok)

	// 返回副本，外部修改不影响缓存
	list, _ := tx.Middle("Z011")
	list[0].Name = "mutated"
	again, _ := tx.Middle("Z011")
	assert.Equal(t, "新宿", again[0].Name)

	tx.SetMiddle("Z099", nil)
	empty, ok := tx.Middle("Z099")
	assert.True(t, ok)
	assert.Empty(t, empty)

	tx.Clear()
	_, ok = tx.ServiceAreas()
	assert.False(t, ok)
	_, ok = tx.LargeAreas()
	assert.False(t, ok)
	_, ok = tx.Middle("Z011")
	assert.False(t, ok)
	_, ok = tx.Small("Y005")
	assert.False(t, ok)
}
