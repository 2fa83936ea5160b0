package nutrition

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Table 食物成分表，建立後唯讀，可在多個請求間共用
type Table struct {
	records map[string]FoodRecord
	names   []string
}

// NewTable 由名稱對應表建立食物成分表
// 名稱會被轉為小寫並去除空白
func NewTable(records map[string]FoodRecord) *Table {
	t := &Table{
		records: make(map[string]FoodRecord, len(records)),
		names:   make([]string, 0, len(records)),
	}
	for name, rec := range records {
		key := normalizeName(name)
		if key == "" {
			continue
		}
		if _, dup := t.records[key]; !dup {
			t.names = append(t.names, key)
		}
		t.records[key] = rec
	}
	sort.Strings(t.names)
	return t
}

// Lookup 以不分大小寫的名稱查詢，查無資料回傳 false
func (t *Table) Lookup(name string) (FoodRecord, bool) {
	rec, ok := t.records[normalizeName(name)]
	return rec, ok
}

// Len 成分表大小
func (t *Table) Len() int {
	return len(t.names)
}

// List 依名稱排序列出所有食物
func (t *Table) List() []FoodListing {
	out := make([]FoodListing, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, FoodListing{
			Name:             name,
			DisplayName:      displayName(name),
			NutritionPer100g: t.records[name],
		})
	}
	return out
}

// normalizeName 轉為 NFC 後去除空白並轉小寫，保留重音
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// displayName 首字母大寫
func displayName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

var defaultTable = NewTable(map[string]FoodRecord{
	// 魚類
	"saumon":    {CaloriesPer100: 208, ProteinsPer100: 25.4, CarbsPer100: 0, FatsPer100: 11.6, FiberPer100: 0, InflammatoryScorePer100: -8},
	"sardines":  {CaloriesPer100: 208, ProteinsPer100: 24.6, CarbsPer100: 0, FatsPer100: 11.5, FiberPer100: 0, InflammatoryScorePer100: -7},
	"maquereau": {CaloriesPer100: 205, ProteinsPer100: 18.6, CarbsPer100: 0, FatsPer100: 13.9, FiberPer100: 0, InflammatoryScorePer100: -7},

	// 香料
	"curcuma":   {CaloriesPer100: 354, ProteinsPer100: 7.8, CarbsPer100: 64.9, FatsPer100: 9.9, FiberPer100: 22.7, InflammatoryScorePer100: -10},
	"gingembre": {CaloriesPer100: 80, ProteinsPer100: 1.8, CarbsPer100: 17.8, FatsPer100: 0.8, FiberPer100: 2, InflammatoryScorePer100: -6},
	"ail":       {CaloriesPer100: 149, ProteinsPer100: 6.4, CarbsPer100: 33.1, FatsPer100: 0.5, FiberPer100: 2.1, InflammatoryScorePer100: -4},

	// 蔬菜與水果
	"épinards":     {CaloriesPer100: 23, ProteinsPer100: 2.9, CarbsPer100: 3.6, FatsPer100: 0.4, FiberPer100: 2.2, InflammatoryScorePer100: -4},
	"brocoli":      {CaloriesPer100: 34, ProteinsPer100: 2.8, CarbsPer100: 6.6, FatsPer100: 0.4, FiberPer100: 2.6, InflammatoryScorePer100: -4},
	"chou kale":    {CaloriesPer100: 49, ProteinsPer100: 4.3, CarbsPer100: 8.8, FatsPer100: 0.9, FiberPer100: 3.6, InflammatoryScorePer100: -5},
	"tomate":       {CaloriesPer100: 18, ProteinsPer100: 0.9, CarbsPer100: 3.9, FatsPer100: 0.2, FiberPer100: 1.2, InflammatoryScorePer100: -2},
	"patate douce": {CaloriesPer100: 86, ProteinsPer100: 1.6, CarbsPer100: 20.1, FatsPer100: 0.1, FiberPer100: 3, InflammatoryScorePer100: -2},
	"myrtilles":    {CaloriesPer100: 57, ProteinsPer100: 0.7, CarbsPer100: 14.5, FatsPer100: 0.3, FiberPer100: 2.4, InflammatoryScorePer100: -5},
	"avocat":       {CaloriesPer100: 160, ProteinsPer100: 2, CarbsPer100: 8.5, FatsPer100: 14.7, FiberPer100: 6.7, InflammatoryScorePer100: -3},

	// 堅果、種子與油脂
	"noix":            {CaloriesPer100: 654, ProteinsPer100: 15.2, CarbsPer100: 13.7, FatsPer100: 65.2, FiberPer100: 6.7, InflammatoryScorePer100: -4},
	"amandes":         {CaloriesPer100: 579, ProteinsPer100: 21.2, CarbsPer100: 21.6, FatsPer100: 49.9, FiberPer100: 12.5, InflammatoryScorePer100: -3},
	"graines de chia": {CaloriesPer100: 486, ProteinsPer100: 16.5, CarbsPer100: 42.1, FatsPer100: 30.7, FiberPer100: 34.4, InflammatoryScorePer100: -6},
	"graines de lin":  {CaloriesPer100: 534, ProteinsPer100: 18.3, CarbsPer100: 28.9, FatsPer100: 42.2, FiberPer100: 27.3, InflammatoryScorePer100: -6},
	"huile d'olive":   {CaloriesPer100: 884, ProteinsPer100: 0, CarbsPer100: 0, FatsPer100: 100, FiberPer100: 0, InflammatoryScorePer100: -5},

	// 穀物與豆類
	"lentilles":  {CaloriesPer100: 116, ProteinsPer100: 9, CarbsPer100: 20.1, FatsPer100: 0.4, FiberPer100: 7.9, InflammatoryScorePer100: -2},
	"quinoa":     {CaloriesPer100: 120, ProteinsPer100: 4.4, CarbsPer100: 21.3, FatsPer100: 1.9, FiberPer100: 2.8, InflammatoryScorePer100: -1},
	"riz blanc":  {CaloriesPer100: 130, ProteinsPer100: 2.7, CarbsPer100: 28.2, FatsPer100: 0.3, FiberPer100: 0.4, InflammatoryScorePer100: 2},
	"pain blanc": {CaloriesPer100: 265, ProteinsPer100: 9, CarbsPer100: 49, FatsPer100: 3.2, FiberPer100: 2.7, InflammatoryScorePer100: 3},

	// 肉類與蛋
	"poulet": {CaloriesPer100: 165, ProteinsPer100: 31, CarbsPer100: 0, FatsPer100: 3.6, FiberPer100: 0, InflammatoryScorePer100: 0},
	"boeuf":  {CaloriesPer100: 250, ProteinsPer100: 26, CarbsPer100: 0, FatsPer100: 15, FiberPer100: 0, InflammatoryScorePer100: 3},
	"oeufs":  {CaloriesPer100: 155, ProteinsPer100: 12.6, CarbsPer100: 1.1, FatsPer100: 10.6, FiberPer100: 0, InflammatoryScorePer100: 1},

	// 其他
	"sucre":    {CaloriesPer100: 387, ProteinsPer100: 0, CarbsPer100: 100, FatsPer100: 0, FiberPer100: 0, InflammatoryScorePer100: 6},
	"thé vert": {CaloriesPer100: 1, ProteinsPer100: 0.2, CarbsPer100: 0, FatsPer100: 0, FiberPer100: 0, InflammatoryScorePer100: -3},
})

// DefaultTable 內建食物成分表
func DefaultTable() *Table {
	return defaultTable
}
