package nutrition

import (
	"errors"
	"math"
	"time"

	"nutrition-coach/internal/pkg/common"
)

// 建議規則門檻
const (
	inflammatoryHighThreshold      = -5.0
	fiberMinimum                   = 25.0
	proteinMinimum                 = 50.0
	inflammatoryExcellentThreshold = -20.0
)

// 建議內容，依規則順序
const (
	RecommendAntiInflammatory = "Ajoutez plus d'aliments anti-inflammatoires comme le curcuma et le gingembre"
	RecommendFiber            = "Augmentez votre apport en fibres avec plus de légumes verts"
	RecommendProtein          = "Incluez plus de sources de protéines comme le saumon ou les noix"
	RecommendExcellent        = "Excellent ! Votre repas a un fort potentiel anti-inflammatoire"
)

// 驗證錯誤訊息
const (
	MsgFoodListRequired = "food list required"
	MsgNoValidFoods     = "no valid food items provided"
)

var errTotalsOverflow = errors.New("nutrition totals are not finite")

// Analyzer 營養分析器
type Analyzer struct {
	table *Table
	now   func() time.Time
}

// NewAnalyzer 創建營養分析器，table 為 nil 時使用內建成分表
func NewAnalyzer(table *Table) *Analyzer {
	if table == nil {
		table = DefaultTable()
	}
	return &Analyzer{
		table: table,
		now:   time.Now,
	}
}

// Table 回傳分析器使用的成分表
func (a *Analyzer) Table() *Table {
	return a.table
}

// ListFoods 列出可選食物
func (a *Analyzer) ListFoods() []FoodListing {
	return a.table.List()
}

// FilterValid 過濾掉名稱為空、數量不大於 0 或單位為空的項目
func FilterValid(items []FoodItem) []FoodItem {
	valid := make([]FoodItem, 0, len(items))
	for _, item := range items {
		if item.Name == "" || !(item.Quantity > 0) || item.Unit == "" {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

// Aggregate 依輸入順序累加營養值，回傳未四捨五入的總量與查無資料的名稱
// 呼叫者需先過濾無效項目
func (a *Analyzer) Aggregate(items []FoodItem) (Totals, []string) {
	var totals Totals
	unrecognized := make([]string, 0)

	for _, item := range items {
		rec, ok := a.table.Lookup(item.Name)
		if !ok {
			unrecognized = append(unrecognized, item.Name)
			continue
		}

		multiplier := item.Quantity / 100
		totals.Calories += multiplier * rec.CaloriesPer100
		totals.Proteins += multiplier * rec.ProteinsPer100
		totals.Carbs += multiplier * rec.CarbsPer100
		totals.Fats += multiplier * rec.FatsPer100
		totals.Fiber += multiplier * rec.FiberPer100
		totals.InflammatoryScore += multiplier * rec.InflammatoryScorePer100
	}

	return totals, unrecognized
}

// Recommend 依固定順序評估建議規則，多條規則可同時成立
func Recommend(totals Totals) []string {
	recs := make([]string, 0, 4)
	if totals.InflammatoryScore > inflammatoryHighThreshold {
		recs = append(recs, RecommendAntiInflammatory)
	}
	if totals.Fiber < fiberMinimum {
		recs = append(recs, RecommendFiber)
	}
	if totals.Proteins < proteinMinimum {
		recs = append(recs, RecommendProtein)
	}
	if totals.InflammatoryScore < inflammatoryExcellentThreshold {
		recs = append(recs, RecommendExcellent)
	}
	return recs
}

// Round 熱量與發炎指數取整數，其餘營養素保留一位小數
func Round(totals Totals, recommendations []string) Analysis {
	return Analysis{
		Calories:          roundHalfUp(totals.Calories),
		Proteins:          roundOneDecimal(totals.Proteins),
		Carbs:             roundOneDecimal(totals.Carbs),
		Fats:              roundOneDecimal(totals.Fats),
		Fiber:             roundOneDecimal(totals.Fiber),
		InflammatoryScore: roundHalfUp(totals.InflammatoryScore),
		Recommendations:   recommendations,
	}
}

// Analyze 驗證輸入並計算營養分析
// items 為 nil 表示呼叫者未提供食物清單
func (a *Analyzer) Analyze(items []FoodItem) (*Result, error) {
	if items == nil {
		return nil, common.NewValidationError(MsgFoodListRequired)
	}

	valid := FilterValid(items)
	if len(valid) == 0 {
		return nil, common.NewValidationError(MsgNoValidFoods)
	}

	totals, unrecognized := a.Aggregate(valid)
	// 建議規則以未四捨五入的總量判斷
	analysis := Round(totals, Recommend(totals))
	if !allFinite(totals.Calories, totals.Proteins, totals.Carbs, totals.Fats, totals.Fiber, totals.InflammatoryScore,
		analysis.Proteins, analysis.Carbs, analysis.Fats, analysis.Fiber) {
		return nil, common.ErrInternalError.WithErr(errTotalsOverflow)
	}

	return &Result{
		Analysis:          analysis,
		ProcessedFoods:    len(valid),
		UnrecognizedFoods: unrecognized,
		Timestamp:         a.now().UTC(),
	}, nil
}

func allFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// roundHalfUp .5 一律往正方向進位
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundOneDecimal(x float64) float64 {
	return math.Round(x*10) / 10
}
