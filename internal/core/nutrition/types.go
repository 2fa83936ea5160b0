package nutrition

import "time"

// FoodRecord 每 100 單位的營養成分與發炎指數
type FoodRecord struct {
	CaloriesPer100          float64 `json:"calories"`
	ProteinsPer100          float64 `json:"proteins"`
	CarbsPer100             float64 `json:"carbs"`
	FatsPer100              float64 `json:"fats"`
	FiberPer100             float64 `json:"fiber"`
	InflammatoryScorePer100 float64 `json:"inflammatoryScore"`
}

// FoodItem 使用者提交的單一食物
// Unit 僅作記錄，不做單位換算
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Totals 未四捨五入的累計值
type Totals struct {
	Calories          float64
	Proteins          float64
	Carbs             float64
	Fats              float64
	Fiber             float64
	InflammatoryScore float64
}

// Analysis 四捨五入後的分析結果
// 熱量與發炎指數為整數值，以 float64 保存避免大數量時溢位
type Analysis struct {
	Calories          float64  `json:"calories"`
	Proteins          float64  `json:"proteins"`
	Carbs             float64  `json:"carbs"`
	Fats              float64  `json:"fats"`
	Fiber             float64  `json:"fiber"`
	InflammatoryScore float64  `json:"inflammatoryScore"`
	Recommendations   []string `json:"recommendations"`
}

// Result 一次分析的完整輸出
type Result struct {
	Analysis          Analysis
	ProcessedFoods    int
	UnrecognizedFoods []string
	Timestamp         time.Time
}

// FoodListing 提供給前端食物選單的項目
type FoodListing struct {
	Name             string     `json:"name"`
	DisplayName      string     `json:"displayName"`
	NutritionPer100g FoodRecord `json:"nutritionPer100g"`
}
