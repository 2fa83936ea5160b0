package nutrition

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"nutrition-coach/internal/api/middleware"
	"nutrition-coach/internal/core/history"
	nutritionService "nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// AnalyzeRequest 營養分析請求
// foods 先以原始 JSON 接收，型別錯誤的項目視為無效而非解析失敗
type AnalyzeRequest struct {
	Foods json.RawMessage `json:"foods"`
}

// AnalyzeResponse 營養分析回應
type AnalyzeResponse struct {
	Success           bool                      `json:"success"`
	Analysis          nutritionService.Analysis `json:"analysis"`
	ProcessedFoods    int                       `json:"processedFoods"`
	UnrecognizedFoods []string                  `json:"unrecognizedFoods"`
	Timestamp         string                    `json:"timestamp"`
}

// FoodsResponse 可選食物列表回應
type FoodsResponse struct {
	Success    bool                           `json:"success"`
	Foods      []nutritionService.FoodListing `json:"foods"`
	TotalFoods int                            `json:"totalFoods"`
}

// HistoryResponse 分析紀錄回應
type HistoryResponse struct {
	Success bool            `json:"success"`
	History []history.Entry `json:"history"`
	Total   int             `json:"total"`
}

// Handler 營養分析處理程序
type Handler struct {
	analyzer *nutritionService.Analyzer
	history  history.Store
}

// NewHandler 創建營養分析處理程序，store 可為 nil
func NewHandler(analyzer *nutritionService.Analyzer, store history.Store) *Handler {
	return &Handler{
		analyzer: analyzer,
		history:  store,
	}
}

// HandleAnalyze 處理 POST /nutrition/analyze
func (h *Handler) HandleAnalyze(c *gin.Context) {
	requestID := common.RequestID(c)

	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, common.ErrorResponse{Error: "Request body too large"})
			return
		}
		common.LogWarn("讀取請求失敗", zap.Error(err), zap.String("request_id", requestID))
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: nutritionService.MsgFoodListRequired})
		return
	}

	items, err := decodeFoodItems(body)
	if err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, err)
		return
	}

	result, err := h.analyzer.Analyze(items)
	if err != nil {
		if !common.IsValidationError(err) {
			common.LogError("營養分析失敗",
				zap.Error(err),
				zap.String("request_id", requestID),
			)
		}
		common.WriteError(c, err)
		return
	}

	h.record(c, requestID, items, result)

	c.JSON(http.StatusOK, AnalyzeResponse{
		Success:           true,
		Analysis:          result.Analysis,
		ProcessedFoods:    result.ProcessedFoods,
		UnrecognizedFoods: result.UnrecognizedFoods,
		Timestamp:         result.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// record 已登入時寫入分析紀錄，失敗不影響回應
func (h *Handler) record(c *gin.Context, requestID string, items []nutritionService.FoodItem, result *nutritionService.Result) {
	if h.history == nil {
		return
	}
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return
	}

	entry := history.Entry{
		ID:             common.GenerateUUID(),
		Foods:          nutritionService.FilterValid(items),
		Analysis:       result.Analysis,
		ProcessedFoods: result.ProcessedFoods,
		CreatedAt:      result.Timestamp,
	}
	if err := h.history.Append(c.Request.Context(), s.UserID, entry); err != nil {
		common.LogError("分析紀錄寫入失敗",
			zap.Error(err),
			zap.String("user_id", s.UserID),
			zap.String("request_id", requestID),
		)
	}
}

// HandleListFoods 處理 GET /nutrition/foods
func (h *Handler) HandleListFoods(c *gin.Context) {
	foods := h.analyzer.ListFoods()
	c.JSON(http.StatusOK, FoodsResponse{
		Success:    true,
		Foods:      foods,
		TotalFoods: len(foods),
	})
}

// HandleHistory 處理 GET /nutrition/history
func (h *Handler) HandleHistory(c *gin.Context) {
	if h.history == nil {
		common.WriteError(c, common.ErrHistoryDisabled)
		return
	}
	s, ok := middleware.SessionFrom(c)
	if !ok {
		common.WriteError(c, common.ErrUnauthorized)
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.WriteError(c, common.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.history.List(c.Request.Context(), s.UserID, limit)
	if err != nil {
		common.LogError("分析紀錄讀取失敗",
			zap.Error(err),
			zap.String("user_id", s.UserID),
		)
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Success: true,
		History: entries,
		Total:   len(entries),
	})
}

// decodeFoodItems 解析請求體中的 foods 陣列
// 缺少或非陣列回傳驗證錯誤；各項目欄位型別不符時保留零值，交由分析器過濾
func decodeFoodItems(body []byte) ([]nutritionService.FoodItem, error) {
	var req AnalyzeRequest
	if err := common.ParseJSONBytes(body, &req); err != nil {
		return nil, common.NewValidationError(nutritionService.MsgFoodListRequired)
	}
	if !common.IsJSONArray(req.Foods) {
		return nil, common.NewValidationError(nutritionService.MsgFoodListRequired)
	}

	var raw []json.RawMessage
	if err := common.ParseJSONBytes(req.Foods, &raw); err != nil {
		return nil, common.NewValidationError(nutritionService.MsgFoodListRequired)
	}

	items := make([]nutritionService.FoodItem, 0, len(raw))
	for _, r := range raw {
		var fields map[string]interface{}
		if err := common.ParseJSONBytes(r, &fields); err != nil || fields == nil {
			// 非物件項目
			items = append(items, nutritionService.FoodItem{})
			continue
		}

		var item nutritionService.FoodItem
		if name, ok := fields["name"].(string); ok {
			item.Name = name
		}
		if unit, ok := fields["unit"].(string); ok {
			item.Unit = unit
		}
		if num, ok := fields["quantity"].(json.Number); ok {
			if q, err := num.Float64(); err == nil {
				item.Quantity = q
			}
		}
		items = append(items, item)
	}

	return items, nil
}
