package nutrition

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nutrition-coach/internal/api/middleware"
	"nutrition-coach/internal/core/history"
	nutritionService "nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/core/session"
	"nutrition-coach/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, store history.Store) *gin.Engine {
	t.Helper()
	provider := session.NewJWTProvider(testSecret, "nutrition-coach")
	h := NewHandler(nutritionService.NewAnalyzer(nil), store)

	r := gin.New()
	r.POST("/analyze", middleware.OptionalSession(provider), h.HandleAnalyze)
	r.GET("/foods", h.HandleListFoods)
	r.GET("/history", middleware.RequireSession(provider), middleware.RequirePaidAccess(), h.HandleHistory)
	return r
}

func token(t *testing.T, s session.Session) string {
	t.Helper()
	tok, err := session.NewJWTProvider(testSecret, "nutrition-coach").IssueToken(s, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAnalyze(t *testing.T, w *httptest.ResponseRecorder) AnalyzeResponse {
	t.Helper()
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleAnalyze_Salmon(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"saumon","quantity":200,"unit":"g"}]}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeAnalyze(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 416.0, resp.Analysis.Calories)
	assert.Equal(t, 50.8, resp.Analysis.Proteins)
	assert.Equal(t, 23.2, resp.Analysis.Fats)
	assert.Equal(t, -16.0, resp.Analysis.InflammatoryScore)
	assert.Equal(t, []string{nutritionService.RecommendFiber}, resp.Analysis.Recommendations)
	assert.Equal(t, 1, resp.ProcessedFoods)

	ts, err := time.Parse(time.RFC3339, resp.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestHandleAnalyze_UnknownFood(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"inconnu","quantity":100,"unit":"g"}]}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeAnalyze(t, w)
	assert.Equal(t, 0.0, resp.Analysis.Calories)
	assert.Equal(t, 1, resp.ProcessedFoods)
	assert.Equal(t, []string{"inconnu"}, resp.UnrecognizedFoods)
	assert.Len(t, resp.Analysis.Recommendations, 3)
}

func TestHandleAnalyze_FiltersMistypedItems(t *testing.T) {
	r := setupRouter(t, nil)

	body := `{"foods":[
		{"name":"curcuma","quantity":50,"unit":"g"},
		{"name":"saumon","quantity":"100","unit":"g"},
		{"name":42,"quantity":100,"unit":"g"},
		"saumon",
		null
	]}`
	w := do(r, http.MethodPost, "/analyze", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeAnalyze(t, w)
	assert.Equal(t, 1, resp.ProcessedFoods)
	assert.Equal(t, -5.0, resp.Analysis.InflammatoryScore)
	assert.Equal(t, 11.4, resp.Analysis.Fiber)
}

func TestHandleAnalyze_ValidationErrors(t *testing.T) {
	r := setupRouter(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, nutritionService.MsgFoodListRequired},
		{"malformed json", `{"foods":`, nutritionService.MsgFoodListRequired},
		{"missing foods", `{}`, nutritionService.MsgFoodListRequired},
		{"null foods", `{"foods":null}`, nutritionService.MsgFoodListRequired},
		{"object foods", `{"foods":{"name":"saumon"}}`, nutritionService.MsgFoodListRequired},
		{"empty foods", `{"foods":[]}`, nutritionService.MsgNoValidFoods},
		{"all filtered", `{"foods":[{"name":"saumon","quantity":0,"unit":"g"},{"name":"saumon","quantity":-1,"unit":"g"}]}`, nutritionService.MsgNoValidFoods},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/analyze", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"`+tc.want+`"}`, w.Body.String())
		})
	}
}

func TestHandleAnalyze_LargeQuantities(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"saumon","quantity":1e20,"unit":"g"}]}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAnalyze(t, w)
	assert.Greater(t, resp.Analysis.Calories, 0.0)
	assert.Less(t, resp.Analysis.InflammatoryScore, 0.0)

	w = do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"huile d'olive","quantity":1e308,"unit":"g"}]}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func TestHandleListFoods(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, http.MethodGet, "/foods", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp FoodsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, nutritionService.DefaultTable().Len(), resp.TotalFoods)
	require.Len(t, resp.Foods, resp.TotalFoods)

	var salmon *nutritionService.FoodListing
	for i := range resp.Foods {
		if resp.Foods[i].Name == "saumon" {
			salmon = &resp.Foods[i]
		}
	}
	require.NotNil(t, salmon)
	assert.Equal(t, "Saumon", salmon.DisplayName)
	assert.Equal(t, 208.0, salmon.NutritionPer100g.CaloriesPer100)
}

func TestHandleHistory(t *testing.T) {
	store := history.NewMemoryStore(config.HistoryConfig{MaxEntries: 5, MaxUsers: 10, TTL: time.Hour})
	defer store.Close()
	r := setupRouter(t, store)

	paid := token(t, session.Session{UserID: "u-paid", HasPaidAccess: true})
	free := token(t, session.Session{UserID: "u-free"})

	// 匿名請求不寫入紀錄
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"noix","quantity":30,"unit":"g"}]}`, "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"saumon","quantity":200,"unit":"g"}]}`, paid).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/analyze", `{"foods":[{"name":"curcuma","quantity":50,"unit":"g"}]}`, paid).Code)

	w := do(r, http.MethodGet, "/history", "", paid)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "curcuma", resp.History[0].Foods[0].Name)
	assert.Equal(t, 416.0, resp.History[1].Analysis.Calories)

	w = do(r, http.MethodGet, "/history?limit=1", "", paid)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/history?limit=abc", "", paid).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/history", "", free).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/history", "", "").Code)
}

func TestHandleHistory_Disabled(t *testing.T) {
	r := setupRouter(t, nil)
	paid := token(t, session.Session{UserID: "u-paid", HasPaidAccess: true})

	w := do(r, http.MethodGet, "/history", "", paid)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
