package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"casa_pronosticos/api"
	"casa_pronosticos/internal/cache"
	"casa_pronosticos/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDay = "2025-04-10"

// frozenClock pins business time to testDay 14:00 in a -6 offset zone.
type frozenClock struct{}

func (frozenClock) Now() time.Time {
	loc := time.FixedZone("CST", -6*3600)
	day, _ := time.ParseInLocation(ledger.DateLayout, testDay, loc)
	return day.Add(14 * time.Hour)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := ledger.NewLocalStore()
	mem := cache.NewMemoryCache()
	svc := ledger.NewService(store, mem, frozenClock{}, []string{"76", "79"}, 30*time.Minute, zap.NewNop())
	api.InitRoutesWith(router, svc, zap.NewNop())

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSalesHappyPath_FullFlow(t *testing.T) {
	router := newTestRouter()

	var nineID string

	t.Run("POST_FirstReading", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date":             testDay,
			"machine_id":       "76",
			"hour":             9,
			"cumulative_total": "100",
			"operator_id":      "op-1",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var rec ledger.SaleRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.NotEmpty(t, rec.ID)
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(100)))
		nineID = rec.ID
	})

	t.Run("POST_SecondReading", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date":             testDay,
			"machine_id":       "76",
			"hour":             10,
			"cumulative_total": "250",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var rec ledger.SaleRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(150)))
	})

	t.Run("GET_ListDay", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/sales?date="+testDay, "operador", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Records []*ledger.SaleRecord `json:"records"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Records, 2)
	})

	t.Run("PUT_EditCascades", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/sales/"+nineID, "operador", map[string]any{
			"cumulative_total": "120",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodGet, "/sales/totals?date="+testDay, "operador", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Totals map[string]*ledger.DailyTotals `json:"totals"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		m76 := resp.Totals["76"]
		require.NotNil(t, m76)
		assert.True(t, m76.Hourly[9].Equal(decimal.NewFromInt(120)))
		assert.True(t, m76.Hourly[10].Equal(decimal.NewFromInt(130)), "hour 10 amount recomputed after the edit")
		assert.True(t, m76.Total.Equal(decimal.NewFromInt(250)))
	})

	t.Run("DELETE_PatchNext", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/sales/"+nineID+"?patch_next=1", "operador", nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, router, http.MethodGet, "/sales/totals?date="+testDay, "operador", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Totals map[string]*ledger.DailyTotals `json:"totals"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		m76 := resp.Totals["76"]
		require.NotNil(t, m76)
		assert.True(t, m76.Hourly[10].Equal(decimal.NewFromInt(250)), "next record patched against new previous")
	})
}

func TestSales_ValidationAndConflicts(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
		"date": testDay, "machine_id": "76", "hour": 9, "cumulative_total": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("BelowPrevious_400", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date": testDay, "machine_id": "76", "hour": 10, "cumulative_total": "50",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("FutureHour_400", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date": testDay, "machine_id": "76", "hour": 15, "cumulative_total": "500",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("OccupiedSlot_409ThenReplace", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date": testDay, "machine_id": "76", "hour": 9, "cumulative_total": "110",
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = doJSON(t, router, http.MethodPost, "/sales", "operador", map[string]any{
			"date": testDay, "machine_id": "76", "hour": 9, "cumulative_total": "110", "confirm_replace": true,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("EditMissing_404", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/sales/no-such-id", "operador", map[string]any{
			"cumulative_total": "10",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSales_PermissionGating(t *testing.T) {
	router := newTestRouter()

	t.Run("NoRole_403", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "", map[string]any{
			"date": testDay, "machine_id": "76", "hour": 9, "cumulative_total": "100",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("OperatorCannotSeeCacheStats", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/cache/stats", "operador", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("AdminSeesCacheStats", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/cache/stats", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var stats struct {
			Hits   uint64  `json:"hits"`
			Misses uint64  `json:"misses"`
			Ratio  float64 `json:"ratio"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	})

	t.Run("SupervisorAllImpliesWrite", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", "supervisor", map[string]any{
			"date": testDay, "machine_id": "79", "hour": 9, "cumulative_total": "40",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestSales_ImportAndExport(t *testing.T) {
	router := newTestRouter()

	csvBody := strings.Join([]string{
		"date,machine_id,hour,cumulative_total,operator_id",
		"2025-04-01,76,9,100,op-1",
		"2025-04-01,76,10,250,op-1",
		"2025-04-01,79,9,30,op-2",
	}, "\n")

	req := httptest.NewRequest(http.MethodPost, "/sales/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Role", "supervisor")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Imported int `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Imported)

	getW := doJSON(t, router, http.MethodGet, "/sales?date=2025-04-01", "operador", nil)
	require.Equal(t, http.StatusOK, getW.Code)
	var listResp struct {
		Records []*ledger.SaleRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Records, 3)

	expW := doJSON(t, router, http.MethodGet, "/sales/export?date=2025-04-01", "supervisor", nil)
	require.Equal(t, http.StatusOK, expW.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", expW.Header().Get("Content-Type"))
	assert.NotZero(t, expW.Body.Len())
}

func TestPing(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
