package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docnum/internal/core/apperror"
	"docnum/internal/core/numerator"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/http/v1/dto"
	"docnum/internal/infrastructure/storage/memory"
	"docnum/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func newTestRouter(store numerator.CounterStore) *gin.Engine {
	opts := numbering.DefaultOptions()
	opts.InitialBackoff = time.Millisecond
	opts.MaxBackoff = time.Millisecond
	opts.MaxBatch = 10
	opts.Clock = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }

	return NewRouter(RouterConfig{
		Service:     numbering.NewService(store, opts),
		StoreDriver: "memory",
		Logger:      logger.NewNop(),
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNext(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodPost, "/api/v1/sequences/invoice/next", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.NumberResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.NumberResponse{DocumentType: "invoice", Number: 1, Formatted: "INV-2026-00001"}, resp)

	w = do(t, r, http.MethodPost, "/api/v1/sequences/INVOICE/next", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Number)
}

func TestNext_ConcurrentRequests(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	const callers = 50
	nums := make([]int64, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sequences/quotation/next", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			var resp dto.NumberResponse
			if json.Unmarshal(w.Body.Bytes(), &resp) == nil {
				nums[i] = resp.Number
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for i, v := range nums {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestNext_UnknownType(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodPost, "/api/v1/sequences/purchase_order/next", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperror.CodeInvalidDocumentType, resp.Code)
	assert.Equal(t, "purchase_order", resp.Details["documentType"])

	w = do(t, r, http.MethodGet, "/api/v1/sequences", nil)
	assert.JSONEq(t, `{"items":[]}`, w.Body.String())
}

func TestBatch(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodPost, "/api/v1/sequences/sales_order/batch", dto.BatchRequest{Count: 3})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int64{1, 2, 3}, resp.Numbers)
	assert.Equal(t, int64(1), resp.First)
	assert.Equal(t, int64(3), resp.Last)

	tests := []struct {
		name string
		body any
	}{
		{"zero count", map[string]int{"count": 0}},
		{"above max batch", dto.BatchRequest{Count: 11}},
		{"missing body", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/sequences/sales_order/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var errResp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
			assert.Equal(t, apperror.CodeValidation, errResp.Code)
		})
	}
}

func TestGetFloorAndList(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodGet, "/api/v1/sequences/payroll_run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documentType":"payroll_run","lastIssued":0}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/v1/sequences/payroll_run/floor", map[string]int64{"floor": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documentType":"payroll_run","lastIssued":500}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/v1/sequences/payroll_run/floor", map[string]int64{"floor": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documentType":"payroll_run","lastIssued":500}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/v1/sequences/payroll_run/floor", map[string]int64{"floor": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sequences/inquiry/next", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/sequences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.ListResponse[dto.SequenceResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "inquiry", list.Items[0].DocumentType)
	assert.Equal(t, int64(1), list.Items[0].LastIssued)
	assert.Equal(t, "payroll_run", list.Items[1].DocumentType)
	assert.Equal(t, int64(500), list.Items[1].LastIssued)
}

func TestDocumentTypes(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodGet, "/api/v1/document-types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.ListResponse[dto.DocumentTypeResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 5)
	assert.Equal(t, dto.DocumentTypeResponse{DocumentType: "inquiry", Prefix: "INQ", IncludeYear: true, PadWidth: 5}, list.Items[0])
}

func TestStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", numerator.ErrConflict, http.StatusConflict, apperror.CodeConflict},
		{"unavailable", fmt.Errorf("%w: dial tcp", numerator.ErrStoreUnavailable), http.StatusServiceUnavailable, apperror.CodeStoreUnavailable},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError, apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &numerator.MockStore{
				IncrementAndGetFunc: func(context.Context, numerator.DocumentType, int64) (int64, error) {
					return 0, tt.err
				},
			}
			r := newTestRouter(store)

			w := do(t, r, http.MethodPost, "/api/v1/sequences/invoice/next", nil)
			assert.Equal(t, tt.status, w.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(memory.NewCounterStore())

	w := do(t, r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestRouter(&numerator.MockStore{
		PingFunc: func(context.Context) error { return numerator.ErrStoreUnavailable },
	})
	w = do(t, down, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
