package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	httpadapter "github.com/toleubekov/kitchen-sync/internal/adapter/http"
	"github.com/toleubekov/kitchen-sync/internal/domain"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

type stubService struct {
	event   *domain.TransitionEvent
	order   *domain.Order
	history []*domain.StatusLog
	err     error

	lastCmd interfaces.TransitionCommand
}

func (s *stubService) RequestTransition(ctx context.Context, cmd interfaces.TransitionCommand) (*domain.TransitionEvent, error) {
	s.lastCmd = cmd
	return s.event, s.err
}

func (s *stubService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubService) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	return s.history, s.err
}

type quietLogger struct{}

func (quietLogger) Info(string, string, string, map[string]interface{})         {}
func (quietLogger) Debug(string, string, string, map[string]interface{})        {}
func (quietLogger) Warn(string, string, string, map[string]interface{})         {}
func (quietLogger) Error(string, string, string, map[string]interface{}, error) {}

func postTransition(t *testing.T, svc *stubService, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := httpadapter.NewTransitionHandler(svc, quietLogger{})
	req := httptest.NewRequest(nethttp.MethodPost, "/orders/order-1/transition", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleOrders(rec, req)
	return rec
}

func TestRequestTransition_Success(t *testing.T) {
	svc := &stubService{
		event: &domain.TransitionEvent{
			ID:             "ev-1",
			OrderID:        "order-1",
			PreviousStatus: domain.StatusNew,
			NewStatus:      domain.StatusPending,
			Version:        1,
		},
	}

	rec := postTransition(t, svc, `{"requested_status":"pending","expected_version":0,"requested_by":"pos-3"}`)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	require.Equal(t, "order-1", svc.lastCmd.OrderID)
	require.Equal(t, domain.StatusPending, svc.lastCmd.RequestedStatus)
	require.Equal(t, int64(0), svc.lastCmd.ExpectedVersion)
	require.Equal(t, "pos-3", svc.lastCmd.RequestedBy)

	var resp httpadapter.TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "ev-1", resp.Event.ID)
}

func TestRequestTransition_ErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		httpCode int
		wireCode string
	}{
		{domain.ErrInvalidTransition, nethttp.StatusUnprocessableEntity, "InvalidTransition"},
		{domain.ErrUnknownStatus, nethttp.StatusUnprocessableEntity, "UnknownStatus"},
		{domain.ErrVersionConflict, nethttp.StatusConflict, "VersionConflict"},
		{domain.ErrOrderNotFound, nethttp.StatusNotFound, "OrderNotFound"},
		{domain.ErrStorageUnavailable, nethttp.StatusServiceUnavailable, "StorageUnavailable"},
		{domain.ErrIndeterminate, nethttp.StatusBadGateway, "Indeterminate"},
	}

	for _, tc := range cases {
		t.Run(tc.wireCode, func(t *testing.T) {
			svc := &stubService{err: fmt.Errorf("%w: details", tc.err)}

			rec := postTransition(t, svc, `{"requested_status":"pending","expected_version":0}`)
			require.Equal(t, tc.httpCode, rec.Code)

			var resp httpadapter.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, "error", resp.Status)
			require.Equal(t, tc.wireCode, resp.Code)
		})
	}
}

func TestRequestTransition_BadBody(t *testing.T) {
	rec := postTransition(t, &stubService{}, `{broken`)
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestHandleOrders_MethodAndPathRouting(t *testing.T) {
	svc := &stubService{
		order: &domain.Order{ID: "order-1", Status: domain.StatusReady, Version: 3},
		history: []*domain.StatusLog{
			{Status: domain.StatusNew},
			{Status: domain.StatusPending},
		},
	}
	h := httpadapter.NewTransitionHandler(svc, quietLogger{})

	req := httptest.NewRequest(nethttp.MethodGet, "/orders/order-1", nil)
	rec := httptest.NewRecorder()
	h.HandleOrders(rec, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	req = httptest.NewRequest(nethttp.MethodGet, "/orders/order-1/history", nil)
	rec = httptest.NewRecorder()
	h.HandleOrders(rec, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)

	// Transition endpoint is POST only.
	req = httptest.NewRequest(nethttp.MethodGet, "/orders/order-1/transition", nil)
	rec = httptest.NewRecorder()
	h.HandleOrders(rec, req)
	require.Equal(t, nethttp.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(nethttp.MethodGet, "/orders/", nil)
	rec = httptest.NewRecorder()
	h.HandleOrders(rec, req)
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(nethttp.MethodGet, "/orders/order-1/bogus", nil)
	rec = httptest.NewRecorder()
	h.HandleOrders(rec, req)
	require.Equal(t, nethttp.StatusNotFound, rec.Code)
}
