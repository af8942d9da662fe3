package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockline-backend/internal/orders"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/pagination"
)

type testOrdersService struct {
	createFn         func(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	confirmFn        func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	updateStatusFn   func(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	listFn           func(ctx context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error)
	assignDeliveryFn func(ctx context.Context, orderID, deliveryID uuid.UUID) error
}

func (s *testOrdersService) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Order{ID: uuid.New()}, nil
}

func (s *testOrdersService) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, orderID)
	}
	return &models.Order{ID: orderID}, nil
}

func (s *testOrdersService) RejectOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: enums.OrderStatusRejected}, nil
}

func (s *testOrdersService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, orderID, to)
	}
	return &models.Order{ID: orderID, Status: to}, nil
}

func (s *testOrdersService) AssignDelivery(ctx context.Context, orderID, deliveryID uuid.UUID) error {
	if s.assignDeliveryFn != nil {
		return s.assignDeliveryFn(ctx, orderID, deliveryID)
	}
	return nil
}

func (s *testOrdersService) UpdateDeliveryMethod(context.Context, uuid.UUID, enums.DeliveryMethod) error {
	return nil
}

func (s *testOrdersService) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (s *testOrdersService) ListOrders(ctx context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params, filters)
	}
	return &orders.OrderList{}, nil
}

func TestCreateOrderParsesBody(t *testing.T) {
	productID := uuid.New()
	clientID := uuid.New()
	var captured orders.CreateOrderInput
	svc := &testOrdersService{
		createFn: func(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}, nil
		},
	}

	body := `{"client_id":"` + clientID.String() + `","source":"inside_city","delivery_method":"delivery","items":[{"product_id":"` + productID.String() + `","quantity":3,"unit_price":"9.99"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()

	CreateOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Source != enums.OrderSourceInsideCity {
		t.Fatalf("source not parsed: %+v", captured)
	}
	if captured.DeliveryMethod == nil || *captured.DeliveryMethod != enums.DeliveryMethodDelivery {
		t.Fatalf("delivery method not parsed: %+v", captured)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != productID || captured.Items[0].Quantity != 3 {
		t.Fatalf("items not mapped: %+v", captured.Items)
	}
}

func TestCreateOrderRejectsUnknownSource(t *testing.T) {
	body := `{"source":"intergalactic","items":[{"product_id":"` + uuid.NewString() + `","quantity":1,"unit_price":"1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()

	CreateOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateOrderRequiresItems(t *testing.T) {
	body := `{"source":"inside_city","items":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()

	CreateOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestConfirmOrderMapsStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		confirmFn: func(context.Context, uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot transition from confirmed to confirmed")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/confirm", nil)
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	ConfirmOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestUpdateOrderStatusParsesStatus(t *testing.T) {
	orderID := uuid.New()
	var gotStatus enums.OrderStatus
	svc := &testOrdersService{
		updateStatusFn: func(_ context.Context, _ uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
			gotStatus = to
			return &models.Order{ID: orderID, Status: to}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"canceled"}`))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	UpdateOrderStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotStatus != enums.OrderStatusCanceled {
		t.Fatalf("status not parsed, got %s", gotStatus)
	}
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"teleported"}`))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	UpdateOrderStatus(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAssignDeliveryDecodesBody(t *testing.T) {
	orderID := uuid.New()
	deliveryID := uuid.New()
	var gotDelivery uuid.UUID
	svc := &testOrdersService{
		assignDeliveryFn: func(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
			gotDelivery = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/delivery", strings.NewReader(`{"delivery_id":"`+deliveryID.String()+`"}`))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	AssignDelivery(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotDelivery != deliveryID {
		t.Fatalf("delivery id not forwarded, got %s", gotDelivery)
	}
}

func TestListOrdersBuildsFilters(t *testing.T) {
	clientID := uuid.New()
	var gotParams pagination.Params
	var gotFilters orders.OrderFilters
	svc := &testOrdersService{
		listFn: func(_ context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
			gotParams = params
			gotFilters = filters
			return &orders.OrderList{}, nil
		},
	}

	target := "/api/v1/orders?status=pending&source=outside_city&client_id=" + clientID.String() + "&limit=10&cursor=abc"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()

	ListOrders(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotParams.Limit != 10 || gotParams.Cursor != "abc" {
		t.Fatalf("pagination not forwarded: %+v", gotParams)
	}
	if gotFilters.Status == nil || *gotFilters.Status != enums.OrderStatusPending {
		t.Fatalf("status filter missing: %+v", gotFilters)
	}
	if gotFilters.Source == nil || *gotFilters.Source != enums.OrderSourceOutsideCity {
		t.Fatalf("source filter missing: %+v", gotFilters)
	}
	if gotFilters.ClientID == nil || *gotFilters.ClientID != clientID {
		t.Fatalf("client filter missing: %+v", gotFilters)
	}
}

func TestListOrdersRejectsBadStatusFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=nope", nil)
	resp := httptest.NewRecorder()

	ListOrders(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
