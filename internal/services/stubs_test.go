package services

import (
	"context"
	"strings"

	"github.com/ramsey2004/homekraft-api/internal/payments"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

// stubRepoError implements repositories.RepositoryError for error-path tests.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubOrderRepository struct {
	orders map[string]domain.Order

	insertErrs []error
	findErr    error
	updateErr  error
	listErr    error

	inserted []domain.Order
	updated  []domain.Order
}

func newStubOrderRepository() *stubOrderRepository {
	return &stubOrderRepository{orders: map[string]domain.Order{}}
}

func (s *stubOrderRepository) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return domain.Order{}, err
		}
	}
	s.orders[order.ID] = order
	s.inserted = append(s.inserted, order)
	return order, nil
}

func (s *stubOrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	if s.findErr != nil {
		return domain.Order{}, s.findErr
	}
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{msg: "order not found", notFound: true}
	}
	return order, nil
}

func (s *stubOrderRepository) FindByNumberAndEmail(_ context.Context, orderNumber, email string) (domain.Order, error) {
	if s.findErr != nil {
		return domain.Order{}, s.findErr
	}
	for _, order := range s.orders {
		if order.OrderNumber != orderNumber || order.Guest == nil {
			continue
		}
		if strings.EqualFold(order.Guest.Email, email) {
			return order, nil
		}
	}
	return domain.Order{}, &stubRepoError{msg: "order not found", notFound: true}
}

func (s *stubOrderRepository) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	if s.updateErr != nil {
		return domain.Order{}, s.updateErr
	}
	s.orders[order.ID] = order
	s.updated = append(s.updated, order)
	return order, nil
}

func (s *stubOrderRepository) ListByUser(_ context.Context, userID string, _ domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s.listErr != nil {
		return domain.CursorPage[domain.Order]{}, s.listErr
	}
	var items []domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			items = append(items, order)
		}
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

type stubProductRepository struct {
	products map[string]domain.Product

	findManyErr error
	listErr     error
	adjustErrs  map[string]error

	adjustments []repositories.InventoryAdjustment
}

func newStubProductRepository(products ...domain.Product) *stubProductRepository {
	repo := &stubProductRepository{
		products:   map[string]domain.Product{},
		adjustErrs: map[string]error{},
	}
	for _, product := range products {
		repo.products[product.ID] = product
	}
	return repo
}

func (s *stubProductRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, &stubRepoError{msg: "product not found", notFound: true}
	}
	return product, nil
}

func (s *stubProductRepository) FindMany(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findManyErr != nil {
		return nil, s.findManyErr
	}
	found := map[string]domain.Product{}
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

func (s *stubProductRepository) List(_ context.Context, _ repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listErr != nil {
		return domain.CursorPage[domain.Product]{}, s.listErr
	}
	var items []domain.Product
	for _, product := range s.products {
		items = append(items, product)
	}
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (s *stubProductRepository) Adjust(_ context.Context, adjustment repositories.InventoryAdjustment) (repositories.InventoryAdjustmentResult, error) {
	s.adjustments = append(s.adjustments, adjustment)
	if err, ok := s.adjustErrs[adjustment.ProductID]; ok {
		return repositories.InventoryAdjustmentResult{
			ProductID: adjustment.ProductID,
			VariantID: adjustment.VariantID,
			Err:       err,
		}, err
	}
	product, ok := s.products[adjustment.ProductID]
	if !ok {
		err := repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "product not found", nil)
		return repositories.InventoryAdjustmentResult{
			ProductID: adjustment.ProductID,
			VariantID: adjustment.VariantID,
			Err:       err,
		}, err
	}

	var previous, next int
	if adjustment.VariantID == "" {
		previous = product.Inventory
		next = applyStubAdjustment(previous, adjustment)
		product.Inventory = next
	} else {
		found := false
		for i, variant := range product.Variants {
			if variant.ID == adjustment.VariantID {
				previous = variant.Quantity
				next = applyStubAdjustment(previous, adjustment)
				product.Variants[i].Quantity = next
				found = true
				break
			}
		}
		if !found {
			err := repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, "variant not found", nil)
			return repositories.InventoryAdjustmentResult{
				ProductID: adjustment.ProductID,
				VariantID: adjustment.VariantID,
				Err:       err,
			}, err
		}
	}
	s.products[adjustment.ProductID] = product
	return repositories.InventoryAdjustmentResult{
		ProductID:        adjustment.ProductID,
		VariantID:        adjustment.VariantID,
		PreviousQuantity: previous,
		NewQuantity:      next,
		Status:           domain.ClassifyStock(product.TotalStock()),
	}, nil
}

func (s *stubProductRepository) AdjustMany(ctx context.Context, adjustments []repositories.InventoryAdjustment) ([]repositories.InventoryAdjustmentResult, error) {
	results := make([]repositories.InventoryAdjustmentResult, 0, len(adjustments))
	for _, adjustment := range adjustments {
		result, err := s.Adjust(ctx, adjustment)
		if err != nil {
			result.Err = err
		}
		results = append(results, result)
	}
	return results, nil
}

func applyStubAdjustment(current int, adjustment repositories.InventoryAdjustment) int {
	switch adjustment.Mode {
	case repositories.AdjustmentSet:
		return adjustment.Quantity
	case repositories.AdjustmentIncrement:
		return current + adjustment.Quantity
	case repositories.AdjustmentDecrement:
		next := current - adjustment.Quantity
		if next < 0 {
			return 0
		}
		return next
	}
	return current
}

type stubDiscountRepository struct {
	codes   map[string]domain.DiscountCode
	findErr error

	usageErr error
	usage    []string
}

func newStubDiscountRepository(codes ...domain.DiscountCode) *stubDiscountRepository {
	repo := &stubDiscountRepository{codes: map[string]domain.DiscountCode{}}
	for _, code := range codes {
		repo.codes[strings.ToUpper(code.Code)] = code
	}
	return repo
}

func (s *stubDiscountRepository) FindByCode(_ context.Context, code string) (domain.DiscountCode, error) {
	if s.findErr != nil {
		return domain.DiscountCode{}, s.findErr
	}
	discount, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return domain.DiscountCode{}, &stubRepoError{msg: "discount not found", notFound: true}
	}
	return discount, nil
}

func (s *stubDiscountRepository) IncrementUsage(_ context.Context, discountID string) error {
	if s.usageErr != nil {
		return s.usageErr
	}
	s.usage = append(s.usage, discountID)
	return nil
}

type stubPaymentLogRepository struct {
	logs map[string]domain.PaymentLog

	insertErr error
	findErr   error

	inserted []domain.PaymentLog
	updated  []domain.PaymentLog
}

func newStubPaymentLogRepository() *stubPaymentLogRepository {
	return &stubPaymentLogRepository{logs: map[string]domain.PaymentLog{}}
}

func (s *stubPaymentLogRepository) Insert(_ context.Context, log domain.PaymentLog) (domain.PaymentLog, error) {
	if s.insertErr != nil {
		return domain.PaymentLog{}, s.insertErr
	}
	s.logs[log.OrderID] = log
	s.inserted = append(s.inserted, log)
	return log, nil
}

func (s *stubPaymentLogRepository) Update(_ context.Context, log domain.PaymentLog) (domain.PaymentLog, error) {
	s.logs[log.OrderID] = log
	s.updated = append(s.updated, log)
	return log, nil
}

func (s *stubPaymentLogRepository) FindByOrderID(_ context.Context, orderID string) (domain.PaymentLog, error) {
	if s.findErr != nil {
		return domain.PaymentLog{}, s.findErr
	}
	log, ok := s.logs[orderID]
	if !ok {
		return domain.PaymentLog{}, &stubRepoError{msg: "payment log not found", notFound: true}
	}
	return log, nil
}

type stubAnalyticsRepository struct {
	insertErr error
	events    []domain.AnalyticsEvent
}

func (s *stubAnalyticsRepository) Insert(_ context.Context, event domain.AnalyticsEvent) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events = append(s.events, event)
	return nil
}

type stubEmailPublisher struct {
	publishErr error
	messages   []OrderEmailMessage
}

func (s *stubEmailPublisher) PublishOrderEmail(_ context.Context, message OrderEmailMessage) (string, error) {
	if s.publishErr != nil {
		return "", s.publishErr
	}
	s.messages = append(s.messages, message)
	return "msg_1", nil
}

type stubAnalyticsPublisher struct {
	publishErr error
	events     []domain.AnalyticsEvent
}

func (s *stubAnalyticsPublisher) PublishAnalyticsEvent(_ context.Context, event domain.AnalyticsEvent) (string, error) {
	if s.publishErr != nil {
		return "", s.publishErr
	}
	s.events = append(s.events, event)
	return "msg_1", nil
}

// stubGateway lets tests script gateway behaviour per call.
type stubGateway struct {
	name      string
	createFn  func(payments.CreateIntentInput) (payments.Intent, error)
	confirmFn func(payments.ConfirmInput) (payments.ConfirmResult, error)
	refundFn  func(payments.RefundInput) (payments.RefundResult, error)

	createCalls  []payments.CreateIntentInput
	confirmCalls []payments.ConfirmInput
	refundCalls  []payments.RefundInput
}

func (s *stubGateway) Name() string { return s.name }

func (s *stubGateway) CreateIntent(_ context.Context, input payments.CreateIntentInput) (payments.Intent, error) {
	s.createCalls = append(s.createCalls, input)
	if s.createFn != nil {
		return s.createFn(input)
	}
	return payments.Intent{
		Gateway:        s.name,
		IntentID:       "intent_1",
		GatewayOrderID: "gw_order_1",
		Amount:         input.Amount,
		Currency:       input.Currency,
	}, nil
}

func (s *stubGateway) Confirm(_ context.Context, input payments.ConfirmInput) (payments.ConfirmResult, error) {
	s.confirmCalls = append(s.confirmCalls, input)
	if s.confirmFn != nil {
		return s.confirmFn(input)
	}
	return payments.ConfirmResult{Status: payments.StatusSucceeded, TransactionID: "txn_1"}, nil
}

func (s *stubGateway) Status(context.Context, string) (payments.IntentStatus, error) {
	return payments.IntentStatus{Status: payments.StatusPending}, nil
}

func (s *stubGateway) Refund(_ context.Context, input payments.RefundInput) (payments.RefundResult, error) {
	s.refundCalls = append(s.refundCalls, input)
	if s.refundFn != nil {
		return s.refundFn(input)
	}
	return payments.RefundResult{RefundID: "rfnd_1", Status: payments.StatusRefunded}, nil
}

func newStubRegistry(gateways ...*stubGateway) *payments.Registry {
	mapping := map[domain.PaymentMethod]payments.Gateway{}
	for _, gateway := range gateways {
		mapping[domain.PaymentMethod(gateway.name)] = gateway
	}
	registry, err := payments.NewRegistry(mapping)
	if err != nil {
		panic(err)
	}
	return registry
}
