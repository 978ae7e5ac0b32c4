package handlers

import (
	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

type orderItemView struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

type addressView struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type guestContactView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type orderView struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"orderNumber"`
	UserID          string            `json:"userId,omitempty"`
	Guest           *guestContactView `json:"guest,omitempty"`
	Status          string            `json:"status"`
	PaymentMethod   string            `json:"paymentMethod"`
	PaymentStatus   string            `json:"paymentStatus"`
	Items           []orderItemView   `json:"items"`
	Subtotal        float64           `json:"subtotal"`
	DiscountAmount  float64           `json:"discountAmount,omitempty"`
	ShippingCost    float64           `json:"shippingCost"`
	Total           float64           `json:"total"`
	Currency        string            `json:"currency"`
	ShippingAddress addressView       `json:"shippingAddress"`
	TrackingNumber  string            `json:"trackingNumber,omitempty"`
	TrackingURL     string            `json:"trackingUrl,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
	ConfirmedAt     string            `json:"confirmedAt,omitempty"`
	ShippedAt       string            `json:"shippedAt,omitempty"`
	DeliveredAt     string            `json:"deliveredAt,omitempty"`
	CancelledAt     string            `json:"cancelledAt,omitempty"`
}

func encodeOrderView(order domain.Order) orderView {
	view := orderView{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PaymentMethod:  string(order.PaymentMethod),
		PaymentStatus:  string(order.PaymentStatus),
		Items:          make([]orderItemView, 0, len(order.Items)),
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		Currency:       order.Currency,
		ShippingAddress: addressView{
			Name:       order.ShippingAddress.Name,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
			Phone:      order.ShippingAddress.Phone,
		},
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		ConfirmedAt: formatTimePtr(order.ConfirmedAt),
		ShippedAt:   formatTimePtr(order.ShippedAt),
		DeliveredAt: formatTimePtr(order.DeliveredAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
	}
	if order.Guest != nil {
		view.Guest = &guestContactView{
			Name:  order.Guest.Name,
			Email: order.Guest.Email,
			Phone: order.Guest.Phone,
		}
	}
	if order.TrackingNumber != nil {
		view.TrackingNumber = *order.TrackingNumber
	}
	if order.TrackingURL != nil {
		view.TrackingURL = *order.TrackingURL
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return view
}

type paymentInstructionsView struct {
	Gateway        string `json:"gateway"`
	GatewayOrderID string `json:"gatewayOrderId,omitempty"`
	ClientSecret   string `json:"clientSecret,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId,omitempty"`
}

func encodePaymentInstructions(payment *services.PaymentInstructions) *paymentInstructionsView {
	if payment == nil {
		return nil
	}
	return &paymentInstructionsView{
		Gateway:        payment.Gateway,
		GatewayOrderID: payment.GatewayOrderID,
		ClientSecret:   payment.ClientSecret,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		KeyID:          payment.KeyID,
	}
}
