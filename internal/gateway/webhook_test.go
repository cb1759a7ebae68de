package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

func TestParseWebhookEvent_OrderPaid(t *testing.T) {
	body := []byte(`{
		"entity": "event",
		"event": "order.paid",
		"payload": {
			"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "amount": 353764, "status": "captured", "notes": []}},
			"order": {"entity": {"id": "order_1", "amount": 353764, "status": "paid", "notes": {"customerEmail": "a@b.c"}}}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)

	assert.Equal(t, EventOrderPaid, event.Event)
	assert.Equal(t, "order_1", event.GatewayOrderID())
	assert.Equal(t, int64(353764), event.AmountMinor())
	assert.Equal(t, "a@b.c", event.Notes()["customerEmail"])
	assert.Equal(t, "pay_1", event.PaymentEntity().ID)
}

func TestParseWebhookEvent_PaymentOnly(t *testing.T) {
	body := []byte(`{"event": "payment.failed", "payload": {"payment": {"entity": {"id": "pay_2", "order_id": "order_2", "notes": {"clientIp": "10.0.0.1"}, "error_description": "card declined"}}}}`)

	event, err := ParseWebhookEvent(body)
	require.NoError(t, err)

	assert.Nil(t, event.OrderEntity())
	assert.Equal(t, "order_2", event.GatewayOrderID())
	assert.Equal(t, "10.0.0.1", event.Notes()[NoteClientIP])
}

func TestParseWebhookEvent_Malformed(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseWebhookEvent([]byte(`{"payload": {}}`))
	assert.Error(t, err)

	_, err = ParseWebhookEvent([]byte(`{"event": "order.paid", "payload": {"order": {"entity": {"notes": ["x"]}}}}`))
	assert.Error(t, err)
}

func TestOrderNotes_EncodeDecode(t *testing.T) {
	cgst := decimal.RequireFromString("269.82")
	notes := OrderNotes{
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "+919800000000",
		ShippingAddress: model.ShippingAddress{
			Line1: "1 Marine Drive", City: "Mumbai", State: "MH", PostalCode: "400001", Country: "IN",
		},
		Items: []model.OrderItem{
			{ProductID: "lip-velvet-01", ProductName: "Velvet Lip", Price: decimal.NewFromInt(1499), Quantity: 2, Currency: "INR"},
		},
		Currency:     "INR",
		Subtotal:     decimal.NewFromInt(2998),
		TaxAmount:    decimal.RequireFromString("539.64"),
		TaxBreakdown: model.TaxBreakdown{CGST: &cgst, SGST: &cgst, Type: model.TaxTypeGSTIndia, Country: "IN", State: "MH"},
		FinalAmount:  decimal.RequireFromString("3537.64"),
		ClientIP:     "10.0.0.1",
	}

	encoded, err := notes.Encode()
	require.NoError(t, err)
	assert.Equal(t, "3537.64", encoded[NoteFinalAmount])

	decoded, err := DecodeNotes(encoded)
	require.NoError(t, err)
	assert.Equal(t, notes.ShippingAddress, decoded.ShippingAddress)
	require.Len(t, decoded.Items, 1)
	assert.True(t, decoded.Items[0].Price.Equal(decimal.NewFromInt(1499)))
	assert.True(t, decoded.FinalAmount.Equal(notes.FinalAmount))
	assert.Equal(t, model.TaxTypeGSTIndia, decoded.TaxBreakdown.Type)
	assert.True(t, decoded.TaxBreakdown.CGST.Equal(cgst))
}

func TestDecodeNotes_MissingFields(t *testing.T) {
	_, err := DecodeNotes(map[string]string{})
	assert.Error(t, err)

	_, err = DecodeNotes(map[string]string{NoteCustomerEmail: "a@b.c", NoteAddress: `{}`, NoteItems: `[]`})
	assert.Error(t, err)

	_, err = DecodeNotes(map[string]string{NoteCustomerEmail: "a@b.c", NoteAddress: `{}`, NoteItems: `[{"productId":"p","quantity":1}]`, NoteSubtotal: "abc"})
	assert.Error(t, err)
}
