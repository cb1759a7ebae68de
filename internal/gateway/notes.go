package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

// Ключи меток заказа. Через них снимок корзины и покупателя доживает
// от создания сессии до вебхука.
const (
	NoteCustomerName  = "customerName"
	NoteCustomerEmail = "customerEmail"
	NoteCustomerPhone = "customerPhone"
	NoteAddress       = "address"
	NoteItems         = "items"
	NoteCurrency      = "currency"
	NoteSubtotal      = "subtotal"
	NoteTaxAmount     = "taxAmount"
	NoteTaxBreakdown  = "taxBreakdown"
	NoteFinalAmount   = "finalAmount"
	NoteClientIP      = "clientIp"
	NoteSessionID     = "sessionId"
)

// OrderNotes - снимок чекаута, который сохраняется в метках заказа шлюза.
type OrderNotes struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress model.ShippingAddress
	Items           []model.OrderItem
	Currency        string
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	TaxBreakdown    model.TaxBreakdown
	FinalAmount     decimal.Decimal
	ClientIP        string
	SessionID       string
}

// Encode сериализует снимок в метки.
func (n OrderNotes) Encode() (map[string]string, error) {
	address, err := json.Marshal(n.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("адрес: %w", err)
	}
	items, err := json.Marshal(n.Items)
	if err != nil {
		return nil, fmt.Errorf("позиции: %w", err)
	}
	breakdown, err := json.Marshal(n.TaxBreakdown)
	if err != nil {
		return nil, fmt.Errorf("налог: %w", err)
	}
	return map[string]string{
		NoteCustomerName:  n.CustomerName,
		NoteCustomerEmail: n.CustomerEmail,
		NoteCustomerPhone: n.CustomerPhone,
		NoteAddress:       string(address),
		NoteItems:         string(items),
		NoteCurrency:      n.Currency,
		NoteSubtotal:      n.Subtotal.StringFixed(2),
		NoteTaxAmount:     n.TaxAmount.StringFixed(2),
		NoteTaxBreakdown:  string(breakdown),
		NoteFinalAmount:   n.FinalAmount.StringFixed(2),
		NoteClientIP:      n.ClientIP,
		NoteSessionID:     n.SessionID,
	}, nil
}

// DecodeNotes восстанавливает снимок. Адрес, позиции и покупатель обязательны,
// суммы и налог - нет: их финализатор пересчитывает сам.
func DecodeNotes(notes map[string]string) (OrderNotes, error) {
	n := OrderNotes{
		CustomerName:  notes[NoteCustomerName],
		CustomerEmail: notes[NoteCustomerEmail],
		CustomerPhone: notes[NoteCustomerPhone],
		Currency:      notes[NoteCurrency],
		ClientIP:      notes[NoteClientIP],
		SessionID:     notes[NoteSessionID],
	}
	if n.CustomerEmail == "" {
		return n, fmt.Errorf("в метках нет %s", NoteCustomerEmail)
	}
	if err := json.Unmarshal([]byte(notes[NoteAddress]), &n.ShippingAddress); err != nil {
		return n, fmt.Errorf("метка %s: %w", NoteAddress, err)
	}
	if err := json.Unmarshal([]byte(notes[NoteItems]), &n.Items); err != nil {
		return n, fmt.Errorf("метка %s: %w", NoteItems, err)
	}
	if len(n.Items) == 0 {
		return n, fmt.Errorf("в метках нет позиций")
	}
	if raw := notes[NoteTaxBreakdown]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.TaxBreakdown); err != nil {
			return n, fmt.Errorf("метка %s: %w", NoteTaxBreakdown, err)
		}
	}
	for key, dst := range map[string]*decimal.Decimal{
		NoteSubtotal:    &n.Subtotal,
		NoteTaxAmount:   &n.TaxAmount,
		NoteFinalAmount: &n.FinalAmount,
	} {
		raw := notes[key]
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return n, fmt.Errorf("метка %s: %w", key, err)
		}
		*dst = v
	}
	return n, nil
}
