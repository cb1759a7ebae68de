package generator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/checkout"
	"storefront/internal/gateway"
	"storefront/internal/model"
)

// TaxCalculator - расчет налога для снимка заказа.
type TaxCalculator interface {
	Calculate(subtotal decimal.Decimal, addr model.TaxAddress) model.TaxCalculation
}

var (
	indianStates     = []string{"MH", "KA", "DL", "TN", "GJ", "WB", "UP", "KL"}
	foreignCountries = []string{"US", "GB", "DE", "FR", "AE", "SG", "AU", "CA"}
	categories       = []string{"lips", "eyes", "face", "nails"}
	shades           = []string{"Ruby", "Nude", "Mocha", "Coral", "Plum", ""}
)

// Generator создает случайные, но согласованные данные магазина:
// каталог, покупателей, корзины и вебхуки шлюза.
type Generator struct {
	faker *gofakeit.Faker
}

// New создает генератор. Один и тот же seed дает одну и ту же последовательность, 0 - случайный seed.
func New(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// SeedProducts возвращает стартовый каталог. Совпадает с сидом миграций.
func SeedProducts() []model.Product {
	return []model.Product{
		{ID: "lip-velvet-01", Name: "Velvet Matte Lipstick", Slug: "velvet-matte-lipstick", Category: "lips", PriceINR: decimal.RequireFromString("1499.00"), PriceUSD: decimal.RequireFromString("18.00"), Stock: 120},
		{ID: "lip-gloss-02", Name: "Glass Shine Gloss", Slug: "glass-shine-gloss", Category: "lips", PriceINR: decimal.RequireFromString("999.00"), PriceUSD: decimal.RequireFromString("12.00"), Stock: 80},
		{ID: "eye-liner-01", Name: "Precision Kohl Liner", Slug: "precision-kohl-liner", Category: "eyes", PriceINR: decimal.RequireFromString("699.00"), PriceUSD: decimal.RequireFromString("9.00"), Stock: 200},
		{ID: "face-blush-01", Name: "Cream Blush Duo", Slug: "cream-blush-duo", Category: "face", PriceINR: decimal.RequireFromString("1299.00"), PriceUSD: decimal.RequireFromString("16.00"), Stock: 40},
	}
}

// Product создает один случайный товар с ценами в обеих валютах.
func (g *Generator) Product() model.Product {
	name := g.faker.ProductName()
	category := g.faker.RandomString(categories)
	inr := decimal.NewFromInt(int64(g.faker.Number(199, 4999)))
	return model.Product{
		ID:       fmt.Sprintf("%s-%s", category, strings.ToLower(g.faker.LetterN(8))),
		Name:     name,
		Slug:     strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Category: category,
		PriceINR: inr,
		// Курс округлен, чтобы цены в долларах оставались целыми центами.
		PriceUSD: inr.Div(decimal.NewFromInt(83)).Round(2),
		Stock:    g.faker.Number(5, 300),
	}
}

// Products создает n случайных товаров.
func (g *Generator) Products(n int) []model.Product {
	products := make([]model.Product, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, g.Product())
	}
	return products
}

// Customer - покупатель с адресом доставки.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address model.ShippingAddress
	IP      string
}

// Customer создает покупателя. Пустая страна означает Индию.
func (g *Generator) Customer(country string) Customer {
	if country == "" {
		country = "IN"
	}
	state := g.faker.StateAbr()
	if country == "IN" {
		state = g.faker.RandomString(indianStates)
	}
	return Customer{
		Name:  g.faker.Name(),
		Email: strings.ToLower(g.faker.Email()),
		Phone: "+91" + g.faker.Numerify("##########"),
		Address: model.ShippingAddress{
			Line1:      g.faker.Street(),
			City:       g.faker.City(),
			State:      state,
			PostalCode: g.faker.Zip(),
			Country:    country,
		},
		IP: g.faker.IPv4Address(),
	}
}

// ForeignCustomer создает покупателя из случайной страны за пределами Индии.
func (g *Generator) ForeignCustomer() Customer {
	return g.Customer(g.faker.RandomString(foreignCountries))
}

func (g *Generator) pick(products []model.Product) []model.Product {
	if len(products) == 0 {
		return nil
	}
	n := g.faker.Number(1, 3)
	if n > len(products) {
		n = len(products)
	}
	idx := make([]int, len(products))
	for i := range idx {
		idx[i] = i
	}
	g.faker.ShuffleInts(idx)
	picked := make([]model.Product, 0, n)
	for _, i := range idx[:n] {
		picked = append(picked, products[i])
	}
	return picked
}

// CheckoutRequest собирает корзину из 1-3 разных товаров каталога.
func (g *Generator) CheckoutRequest(products []model.Product, c Customer) checkout.Request {
	picked := g.pick(products)
	items := make([]checkout.CartItem, 0, len(picked))
	for _, p := range picked {
		items = append(items, checkout.CartItem{
			ProductID: p.ID,
			Quantity:  g.faker.Number(1, 3),
			Shade:     g.faker.RandomString(shades),
		})
	}
	return checkout.Request{
		Items:           items,
		CustomerName:    c.Name,
		CustomerEmail:   c.Email,
		CustomerPhone:   c.Phone,
		ShippingAddress: c.Address,
		ClientIP:        c.IP,
		UserAgent:       g.faker.UserAgent(),
		IPCountry:       c.Address.Country,
	}
}

// OrderNotes собирает снимок чекаута так же, как его собирает сервис чекаута:
// цены из каталога, налог по адресу покупателя.
func (g *Generator) OrderNotes(req checkout.Request, products []model.Product, calc TaxCalculator) (gateway.OrderNotes, error) {
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	currency := checkout.CurrencyFor(req.ShippingAddress.Country)

	items := make([]model.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, ci := range req.Items {
		p, ok := byID[ci.ProductID]
		if !ok {
			return gateway.OrderNotes{}, fmt.Errorf("товар %s не найден в каталоге", ci.ProductID)
		}
		item := model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Shade:       ci.Shade,
			Price:       p.PriceIn(currency),
			Quantity:    ci.Quantity,
			Currency:    currency,
		}
		subtotal = subtotal.Add(item.Subtotal())
		items = append(items, item)
	}

	tax := calc.Calculate(subtotal, model.TaxAddress{
		Country:    req.ShippingAddress.Country,
		State:      req.ShippingAddress.State,
		PostalCode: req.ShippingAddress.PostalCode,
	})
	return gateway.OrderNotes{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Currency:        currency,
		Subtotal:        tax.Subtotal,
		TaxAmount:       tax.TaxAmount,
		TaxBreakdown:    tax.Breakdown,
		FinalAmount:     tax.Total,
		ClientIP:        req.ClientIP,
		SessionID:       uuid.NewString(),
	}, nil
}

// GatewayOrderID создает id заказа в формате шлюза.
func (g *Generator) GatewayOrderID() string {
	return "order_" + g.faker.LetterN(14)
}

// OrderPaidEvent собирает тело вебхука order.paid с захваченным платежом.
func (g *Generator) OrderPaidEvent(gatewayOrderID string, notes gateway.OrderNotes) ([]byte, error) {
	encoded, err := notes.Encode()
	if err != nil {
		return nil, err
	}
	amount := gateway.ToMinorUnits(notes.FinalAmount)
	payment := gateway.Payment{
		ID:       "pay_" + g.faker.LetterN(14),
		OrderID:  gatewayOrderID,
		Amount:   amount,
		Currency: notes.Currency,
		Status:   gateway.PaymentStatusCaptured,
		Email:    notes.CustomerEmail,
		Contact:  notes.CustomerPhone,
		Notes:    gateway.Notes{},
	}
	order := gateway.Order{
		ID:       gatewayOrderID,
		Entity:   "order",
		Amount:   amount,
		Currency: notes.Currency,
		Receipt:  notes.SessionID,
		Status:   "paid",
		Notes:    encoded,
	}
	return marshalEvent(gateway.EventOrderPaid, map[string]any{
		"payment": map[string]any{"entity": payment},
		"order":   map[string]any{"entity": order},
	})
}

// PaymentFailedEvent собирает тело вебхука payment.failed.
func (g *Generator) PaymentFailedEvent(gatewayOrderID string, notes gateway.OrderNotes) ([]byte, error) {
	encoded, err := notes.Encode()
	if err != nil {
		return nil, err
	}
	payment := gateway.Payment{
		ID:               "pay_" + g.faker.LetterN(14),
		OrderID:          gatewayOrderID,
		Amount:           gateway.ToMinorUnits(notes.FinalAmount),
		Currency:         notes.Currency,
		Status:           "failed",
		Email:            notes.CustomerEmail,
		Contact:          notes.CustomerPhone,
		Notes:            encoded,
		ErrorCode:        "BAD_REQUEST_ERROR",
		ErrorDescription: g.faker.RandomString([]string{"Payment declined by bank", "Card expired", "Insufficient funds"}),
	}
	return marshalEvent(gateway.EventPaymentFailed, map[string]any{
		"payment": map[string]any{"entity": payment},
	})
}

func marshalEvent(event string, payload map[string]any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"entity":     "event",
		"event":      event,
		"payload":    payload,
		"created_at": time.Now().Unix(),
	})
}
