// internal/pkg/email/types.go
package email

// Email represents an outgoing message
type Email struct {
	To          []string
	Subject     string
	HTMLContent string
}

// OrderConfirmationData feeds the order confirmation template
type OrderConfirmationData struct {
	StoreName      string
	GuestName      string
	GuestEmail     string
	OrderNumber    string
	Items          []OrderEmailItem
	Subtotal       string
	DiscountAmount string
	ShippingCost   string
	Total          string
	PaymentMethod  string
}

// OrderEmailItem is one line of an order email
type OrderEmailItem struct {
	Name      string
	Color     string
	Quantity  int
	LineTotal string
}

// OrderShippedData feeds the shipped notification template
type OrderShippedData struct {
	StoreName   string
	GuestName   string
	GuestEmail  string
	OrderNumber string
	ShippedDate string
}
