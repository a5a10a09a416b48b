// Manual SMTP smoke test: sends a fake order confirmation to the address
// given on the command line. Run with `go run scripts/email_smoke.go you@example.com`.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/email"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: email_smoke <recipient>")
	}

	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	svc := email.NewEmailService(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = svc.SendOrderConfirmation(ctx, email.OrderConfirmationData{
		StoreName:     cfg.App.Name,
		GuestName:     "Smoke Test",
		GuestEmail:    os.Args[1],
		OrderNumber:   "ORD-20260101-SMOKETST",
		Subtotal:      "100.00",
		ShippingCost:  "30.00",
		Total:         "130.00",
		PaymentMethod: "cash_on_delivery",
		Items: []email.OrderEmailItem{
			{Name: "Test Product", Quantity: 1, LineTotal: "100.00"},
		},
	})
	if err != nil {
		log.Fatal("send failed:", err)
	}
	log.Println("sent to", os.Args[1])
}
