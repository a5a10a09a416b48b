// internal/domain/payment/paymob_types.go
package payment

// authRequest is the body of the token endpoint
type authRequest struct {
	APIKey string `json:"api_key"`
}

// authResponse carries the short-lived bearer token
type authResponse struct {
	Token string `json:"token"`
}

// registerOrderRequest registers a merchant order at the provider
type registerOrderRequest struct {
	AuthToken       string `json:"auth_token"`
	DeliveryNeeded  bool   `json:"delivery_needed"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	MerchantOrderID string `json:"merchant_order_id"`
}

// registerOrderResponse returns the provider-side order id
type registerOrderResponse struct {
	ID int64 `json:"id"`
}

// BillingDetails is the customer information required by the payment key call
type BillingDetails struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Apartment   string `json:"apartment"`
	Floor       string `json:"floor"`
	Building    string `json:"building"`
	PostalCode  string `json:"postal_code"`
	State       string `json:"state"`
}

// paymentKeyRequest requests a payment token scoped to one integration
type paymentKeyRequest struct {
	AuthToken     string         `json:"auth_token"`
	AmountCents   int64          `json:"amount_cents"`
	Expiration    int            `json:"expiration"`
	OrderID       int64          `json:"order_id"`
	BillingData   BillingDetails `json:"billing_data"`
	Currency      string         `json:"currency"`
	IntegrationID int            `json:"integration_id"`
}

// paymentKeyResponse carries the opaque payment key
type paymentKeyResponse struct {
	Token string `json:"token"`
}

// walletPayRequest submits a wallet charge against a payment key
type walletPayRequest struct {
	Source       walletSource `json:"source"`
	PaymentToken string       `json:"payment_token"`
}

type walletSource struct {
	Identifier string `json:"identifier"`
	Subtype    string `json:"subtype"`
}

// walletPayResponse is the provider's answer to a wallet charge
type walletPayResponse struct {
	ID          int64  `json:"id"`
	Pending     bool   `json:"pending"`
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
	IframeURL   string `json:"iframe_redirection_url"`
}

// transactionResponse is the provider's transaction record
type transactionResponse struct {
	ID          int64  `json:"id"`
	Pending     bool   `json:"pending"`
	Success     bool   `json:"success"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Order       struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
	Data struct {
		Message         string `json:"message"`
		TxnResponseCode string `json:"txn_response_code"`
	} `json:"data"`
	SourceData struct {
		Type    string `json:"type"`
		SubType string `json:"sub_type"`
		Pan     string `json:"pan"`
	} `json:"source_data"`
}

// InitiateRequest asks the adapter to prepare a card or wallet payment
type InitiateRequest struct {
	AmountCents         int64
	MerchantOrderNumber string
	Wallet              bool
	Customer            BillingDetails
}

// InitiateResult is the prepared payment. For wallets the key alone is
// returned; the actual debit happens later via ExecuteWalletPayment.
type InitiateResult struct {
	PaymentKey      string `json:"payment_key"`
	ProviderOrderID string `json:"provider_order_id"`
	IframeID        string `json:"iframe_id,omitempty"` // Card only
}

// WalletResult is the outcome of submitting a wallet charge
type WalletResult struct {
	TransactionID string `json:"transaction_id"`
	Pending       bool   `json:"pending"`
	RedirectURL   string `json:"redirect_url,omitempty"`
}

// TransactionStatus is the verified state of a provider transaction
type TransactionStatus struct {
	Success             bool   `json:"success"`
	Pending             bool   `json:"pending"`
	AmountCents         int64  `json:"amount_cents"`
	Currency            string `json:"currency"`
	MerchantOrderNumber string `json:"merchant_order_number"`
	FailureReason       string `json:"failure_reason,omitempty"`
}

// WebhookTransaction is the transaction object embedded in a provider
// server-to-server callback. Field names follow the provider payload.
type WebhookTransaction struct {
	ID                   int64 `json:"id"`
	Pending              bool  `json:"pending"`
	Success              bool  `json:"success"`
	AmountCents          int64 `json:"amount_cents"`
	ErrorOccured         bool  `json:"error_occured"`
	HasParentTransaction bool  `json:"has_parent_transaction"`
	IsThreeDSecure       bool  `json:"is_3d_secure"`
	IsAuth               bool  `json:"is_auth"`
	IsCapture            bool  `json:"is_capture"`
	IsRefunded           bool  `json:"is_refunded"`
	IsStandalonePayment  bool  `json:"is_standalone_payment"`
	IsVoided             bool  `json:"is_voided"`
	IntegrationID        int64 `json:"integration_id"`
	Owner                int64 `json:"owner"`
	Order                struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
	CreatedAt  string `json:"created_at"`
	Currency   string `json:"currency"`
	SourceData struct {
		Pan     string `json:"pan"`
		SubType string `json:"sub_type"`
		Type    string `json:"type"`
	} `json:"source_data"`
}

// WebhookPayload is the full callback body
type WebhookPayload struct {
	Type string             `json:"type"`
	Obj  WebhookTransaction `json:"obj"`
}
