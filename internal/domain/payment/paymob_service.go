// internal/domain/payment/paymob_service.go
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
)

const (
	// ProviderName identifies the gateway on payment rows
	ProviderName = "paymob"

	authMaxAttempts      = 3
	paymentKeyExpiry     = 3600 // Seconds
	walletPhoneLength    = 11
	walletTrunkPrefix    = "01"
)

var (
	// ErrGateway wraps any provider-side failure
	ErrGateway = errors.New("payment gateway error")
	// ErrInvalidWalletPhone is returned for a phone number the provider would reject
	ErrInvalidWalletPhone = errors.New("invalid wallet phone number")

	nonDigits = regexp.MustCompile(`\D`)
)

// txnResponseMessages maps provider response codes to human-readable reasons
var txnResponseMessages = map[string]string{
	"INSUFFICIENT_FUNDS":     "Insufficient funds in the wallet or account",
	"AUTHENTICATION_FAILED":  "Payment authentication failed",
	"DECLINED":               "The payment was declined by the provider",
	"BLOCKED":                "The transaction was blocked by the provider",
	"USER_CANCEL":            "The payment was cancelled by the customer",
	"TIMEOUT":                "The payment timed out before it was approved",
	"NO_WALLET_FOUND":        "No wallet is registered for this phone number",
	"5":                      "The wallet balance is insufficient",
	"6051":                   "No wallet is registered for this phone number",
	"4055":                   "The payment was rejected by the customer",
}

// PaymobService talks to the Paymob Accept HTTP API
type PaymobService struct {
	config     *config.Config
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewPaymobService creates a new Paymob gateway adapter
func NewPaymobService(cfg *config.Config, log *logrus.Logger) *PaymobService {
	return &PaymobService{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.Paymob.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// Authenticate exchanges the API key for a bearer token. Transient failures
// are retried with exponential backoff; exhausting the retries is fatal.
func (p *PaymobService) Authenticate(ctx context.Context) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= authMaxAttempts; attempt++ {
		var resp authResponse
		err := p.call(ctx, http.MethodPost, "/auth/tokens", authRequest{APIKey: p.config.Paymob.APIKey}, &resp)
		if err == nil && resp.Token != "" {
			return resp.Token, nil
		}
		if err == nil {
			err = fmt.Errorf("empty token in auth response")
		}
		lastErr = err

		p.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Gateway authentication attempt failed")

		if attempt < authMaxAttempts {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("gateway authentication cancelled: %w", ctx.Err())
			}
		}
	}

	return "", fmt.Errorf("gateway authentication failed after %d attempts: %w: %v",
		authMaxAttempts, ErrGateway, lastErr)
}

// InitiatePayment prepares a card or wallet payment: authenticates, registers
// the merchant order with the provider and requests a payment key scoped to
// the method's integration. For wallets this only prepares the key; the
// debit itself needs the customer's phone via ExecuteWalletPayment.
func (p *PaymobService) InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	token, err := p.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var orderResp registerOrderResponse
	err = p.call(ctx, http.MethodPost, "/ecommerce/orders", registerOrderRequest{
		AuthToken:       token,
		DeliveryNeeded:  false,
		AmountCents:     req.AmountCents,
		Currency:        p.config.Paymob.Currency,
		MerchantOrderID: req.MerchantOrderNumber,
	}, &orderResp)
	if err != nil {
		return nil, fmt.Errorf("failed to register remote order: %w", err)
	}

	integrationID := p.config.Paymob.CardIntegrationID
	if req.Wallet {
		integrationID = p.config.Paymob.WalletIntegrationID
	}

	var keyResp paymentKeyResponse
	err = p.call(ctx, http.MethodPost, "/acceptance/payment_keys", paymentKeyRequest{
		AuthToken:     token,
		AmountCents:   req.AmountCents,
		Expiration:    paymentKeyExpiry,
		OrderID:       orderResp.ID,
		BillingData:   normalizeBilling(req.Customer),
		Currency:      p.config.Paymob.Currency,
		IntegrationID: integrationID,
	}, &keyResp)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment key: %w", err)
	}
	if keyResp.Token == "" {
		return nil, fmt.Errorf("empty payment key in provider response: %w", ErrGateway)
	}

	result := &InitiateResult{
		PaymentKey:      keyResp.Token,
		ProviderOrderID: strconv.FormatInt(orderResp.ID, 10),
	}
	if !req.Wallet {
		result.IframeID = p.config.Paymob.IframeID
	}

	return result, nil
}

// ExecuteWalletPayment submits a wallet charge for a prepared payment key.
// The outcome is either a redirect URL the customer must visit, or a pending
// flag meaning the customer approves in their wallet app and the final state
// arrives by webhook or polling.
func (p *PaymobService) ExecuteWalletPayment(ctx context.Context, paymentKey, phoneNumber string) (*WalletResult, error) {
	normalized, err := NormalizeWalletPhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	var resp walletPayResponse
	err = p.call(ctx, http.MethodPost, "/acceptance/payments/pay", walletPayRequest{
		Source:       walletSource{Identifier: normalized, Subtype: "WALLET"},
		PaymentToken: paymentKey,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to execute wallet payment: %w", err)
	}

	redirect := resp.RedirectURL
	if redirect == "" {
		redirect = resp.IframeURL
	}

	return &WalletResult{
		TransactionID: strconv.FormatInt(resp.ID, 10),
		Pending:       resp.Pending || redirect == "",
		RedirectURL:   redirect,
	}, nil
}

// VerifyTransaction fetches the provider-side state of a transaction by id
func (p *PaymobService) VerifyTransaction(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	var resp transactionResponse
	err := p.call(ctx, http.MethodGet, "/acceptance/transactions/"+transactionID, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to verify transaction %s: %w", transactionID, err)
	}

	status := &TransactionStatus{
		Success:             resp.Success,
		Pending:             resp.Pending,
		AmountCents:         resp.AmountCents,
		Currency:            resp.Currency,
		MerchantOrderNumber: resp.Order.MerchantOrderID,
	}

	if !resp.Success && !resp.Pending {
		status.FailureReason = failureReason(resp.Data.TxnResponseCode, resp.Data.Message)
	}

	return status, nil
}

// VerifyWebhookSignature recomputes the HMAC-SHA512 over the provider's
// documented field whitelist, concatenated in alphabetical order, and
// compares it against the received signature in constant time. A mismatch
// invalidates the whole callback.
func (p *PaymobService) VerifyWebhookSignature(payload *WebhookPayload, signature string) bool {
	if signature == "" || p.config.Paymob.HMACSecret == "" {
		return false
	}

	t := payload.Obj

	// Field order is fixed by the provider and must not change
	concatenated := strings.Join([]string{
		strconv.FormatInt(t.AmountCents, 10),
		t.CreatedAt,
		t.Currency,
		strconv.FormatBool(t.ErrorOccured),
		strconv.FormatBool(t.HasParentTransaction),
		strconv.FormatInt(t.ID, 10),
		strconv.FormatInt(t.IntegrationID, 10),
		strconv.FormatBool(t.IsThreeDSecure),
		strconv.FormatBool(t.IsAuth),
		strconv.FormatBool(t.IsCapture),
		strconv.FormatBool(t.IsRefunded),
		strconv.FormatBool(t.IsStandalonePayment),
		strconv.FormatBool(t.IsVoided),
		strconv.FormatInt(t.Order.ID, 10),
		strconv.FormatInt(t.Owner, 10),
		strconv.FormatBool(t.Pending),
		t.SourceData.Pan,
		t.SourceData.SubType,
		t.SourceData.Type,
		strconv.FormatBool(t.Success),
	}, "")

	mac := hmac.New(sha512.New, []byte(p.config.Paymob.HMACSecret))
	mac.Write([]byte(concatenated))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// NormalizeWalletPhone converts a phone number to the provider's required
// local format: exactly 11 digits starting with the mobile trunk prefix.
// Country-code variants (+20, 0020, 20) are stripped first.
func NormalizeWalletPhone(phone string) (string, error) {
	digits := nonDigits.ReplaceAllString(phone, "")

	switch {
	case strings.HasPrefix(digits, "0020"):
		digits = "0" + digits[4:]
	case strings.HasPrefix(digits, "20") && len(digits) > walletPhoneLength:
		digits = "0" + digits[2:]
	}

	if len(digits) != walletPhoneLength || !strings.HasPrefix(digits, walletTrunkPrefix) {
		return "", fmt.Errorf("phone %q: %w", phone, ErrInvalidWalletPhone)
	}

	return digits, nil
}

// call makes an HTTP request against the provider API
func (p *PaymobService) call(ctx context.Context, method, endpoint string, body, dest interface{}) error {
	var reqBody []byte
	var err error

	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request to %s failed: %v", ErrGateway, endpoint, err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("%w: failed to read response from %s: %v", ErrGateway, endpoint, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned status %d: %s",
			ErrGateway, endpoint, resp.StatusCode, respBody.String())
	}

	if dest != nil {
		if err := json.Unmarshal(respBody.Bytes(), dest); err != nil {
			return fmt.Errorf("%w: malformed response from %s: %v", ErrGateway, endpoint, err)
		}
	}

	return nil
}

func failureReason(code, providerMessage string) string {
	if msg, ok := txnResponseMessages[strings.ToUpper(code)]; ok {
		return msg
	}
	if msg, ok := txnResponseMessages[code]; ok {
		return msg
	}
	if providerMessage != "" {
		return providerMessage
	}
	return "The payment could not be completed"
}

func normalizeBilling(b BillingDetails) BillingDetails {
	// The provider rejects empty billing fields; it documents "NA" as the
	// placeholder for fields the merchant does not collect.
	fill := func(s *string) {
		if *s == "" {
			*s = "NA"
		}
	}
	fill(&b.FirstName)
	fill(&b.LastName)
	fill(&b.Email)
	fill(&b.PhoneNumber)
	fill(&b.Street)
	fill(&b.City)
	fill(&b.Country)
	fill(&b.Apartment)
	fill(&b.Floor)
	fill(&b.Building)
	fill(&b.PostalCode)
	fill(&b.State)
	return b
}
