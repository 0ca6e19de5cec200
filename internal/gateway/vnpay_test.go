package gateway

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

func testVNPayConfig() VNPayConfig {
	return VNPayConfig{
		TmnCode:    "DEMO0001",
		HashSecret: "vnpay-secret",
		URL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.test/payment/vnpay_return",
	}
}

func testPaymentRequest() PaymentRequest {
	return PaymentRequest{
		OrderID:   "8a0d3f4e-2a44-4b4e-9f7c-2d7c1e0b9a11",
		Reference: "8a0d3f4e2a444b4e9f7c2d7c1e0b9a11",
		Amount:    680000,
		OrderInfo: "Thanh toan don hang 8a0d3f4e",
		ClientIP:  "203.0.113.7",
		CreatedAt: time.Date(2026, 10, 19, 3, 4, 5, 0, time.UTC),
	}
}

// signedVNPayCallback builds a callback the way VNPay would send it back.
func signedVNPayCallback(secret string, fields map[string]string) signature.Params {
	p := signature.Params{}
	for k, v := range fields {
		p.Set(k, v)
	}
	codec := signature.NewSHA512(secret, signature.QueryEncoding)
	p.Set(VNPaySecureHash, codec.Sign(p))
	p.Set(VNPaySecureHashType, "HmacSHA512")
	return p
}

func TestVNPay_PaymentURL(t *testing.T) {
	t.Run("builds a signed redirect with a single amount multiplier", func(t *testing.T) {
		vnp := NewVNPay(testVNPayConfig())

		raw, err := vnp.PaymentURL(context.Background(), testPaymentRequest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.HasPrefix(raw, testVNPayConfig().URL+"?") {
			t.Fatalf("unexpected base url: %s", raw)
		}

		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("failed to parse url: %v", err)
		}
		q := u.Query()

		checks := map[string]string{
			"vnp_Version":    "2.1.0",
			"vnp_Command":    "pay",
			"vnp_TmnCode":    "DEMO0001",
			"vnp_Locale":     "vn",
			"vnp_CurrCode":   "VND",
			"vnp_TxnRef":     "8a0d3f4e2a444b4e9f7c2d7c1e0b9a11",
			"vnp_OrderInfo":  "Thanh toan don hang 8a0d3f4e",
			"vnp_Amount":     "68000000",
			"vnp_ReturnUrl":  "https://shop.test/payment/vnpay_return",
			"vnp_IpAddr":     "203.0.113.7",
			"vnp_CreateDate": "20261019100405",
			"vnp_ExpireDate": "20261019101905",
		}
		for key, want := range checks {
			if got := q.Get(key); got != want {
				t.Errorf("%s: expected %q, got %q", key, want, got)
			}
		}

		last := raw[strings.LastIndex(raw, "&")+1:]
		if !strings.HasPrefix(last, "vnp_SecureHash=") {
			t.Errorf("expected vnp_SecureHash to be the final parameter, got %s", last)
		}
	})

	t.Run("signature verifies over the other fields", func(t *testing.T) {
		vnp := NewVNPay(testVNPayConfig())

		raw, err := vnp.PaymentURL(context.Background(), testPaymentRequest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		u, _ := url.Parse(raw)
		params := signature.FromValues(u.Query())

		codec := signature.NewSHA512("vnpay-secret", signature.QueryEncoding)
		if err := codec.Verify(params.Without(VNPaySecureHash), params.Get(VNPaySecureHash)); err != nil {
			t.Errorf("expected signature to verify: %v", err)
		}
	})

	t.Run("fails with incomplete configuration", func(t *testing.T) {
		cfg := testVNPayConfig()
		cfg.HashSecret = ""

		_, err := NewVNPay(cfg).PaymentURL(context.Background(), testPaymentRequest())
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestVNPay_VerifyCallback(t *testing.T) {
	vnp := NewVNPay(testVNPayConfig())
	base := map[string]string{
		"vnp_TmnCode":           "DEMO0001",
		"vnp_TxnRef":            "8a0d3f4e2a444b4e9f7c2d7c1e0b9a11",
		"vnp_Amount":            "68000000",
		"vnp_OrderInfo":         "Thanh toan don hang 8a0d3f4e",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14123456",
		"vnp_BankCode":          "NCB",
		"vnp_PayDate":           "20261019101500",
	}

	t.Run("success code maps to success", func(t *testing.T) {
		cb, err := vnp.VerifyCallback(signedVNPayCallback("vnpay-secret", base))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cb.Outcome != OutcomeSuccess {
			t.Errorf("expected success, got %s", cb.Outcome)
		}
		if cb.Amount != 680000 {
			t.Errorf("expected amount 680000, got %d", cb.Amount)
		}
		if cb.Reference != base["vnp_TxnRef"] {
			t.Errorf("unexpected reference %s", cb.Reference)
		}
		if cb.TransactionID != "14123456" {
			t.Errorf("unexpected transaction id %s", cb.TransactionID)
		}
		want := time.Date(2026, 10, 19, 3, 15, 0, 0, time.UTC)
		if !cb.PaidAt.Equal(want) {
			t.Errorf("expected paid at %s, got %s", want, cb.PaidAt)
		}
	})

	t.Run("failure code maps to failure", func(t *testing.T) {
		fields := map[string]string{}
		for k, v := range base {
			fields[k] = v
		}
		fields["vnp_ResponseCode"] = "24"
		fields["vnp_TransactionStatus"] = "02"

		cb, err := vnp.VerifyCallback(signedVNPayCallback("vnpay-secret", fields))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cb.Outcome != OutcomeFailure {
			t.Errorf("expected failure, got %s", cb.Outcome)
		}
		if cb.Message != "Customer cancelled the transaction" {
			t.Errorf("unexpected message %q", cb.Message)
		}
	})

	t.Run("response code 00 with failed transaction status is a failure", func(t *testing.T) {
		fields := map[string]string{}
		for k, v := range base {
			fields[k] = v
		}
		fields["vnp_TransactionStatus"] = "01"

		cb, err := vnp.VerifyCallback(signedVNPayCallback("vnpay-secret", fields))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cb.Outcome != OutcomeFailure {
			t.Errorf("expected failure, got %s", cb.Outcome)
		}
	})

	t.Run("tampered amount is rejected", func(t *testing.T) {
		params := signedVNPayCallback("vnpay-secret", base)
		params.Set("vnp_Amount", "100")

		_, err := vnp.VerifyCallback(params)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("signature from another secret is rejected", func(t *testing.T) {
		_, err := vnp.VerifyCallback(signedVNPayCallback("attacker", base))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		params := signedVNPayCallback("vnpay-secret", base).Without(VNPaySecureHash)

		_, err := vnp.VerifyCallback(params)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("fractional amount is malformed", func(t *testing.T) {
		fields := map[string]string{}
		for k, v := range base {
			fields[k] = v
		}
		fields["vnp_Amount"] = "68000050"

		_, err := vnp.VerifyCallback(signedVNPayCallback("vnpay-secret", fields))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})
}
