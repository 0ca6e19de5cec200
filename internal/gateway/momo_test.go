package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

func testMoMoConfig(endpoint string) MoMoConfig {
	return MoMoConfig{
		PartnerCode: "MOMOTEST",
		AccessKey:   "access-key",
		SecretKey:   "momo-secret",
		Endpoint:    endpoint,
		RedirectURL: "https://shop.test/payment/momo_return",
		IPNURL:      "https://shop.test/payment/momo_ipn",
		Timeout:     time.Second,
	}
}

func signedMoMoCallback(secret, accessKey string, fields map[string]string) signature.Params {
	signed := signature.Params{"accessKey": accessKey}
	for _, f := range momoCallbackFields {
		signed.Set(f, fields[f])
	}
	p := signature.Params{}
	for k, v := range fields {
		p.Set(k, v)
	}
	p.Set(MoMoSignature, signature.NewSHA256(secret, signature.RawEncoding).Sign(signed))
	return p
}

func TestMoMo_PaymentURL(t *testing.T) {
	t.Run("posts a signed create request and returns payUrl", func(t *testing.T) {
		var got momoCreateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != momoCreatePath {
				t.Errorf("expected %s, got %s", momoCreatePath, r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(momoCreateResponse{
				PartnerCode: got.PartnerCode,
				OrderID:     got.OrderID,
				RequestID:   got.RequestID,
				Amount:      got.Amount,
				ResultCode:  0,
				Message:     "Successful.",
				PayURL:      "https://test-payment.momo.vn/pay/abc",
			})
		}))
		defer server.Close()

		momo := NewMoMo(testMoMoConfig(server.URL), NewClient(server.URL, server.Client()))

		payURL, err := momo.PaymentURL(context.Background(), testPaymentRequest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payURL != "https://test-payment.momo.vn/pay/abc" {
			t.Errorf("unexpected pay url %s", payURL)
		}

		if got.Amount != 680000 {
			t.Errorf("expected amount 680000, got %d", got.Amount)
		}
		if got.OrderID != testPaymentRequest().Reference {
			t.Errorf("expected orderId to be the payment reference, got %s", got.OrderID)
		}

		raw := "accessKey=access-key&amount=680000&extraData=&ipnUrl=https://shop.test/payment/momo_ipn" +
			"&orderId=" + got.OrderID + "&orderInfo=" + got.OrderInfo + "&partnerCode=MOMOTEST" +
			"&redirectUrl=https://shop.test/payment/momo_return&requestId=" + got.RequestID +
			"&requestType=captureWallet"
		codec := signature.NewSHA256("momo-secret", signature.RawEncoding)
		if err := codec.VerifyString(raw, got.Signature); err != nil {
			t.Errorf("expected signature over documented raw string: %v", err)
		}
	})

	t.Run("rejected request surfaces ErrRejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"resultCode":41,"message":"Duplicated orderId"}`))
		}))
		defer server.Close()

		momo := NewMoMo(testMoMoConfig(server.URL), NewClient(server.URL, server.Client()))

		_, err := momo.PaymentURL(context.Background(), testPaymentRequest())
		if !errors.Is(err, ErrRejected) {
			t.Errorf("expected ErrRejected, got %v", err)
		}
	})

	t.Run("slow gateway times out as unavailable", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		cfg := testMoMoConfig(server.URL)
		cfg.Timeout = 50 * time.Millisecond
		momo := NewMoMo(cfg, NewClient(server.URL, server.Client()))

		_, err := momo.PaymentURL(context.Background(), testPaymentRequest())
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("incomplete configuration", func(t *testing.T) {
		cfg := testMoMoConfig("http://unused")
		cfg.AccessKey = ""
		momo := NewMoMo(cfg, NewClient("http://unused", http.DefaultClient))

		_, err := momo.PaymentURL(context.Background(), testPaymentRequest())
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestMoMo_VerifyCallback(t *testing.T) {
	momo := NewMoMo(testMoMoConfig("http://unused"), NewClient("http://unused", http.DefaultClient))
	fields := map[string]string{
		"partnerCode":  "MOMOTEST",
		"orderId":      "8a0d3f4e2a444b4e9f7c2d7c1e0b9a11",
		"requestId":    "req-1",
		"amount":       "680000",
		"orderInfo":    "Thanh toan don hang 8a0d3f4e",
		"orderType":    "momo_wallet",
		"transId":      "4088878653",
		"resultCode":   "0",
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1792375200000",
		"extraData":    "",
	}

	t.Run("valid success callback", func(t *testing.T) {
		cb, err := momo.VerifyCallback(signedMoMoCallback("momo-secret", "access-key", fields))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cb.Outcome != OutcomeSuccess {
			t.Errorf("expected success, got %s", cb.Outcome)
		}
		if cb.Amount != 680000 || cb.TransactionID != "4088878653" || cb.RequestID != "req-1" {
			t.Errorf("unexpected callback %+v", cb)
		}
		if cb.PaidAt.UnixMilli() != 1792375200000 {
			t.Errorf("unexpected paid at %s", cb.PaidAt)
		}
	})

	t.Run("non-zero result code is a failure", func(t *testing.T) {
		failed := map[string]string{}
		for k, v := range fields {
			failed[k] = v
		}
		failed["resultCode"] = "1006"

		cb, err := momo.VerifyCallback(signedMoMoCallback("momo-secret", "access-key", failed))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cb.Outcome != OutcomeFailure || cb.ResponseCode != "1006" {
			t.Errorf("unexpected callback %+v", cb)
		}
	})

	t.Run("wrong access key in signature is rejected", func(t *testing.T) {
		_, err := momo.VerifyCallback(signedMoMoCallback("momo-secret", "other-key", fields))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("tampered result code is rejected", func(t *testing.T) {
		params := signedMoMoCallback("momo-secret", "access-key", map[string]string{
			"orderId": fields["orderId"], "amount": "680000", "resultCode": "1006",
		})
		params.Set("resultCode", "0")

		_, err := momo.VerifyCallback(params)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestMoMo_Ack(t *testing.T) {
	momo := NewMoMo(testMoMoConfig("http://unused"), NewClient("http://unused", http.DefaultClient))
	now := time.UnixMilli(1792375200123)

	ack := momo.Ack(signature.Params{"orderId": "ref", "requestId": "req"}, 0, "success", now)

	if ack.PartnerCode != "MOMOTEST" || ack.OrderID != "ref" || ack.RequestID != "req" {
		t.Errorf("unexpected ack %+v", ack)
	}
	if ack.ResponseTime != 1792375200123 {
		t.Errorf("unexpected response time %d", ack.ResponseTime)
	}
}
