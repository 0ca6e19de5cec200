package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

const (
	// VNPayAmountMultiplier converts VND to vnp_Amount. VNPay expects the
	// amount times 100 and nothing else.
	VNPayAmountMultiplier = 100

	vnpayVersion    = "2.1.0"
	vnpayCommand    = "pay"
	vnpayLocale     = "vn"
	vnpayCurrency   = "VND"
	vnpayOrderType  = "other"
	vnpayTimeLayout = "20060102150405"
	vnpayExpiry     = 15 * time.Minute

	VNPaySecureHash     = "vnp_SecureHash"
	VNPaySecureHashType = "vnp_SecureHashType"
)

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	URL        string
	ReturnURL  string
}

// VNPay signs redirect URLs with HMAC-SHA512 over the form-encoded,
// key-sorted parameter set.
type VNPay struct {
	cfg   VNPayConfig
	codec *signature.Codec
}

func NewVNPay(cfg VNPayConfig) *VNPay {
	return &VNPay{
		cfg:   cfg,
		codec: signature.NewSHA512(cfg.HashSecret, signature.QueryEncoding),
	}
}

func (v *VNPay) Method() domain.PaymentMethod {
	return domain.PaymentMethodVNPay
}

func (v *VNPay) Validate() error {
	if v.cfg.TmnCode == "" || v.cfg.HashSecret == "" || v.cfg.URL == "" || v.cfg.ReturnURL == "" {
		return ErrConfiguration
	}
	return nil
}

func (v *VNPay) PaymentURL(_ context.Context, req PaymentRequest) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}

	created := req.CreatedAt.In(vietnamTime)

	params := signature.Params{}
	params.Set("vnp_Version", vnpayVersion)
	params.Set("vnp_Command", vnpayCommand)
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Locale", vnpayLocale)
	params.Set("vnp_CurrCode", vnpayCurrency)
	params.Set("vnp_TxnRef", req.Reference)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", vnpayOrderType)
	params.SetInt("vnp_Amount", req.Amount*VNPayAmountMultiplier)
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", created.Format(vnpayTimeLayout))
	params.Set("vnp_ExpireDate", created.Add(vnpayExpiry).Format(vnpayTimeLayout))

	query := v.codec.Canonical(params)
	return v.cfg.URL + "?" + query + "&" + VNPaySecureHash + "=" + v.codec.SignString(query), nil
}

func (v *VNPay) VerifyCallback(params signature.Params) (*Callback, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	sig := params.Get(VNPaySecureHash)
	if err := v.codec.Verify(params.Without(VNPaySecureHash, VNPaySecureHashType), sig); err != nil {
		return nil, err
	}

	ref := params.Get("vnp_TxnRef")
	if ref == "" {
		return nil, fmt.Errorf("%w: missing vnp_TxnRef", ErrMalformed)
	}

	scaled, err := strconv.ParseInt(params.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: vnp_Amount: %v", ErrMalformed, err)
	}

	if scaled < 0 || scaled%VNPayAmountMultiplier != 0 {
		return nil, fmt.Errorf("%w: vnp_Amount %d is not a whole VND amount", ErrMalformed, scaled)
	}

	cb := &Callback{
		Method:        domain.PaymentMethodVNPay,
		Reference:     ref,
		Outcome:       OutcomeFailure,
		TransactionID: params.Get("vnp_TransactionNo"),
		Amount:        scaled / VNPayAmountMultiplier,
		ResponseCode:  params.Get("vnp_ResponseCode"),
	}

	if paid, err := time.ParseInLocation(vnpayTimeLayout, params.Get("vnp_PayDate"), vietnamTime); err == nil {
		cb.PaidAt = paid
	}

	status, hasStatus := params["vnp_TransactionStatus"]
	if cb.ResponseCode == "00" && (!hasStatus || status == "00") {
		cb.Outcome = OutcomeSuccess
	}
	cb.Message = vnpayMessage(cb.ResponseCode)

	return cb, nil
}

var vnpayResponseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Deduction successful, transaction suspected of fraud",
	"09": "Card or account not registered for internet banking",
	"10": "Card or account authentication failed too many times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Paying bank is under maintenance",
	"79": "Wrong payment password too many times",
	"99": "Unknown error",
}

func vnpayMessage(code string) string {
	if msg, ok := vnpayResponseMessages[code]; ok {
		return msg
	}
	return "VNPay response code " + code
}
