package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

const (
	// MoMoAmountMultiplier: MoMo takes whole VND.
	MoMoAmountMultiplier = 1

	momoCreatePath     = "/v2/gateway/api/create"
	momoRequestType    = "captureWallet"
	momoLang           = "vi"
	momoResultOK       = 0
	MoMoSignature      = "signature"
	defaultMoMoTimeout = 10 * time.Second
)

// momoCallbackFields is the documented field set MoMo signs on redirect and
// IPN, besides accessKey which comes from merchant config.
var momoCallbackFields = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

type MoMoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	Timeout     time.Duration
}

// MoMo creates payments with a signed server-to-server call and verifies
// HMAC-SHA256 callbacks. Signatures use MoMo's raw (unescaped) key=value form.
type MoMo struct {
	cfg    MoMoConfig
	codec  *signature.Codec
	client *Client
}

func NewMoMo(cfg MoMoConfig, client *Client) *MoMo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMoMoTimeout
	}
	return &MoMo{
		cfg:    cfg,
		codec:  signature.NewSHA256(cfg.SecretKey, signature.RawEncoding),
		client: client,
	}
}

func (m *MoMo) Method() domain.PaymentMethod {
	return domain.PaymentMethodMoMo
}

func (m *MoMo) Validate() error {
	if m.cfg.PartnerCode == "" || m.cfg.AccessKey == "" || m.cfg.SecretKey == "" ||
		m.cfg.Endpoint == "" || m.cfg.RedirectURL == "" || m.cfg.IPNURL == "" || m.client == nil {
		return ErrConfiguration
	}
	return nil
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
}

func (m *MoMo) PaymentURL(ctx context.Context, req PaymentRequest) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	body := momoCreateRequest{
		PartnerCode: m.cfg.PartnerCode,
		RequestID:   uuid.New().String(),
		Amount:      req.Amount * MoMoAmountMultiplier,
		OrderID:     req.Reference,
		OrderInfo:   req.OrderInfo,
		RedirectURL: m.cfg.RedirectURL,
		IPNURL:      m.cfg.IPNURL,
		RequestType: momoRequestType,
		Lang:        momoLang,
	}

	params := signature.Params{}
	params.Set("accessKey", m.cfg.AccessKey)
	params.SetInt("amount", body.Amount)
	params.Set("extraData", body.ExtraData)
	params.Set("ipnUrl", body.IPNURL)
	params.Set("orderId", body.OrderID)
	params.Set("orderInfo", body.OrderInfo)
	params.Set("partnerCode", body.PartnerCode)
	params.Set("redirectUrl", body.RedirectURL)
	params.Set("requestId", body.RequestID)
	params.Set("requestType", body.RequestType)
	body.Signature = m.codec.Sign(params)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	var resp momoCreateResponse
	if err := m.client.PostJSON(ctx, momoCreatePath, body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.ResultCode != momoResultOK || resp.PayURL == "" {
		return "", fmt.Errorf("%w: resultCode %d: %s", ErrRejected, resp.ResultCode, resp.Message)
	}

	return resp.PayURL, nil
}

func (m *MoMo) VerifyCallback(params signature.Params) (*Callback, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	signed := signature.Params{"accessKey": m.cfg.AccessKey}
	for _, field := range momoCallbackFields {
		signed.Set(field, params.Get(field))
	}
	if err := m.codec.Verify(signed, params.Get(MoMoSignature)); err != nil {
		return nil, err
	}

	ref := params.Get("orderId")
	if ref == "" {
		return nil, fmt.Errorf("%w: missing orderId", ErrMalformed)
	}

	amount, err := strconv.ParseInt(params.Get("amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrMalformed, err)
	}

	resultCode, err := strconv.Atoi(params.Get("resultCode"))
	if err != nil {
		return nil, fmt.Errorf("%w: resultCode: %v", ErrMalformed, err)
	}

	cb := &Callback{
		Method:        domain.PaymentMethodMoMo,
		Reference:     ref,
		Outcome:       OutcomeFailure,
		TransactionID: params.Get("transId"),
		Amount:        amount / MoMoAmountMultiplier,
		ResponseCode:  strconv.Itoa(resultCode),
		Message:       params.Get("message"),
		RequestID:     params.Get("requestId"),
	}
	if resultCode == momoResultOK {
		cb.Outcome = OutcomeSuccess
	}
	if ms, err := strconv.ParseInt(params.Get("responseTime"), 10, 64); err == nil {
		cb.PaidAt = time.UnixMilli(ms).In(vietnamTime)
	}

	return cb, nil
}

// MoMoAck is the body the merchant answers a MoMo IPN with.
type MoMoAck struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
}

// Ack builds the IPN answer for the given merchant result code.
func (m *MoMo) Ack(params signature.Params, resultCode int, message string, now time.Time) MoMoAck {
	return MoMoAck{
		PartnerCode:  m.cfg.PartnerCode,
		OrderID:      params.Get("orderId"),
		RequestID:    params.Get("requestId"),
		ResultCode:   resultCode,
		Message:      message,
		ResponseTime: now.UnixMilli(),
	}
}
