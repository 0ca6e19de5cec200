// Package config loads service settings from the environment, after reading
// an optional .env file in the working directory.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type VNPay struct {
	TmnCode    string `envconfig:"TMN_CODE"`
	HashSecret string `envconfig:"HASH_SECRET"`
	URL        string `envconfig:"URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string `envconfig:"RETURN_URL"`
}

func (v VNPay) Complete() bool {
	return v.TmnCode != "" && v.HashSecret != "" && v.URL != "" && v.ReturnURL != ""
}

type MoMo struct {
	PartnerCode string        `envconfig:"PARTNER_CODE"`
	AccessKey   string        `envconfig:"ACCESS_KEY"`
	SecretKey   string        `envconfig:"SECRET_KEY"`
	Endpoint    string        `envconfig:"ENDPOINT" default:"https://test-payment.momo.vn"`
	RedirectURL string        `envconfig:"REDIRECT_URL"`
	IPNURL      string        `envconfig:"IPN_URL"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

func (m MoMo) Complete() bool {
	return m.PartnerCode != "" && m.AccessKey != "" && m.SecretKey != "" &&
		m.Endpoint != "" && m.RedirectURL != "" && m.IPNURL != ""
}

type Storefront struct {
	Port              string   `envconfig:"PORT" default:"8080"`
	PostgresURL       string   `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	JWTSecret         string   `envconfig:"JWT_SECRET" required:"true"`
	OTLPEndpoint      string   `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	PaymentSuccessURL string   `envconfig:"PAYMENT_SUCCESS_URL"`
	PaymentFailURL    string   `envconfig:"PAYMENT_FAIL_URL"`
	VNPay             VNPay    `envconfig:"VNP"`
	MoMo              MoMo     `envconfig:"MOMO"`
}

type Worker struct {
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID         string   `envconfig:"KAFKA_GROUP_ID" default:"notification-worker"`
	EmailServiceURL string   `envconfig:"EMAIL_SERVICE_URL" required:"true"`
	RecipientDomain string   `envconfig:"EMAIL_RECIPIENT_DOMAIN" default:"example.com"`
	OTLPEndpoint    string   `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type Email struct {
	Port         string `envconfig:"PORT" default:"8084"`
	OutboxSize   int    `envconfig:"EMAIL_OUTBOX_SIZE" default:"100"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

func LoadStorefront() (*Storefront, error) {
	var cfg Storefront
	return &cfg, load(&cfg)
}

func LoadWorker() (*Worker, error) {
	var cfg Worker
	return &cfg, load(&cfg)
}

func LoadEmail() (*Email, error) {
	var cfg Email
	return &cfg, load(&cfg)
}

func LoadMigrate() (*Migrate, error) {
	var cfg Migrate
	return &cfg, load(&cfg)
}

func load(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return envconfig.Process("", cfg)
}
