// Package config loads the service configuration from the environment.
// Everything optional degrades gracefully: no Redis means no quote caching,
// no Kafka means no event publication, no carrier token means quotes fall
// back to the regional price table and shipping is disabled.
package config

import (
	"os"
	"strconv"
	"strings"
)

type MelhorEnvio struct {
	Token            string
	Env              string
	FromCEP          string
	WeightPerMeterKG float64
	PkgLengthCM      float64
	PkgWidthCM       float64
	PkgHeightCM      float64
}

type Config struct {
	Addr    string
	DBPath  string
	BaseURL string

	WebhookToken string
	AdminToken   string

	MercadoPagoToken string
	MelhorEnvio      MelhorEnvio

	ResendAPIKey string
	EmailFrom    string

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

func Load() Config {
	return Config{
		Addr:    getEnv("HTTP_ADDR", ":8080"),
		DBPath:  getEnv("DB_PATH", "./data/storefront.db"),
		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		WebhookToken: os.Getenv("MERCADOPAGO_WEBHOOK_SECRET"),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),

		MercadoPagoToken: os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
		MelhorEnvio: MelhorEnvio{
			Token:            os.Getenv("MELHOR_ENVIO_TOKEN"),
			Env:              getEnv("MELHOR_ENVIO_ENV", "sandbox"),
			FromCEP:          os.Getenv("MELHOR_ENVIO_FROM_CEP"),
			WeightPerMeterKG: getEnvFloat("WEIGHT_PER_METER_KG", 0.2),
			PkgLengthCM:      getEnvFloat("PKG_LENGTH_CM", 30),
			PkgWidthCM:       getEnvFloat("PKG_WIDTH_CM", 20),
			PkgHeightCM:      getEnvFloat("PKG_HEIGHT_CM", 5),
		},

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "pedidos@ramostecidos.com.br"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
