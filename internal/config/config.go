package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultRateLimitWindow = 60 * time.Second
	DefaultMaxPerIP        = 10
	DefaultMaxPerUser      = 5
)

// Settings regroupe la configuration lue depuis l'environnement
type Settings struct {
	Port                string
	BaseURL             string
	Currency            string
	StoreBackend        string // "memory" ou "redis"
	StripeSecretKey     string
	StripeWebhookSecret string
	JWTSecret           string
	CORSOrigins         []string

	RateLimitWindow time.Duration
	MaxPerIP        int
	MaxPerUser      int

	RedisHost     string
	RedisPassword string

	ScyllaHosts            []string
	ScyllaOrdersKeyspace   string
	ScyllaOrdersRole       string
	ScyllaOrdersPassword   string
	ScyllaProductsKeyspace string
	ScyllaProductsRole     string
	ScyllaProductsPassword string

	ElasticURL      string
	ElasticUser     string
	ElasticPassword string
	ReviewIndex     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
}

// Load charge le fichier .env s'il existe
func Load() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
}

// FromEnv construit les Settings, avec les valeurs par défaut quand une variable manque
func FromEnv() Settings {
	return Settings{
		Port:                getString("PORT", "8080"),
		BaseURL:             strings.TrimRight(getString("BASE_URL", "http://localhost:3000"), "/"),
		Currency:            strings.ToLower(getString("CURRENCY", "eur")),
		StoreBackend:        strings.ToLower(getString("STORE_BACKEND", "memory")),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CORSOrigins:         splitList(getString("CORS_ORIGINS", "http://localhost:3000")),

		RateLimitWindow: getMillis("RATE_LIMIT_WINDOW_MS", DefaultRateLimitWindow),
		MaxPerIP:        getInt("RATE_LIMIT_MAX_IP", DefaultMaxPerIP),
		MaxPerUser:      getInt("RATE_LIMIT_MAX_USER", DefaultMaxPerUser),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ScyllaHosts:            splitList(os.Getenv("SCYLLA_HOSTS")),
		ScyllaOrdersKeyspace:   os.Getenv("SCYLLA_KS_ORDERS_KEYSPACE"),
		ScyllaOrdersRole:       os.Getenv("SCYLLA_KS_ORDERS_ROLE"),
		ScyllaOrdersPassword:   os.Getenv("SCYLLA_KS_ORDERS_PASSWORD"),
		ScyllaProductsKeyspace: os.Getenv("SCYLLA_KS_PRODUCTS_KEYSPACE"),
		ScyllaProductsRole:     os.Getenv("SCYLLA_KS_PRODUCTS_ROLE"),
		ScyllaProductsPassword: os.Getenv("SCYLLA_KS_PRODUCTS_PASSWORD"),

		ElasticURL:      os.Getenv("ELASTIC_URL"),
		ElasticUser:     os.Getenv("ELASTIC_USER"),
		ElasticPassword: os.Getenv("ELASTIC_PASSWORD"),
		ReviewIndex:     getString("ELASTIC_REVIEW_INDEX", "order-reviews"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		MinioBucket:    getString("MINIO_WEBHOOK_BUCKET", "stripe-events"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getString("MAIL_FROM", "noreply@localhost"),
	}
}

// IdempotencyTTL relit la variable à chaque appel pour que les tests puissent la réduire
func IdempotencyTTL() time.Duration {
	return getMillis("IDEMPOTENCY_TTL_MS", DefaultIdempotencyTTL)
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("⚠️ %s invalide (%q), valeur par défaut %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getMillis(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		log.Printf("⚠️ %s invalide (%q), valeur par défaut %s", key, raw, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
