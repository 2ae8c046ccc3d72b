// Package config reads process settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"paymenthub/internal/ratelimiter"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr     string
	Env      string
	LogLevel string

	Keys        KeysConfig
	Bus         BusConfig
	Addresses   AddressConfig
	Switch      SwitchConfig
	DB          DBConfig
	Auth        AuthConfig
	RateLimiter ratelimiter.Config
	MockSwitch  MockSwitchConfig

	TransactionTimeout time.Duration
	SideEffectWorkers  int
}

// KeysConfig holds base64 encoded key material. Values are parsed by the
// binaries that need them.
type KeysConfig struct {
	Client     string
	HopOut     string
	HopReturn  string
	SwitchPub  string
	SwitchPriv string
}

type BusConfig struct {
	Driver      string
	Brokers     []string
	GroupID     string
	Concurrency string
}

type AddressConfig struct {
	GatewayOut string
	GatewayIn  string
	Domestic   string
	Cardnet    string
}

type SwitchConfig struct {
	URL           string
	APIID         string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

// MockSwitchConfig only applies to the simulated switch.
type MockSwitchConfig struct {
	Addr         string
	Delay        time.Duration
	DeclineAbove float64
}

type DBConfig struct {
	Addr        string
	MaxConns    int
	MaxIdleTime string
}

type AuthConfig struct {
	BasicUser   string
	BasicPass   string
	TokenSecret string
	TokenIss    string
	SessionTTL  time.Duration
	RedisAddr   string
	// Credentials maps client id to bcrypt hash.
	Credentials map[string]string
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads .env (if any) and then the environment. Unparseable numbers and
// booleans fall back to their defaults with a notice on stdout.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:     envString("ADDR", ":8080"),
		Env:      envString("ENV", "development"),
		LogLevel: envString("LOG_LEVEL", "info"),
		Keys: KeysConfig{
			Client:     os.Getenv("CLIENT_AES_KEY"),
			HopOut:     os.Getenv("HOP_OUTBOUND_AES_KEY"),
			HopReturn:  os.Getenv("HOP_RETURN_AES_KEY"),
			SwitchPub:  os.Getenv("SWITCH_PUBLIC_KEY"),
			SwitchPriv: os.Getenv("SWITCH_PRIVATE_KEY"),
		},
		Bus: BusConfig{
			Driver:      envString("BUS_DRIVER", "kafka"),
			Brokers:     envList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:     envString("KAFKA_GROUP_ID", "paymenthub"),
			Concurrency: envString("CONSUMER_CONCURRENCY", "10-50"),
		},
		Addresses: AddressConfig{
			GatewayOut: envString("ADDR_GATEWAY_OUT", "payments.gateway.out"),
			GatewayIn:  envString("ADDR_GATEWAY_IN", "payments.gateway.in"),
			Domestic:   envString("ADDR_DOMESTIC", "payments.route.domestic"),
			Cardnet:    envString("ADDR_CARDNET", "payments.route.cardnet"),
		},
		Switch: SwitchConfig{
			URL:           envString("SWITCH_URL", "http://localhost:8090/api/transaction/process"),
			APIID:         envString("SWITCH_API_ID", "TRANSACTION_API"),
			Timeout:       envMillis("SWITCH_TIMEOUT_MS", 35*time.Second),
			RetryAttempts: envInt("SWITCH_RETRY_MAX_ATTEMPTS", 3),
			RetryDelay:    envMillis("SWITCH_RETRY_DELAY_MS", 2*time.Second),
			RetryMaxDelay: envMillis("SWITCH_RETRY_MAX_DELAY_MS", 10*time.Second),
		},
		DB: DBConfig{
			Addr:        os.Getenv("DB_ADDR"),
			MaxConns:    envInt("DB_MAX_CONNS", 30),
			MaxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		Auth: AuthConfig{
			BasicUser:   os.Getenv("AUTH_BASIC_USER"),
			BasicPass:   os.Getenv("AUTH_BASIC_PASS"),
			TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
			TokenIss:    envString("AUTH_TOKEN_ISS", "paymenthub"),
			SessionTTL:  time.Duration(envInt("SESSION_TTL_SECONDS", 86400)) * time.Second,
			RedisAddr:   os.Getenv("REDIS_ADDR"),
			Credentials: ParseCredentials(os.Getenv("CLIENT_CREDENTIALS")),
		},
		RateLimiter:        loadRateLimiter(),
		MockSwitch: MockSwitchConfig{
			Addr:         envString("MOCK_SWITCH_ADDR", ":8090"),
			Delay:        time.Duration(envInt("MOCK_SWITCH_DELAY_MS", 0)) * time.Millisecond,
			DeclineAbove: envFloat("MOCK_SWITCH_DECLINE_ABOVE", 0),
		},
		TransactionTimeout: envMillis("TRANSACTION_TIMEOUT_MS", 28*time.Second),
		SideEffectWorkers:  envInt("SIDE_EFFECT_WORKERS", 32),
	}
}

func loadRateLimiter() ratelimiter.Config {
	return ratelimiter.Config{
		RequestsPerTimeFrame: envInt("RATELIMITER_REQUESTS_COUNT", 200),
		TimeFrame:            5 * time.Second,
		Enabled:              envBool("RATE_LIMITER_ENABLED", false),
	}
}

// ParseCredentials reads "id:hash,id:hash". Entries without a colon are
// skipped. bcrypt hashes contain no commas, so the split is unambiguous.
func ParseCredentials(s string) map[string]string {
	creds := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		id, hash, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || id == "" || hash == "" {
			continue
		}
		creds[id] = hash
	}
	return creds
}

func envString(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func envList(key string, def []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, def int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %d\n", key, def)
		return def
	}
	return parsed
}

func envFloat(key string, def float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %v\n", key, def)
		return def
	}
	return parsed
}

func envBool(key string, def bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %t\n", key, def)
		return def
	}
	return parsed
}

func envMillis(key string, def time.Duration) time.Duration {
	ms := envInt(key, int(def/time.Millisecond))
	if ms <= 0 {
		fmt.Printf("Invalid %s, defaulting to %d\n", key, def/time.Millisecond)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
