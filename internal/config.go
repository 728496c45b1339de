package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	PersistMaxRetries    int           `env:"PERSIST_MAX_RETRIES,default=3"`
	PersistRetryInterval time.Duration `env:"PERSIST_RETRY_INTERVAL,default=10ms"`

	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=15m"`
	RefreshTokenDuration time.Duration `env:"REFRESH_TOKEN_DURATION,default=720h"`
	VerificationCode     string        `env:"VERIFICATION_CODE,required=true"`

	ObserverExpiry      time.Duration `env:"OBSERVER_EXPIRY,default=5m"`
	ObserverMaxFailures int           `env:"OBSERVER_MAX_FAILURES,default=3"`
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL,default=200ms"`
	DeliveryInterval    time.Duration `env:"DELIVERY_INTERVAL,default=100ms"`
	DeliveryQueueLimit  int           `env:"DELIVERY_QUEUE_LIMIT,default=1024"`
	SendTimeout         time.Duration `env:"SEND_TIMEOUT,default=5s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	RepairInterval      time.Duration `env:"REPAIR_INTERVAL,default=1s"`

	MaxImageSize          int `env:"MAX_IMAGE_SIZE,default=10485760"`
	MaxAudioSize          int `env:"MAX_AUDIO_SIZE,default=20971520"`
	MaxVideoSize          int `env:"MAX_VIDEO_SIZE,default=104857600"`
	MaxProfilePictureSize int `env:"MAX_PROFILE_PICTURE_SIZE,default=5242880"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS,default=100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	// Comma separated, e.g. "https://app.example.com,http://localhost:3000"
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
}

// Validate rejects combinations the environment parser cannot express.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.ObserverExpiry <= 0 {
		return fmt.Errorf("OBSERVER_EXPIRY must be positive, got %s", c.ObserverExpiry)
	}
	if c.ObserverMaxFailures < 1 {
		return fmt.Errorf("OBSERVER_MAX_FAILURES must be at least 1, got %d", c.ObserverMaxFailures)
	}
	for name, interval := range map[string]time.Duration{
		"RECONCILE_INTERVAL": c.ReconcileInterval,
		"DELIVERY_INTERVAL":  c.DeliveryInterval,
		"REPAIR_INTERVAL":    c.RepairInterval,
	} {
		if interval <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, interval)
		}
	}
	if c.DeliveryQueueLimit < 1 {
		return fmt.Errorf("DELIVERY_QUEUE_LIMIT must be at least 1, got %d", c.DeliveryQueueLimit)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS into the list the CORS middleware expects.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// RenewEvery is how often a live session renews its subscriptions.
func (c Config) RenewEvery() time.Duration {
	return c.ObserverExpiry / 2
}
