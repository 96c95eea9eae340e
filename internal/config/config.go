package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr           string
	DataServiceURL string
	FileDomain     string
	AdminEmail     string
	AdminPassword  string
	Env            string
	CORSOrigin     string
	// Redis - empty disables the shared collection-descriptor cache
	RedisURL string
	// Upload limits
	MaxImageBytes int64
	MaxPDFBytes   int64
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8686"),
		DataServiceURL: getenv("POCKETBASE_URL", "http://localhost:8090"),
		FileDomain:     getenv("FILE_DOMAIN", getenv("POCKETBASE_URL", "http://localhost:8090")),
		AdminEmail:     getenv("ADMIN_EMAIL", ""),
		AdminPassword:  getenv("ADMIN_PASSWORD", ""),
		Env:            getenv("APP_ENV", "development"),
		CORSOrigin:     getenv("CORS_ORIGIN", "*"),
		RedisURL:       getenv("REDIS_URL", ""),
		MaxImageBytes:  int64(getenvInt("UPLOAD_MAX_IMAGE_MB", 10)) << 20,
		MaxPDFBytes:    int64(getenvInt("UPLOAD_MAX_PDF_MB", 50)) << 20,
	}
}

// IsProduction controls the Secure attribute on issued session cookies.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
