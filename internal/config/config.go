package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort     string `json:"http_port"`
	HTTPSPort    string `json:"https_port"`
	Domain       string `json:"domain"`
	DatabasePath string `json:"database_path"`
	TURNPort     int    `json:"turn_port"`
	TURNRealm    string `json:"turn_realm"`
	// http-only mode: serve plain HTTP behind an external proxy
	HTTPOnly    bool   `json:"http_only"`
	FrontendURI string `json:"frontend_uri"`

	// Loaded from env or key files, never from config.json.
	JWTSecret string     `json:"-"`
	VAPIDKeys *VAPIDKeys `json:"-"`
}

type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Load builds the configuration from config.json next to the executable (if
// present), environment variables for missing fields, and command-line flags
// on top.
func Load(httpOnly *bool) *Config {
	cfg := &Config{}

	if data, err := os.ReadFile(configFilePath()); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Printf("Warning: failed to parse config.json: %v\n", err)
			cfg = &Config{}
		} else {
			fmt.Println("NOTE: Custom configuration loaded from config.json")
		}
	}

	if cfg.HTTPPort == "" {
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
	}
	if cfg.HTTPSPort == "" {
		cfg.HTTPSPort = getEnv("HTTPS_PORT", "8443")
	}
	if cfg.Domain == "" {
		cfg.Domain = getEnv("DOMAIN", "localhost")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = getEnv("DATABASE_PATH", filepath.Join(execDir(), "signaling.db"))
	}
	if cfg.TURNPort == 0 {
		cfg.TURNPort = getEnvInt("TURN_PORT", 3478)
	}
	if cfg.TURNRealm == "" {
		cfg.TURNRealm = getEnv("TURN_REALM", "webrtc-saas")
	}
	if cfg.FrontendURI == "" {
		cfg.FrontendURI = getEnv("FRONTEND_URI", "")
	}

	if httpOnly != nil && *httpOnly {
		cfg.HTTPOnly = true
	}

	cfg.JWTSecret = loadOrGenerateJWTSecret()
	cfg.VAPIDKeys = loadVAPIDKeys()

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

func configFilePath() string {
	return filepath.Join(execDir(), "config.json")
}

func keysDirectory() string {
	return filepath.Join(execDir(), "keys")
}

func loadOrGenerateJWTSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}

	secretFile := filepath.Join(keysDirectory(), "jwt-secret.key")
	if data, err := os.ReadFile(secretFile); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret
		}
	}

	buf := make([]byte, 32)
	rand.Read(buf)
	secret := base64.URLEncoding.EncodeToString(buf)

	if err := os.MkdirAll(keysDirectory(), 0700); err == nil {
		if err := os.WriteFile(secretFile, []byte(secret), 0600); err != nil {
			fmt.Printf("Warning: failed to save JWT secret: %v\n", err)
		}
	}
	return secret
}

func loadVAPIDKeys() *VAPIDKeys {
	subject := getEnv("VAPID_SUBJECT", "mailto:admin@webrtc-saas.app")

	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if publicKey != "" && privateKey != "" {
		return &VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey, Subject: subject}
	}

	keysDir := keysDirectory()
	publicKeyFile := filepath.Join(keysDir, "vapid-public.key")
	privateKeyFile := filepath.Join(keysDir, "vapid-private.key")

	if publicData, err := os.ReadFile(publicKeyFile); err == nil {
		if privateData, err := os.ReadFile(privateKeyFile); err == nil {
			publicKey = strings.TrimSpace(string(publicData))
			privateKey = strings.TrimSpace(string(privateData))
			// The webpush library expects the raw 32-byte private key, not PKCS#8.
			if decoded, err := base64.RawURLEncoding.DecodeString(privateKey); err == nil && len(decoded) == 32 {
				return &VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey, Subject: subject}
			}
			fmt.Println("Warning: stored VAPID private key has unexpected format, regenerating")
			os.Remove(publicKeyFile)
			os.Remove(privateKeyFile)
		}
	}

	keys := generateVAPIDKeys(subject)

	if err := os.MkdirAll(keysDir, 0700); err == nil {
		os.WriteFile(publicKeyFile, []byte(keys.PublicKey), 0600)
		os.WriteFile(privateKeyFile, []byte(keys.PrivateKey), 0600)
	}
	return keys
}

func generateVAPIDKeys(subject string) *VAPIDKeys {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic("failed to generate VAPID keys: " + err.Error())
	}

	// Uncompressed public point (0x04 || X || Y), the format browsers expect.
	publicBytes := make([]byte, 65)
	publicBytes[0] = 0x04
	privateKey.PublicKey.X.FillBytes(publicBytes[1:33])
	privateKey.PublicKey.Y.FillBytes(publicBytes[33:65])

	privateBytes := make([]byte, 32)
	privateKey.D.FillBytes(privateBytes)

	return &VAPIDKeys{
		PublicKey:  base64.RawURLEncoding.EncodeToString(publicBytes),
		PrivateKey: base64.RawURLEncoding.EncodeToString(privateBytes),
		Subject:    subject,
	}
}
