package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/acme/autocert"
)

func startServer(router *gin.Engine, cfg *config.Config, selfSigned bool, logger *slog.Logger) {
	if cfg.HTTPOnly {
		startHTTP(router, cfg, logger)
		return
	}

	if selfSigned {
		startSelfSignedHTTPS(router, cfg, logger)
		return
	}

	// Normal mode: HTTPS with Let's Encrypt.
	certsDir := getCertsDirectory()
	if err := os.MkdirAll(certsDir, 0700); err != nil {
		logger.Error("failed to create certs directory", "error", err)
		return
	}

	normalizedDomain := normalizeDomain(cfg.Domain)
	logger.Info(fmt.Sprintf("Configured domain: %s (normalized: %s)", cfg.Domain, normalizedDomain))

	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		HostPolicy: func(ctx context.Context, host string) error {
			// Silently reject other hosts to avoid log spam from scanners.
			if normalizeDomain(host) != normalizedDomain {
				return fmt.Errorf("host %q not configured (expected %q)", host, normalizedDomain)
			}
			return nil
		},
		Cache: autocert.DirCache(certsDir),
	}

	// Port 80 serves ACME challenges and redirects everything else to HTTPS.
	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/.well-known/acme-challenge/") {
			m.HTTPHandler(nil).ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+r.RequestURI, http.StatusMovedPermanently)
	})

	errorLog := log.New(newTLSErrorWriter(logger), "", log.LstdFlags)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}

	httpsServer := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      router,
		TLSConfig:    m.TLSConfig(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}

	go func() {
		logger.Info(fmt.Sprintf("HTTP server (ACME challenge & redirects) starting on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	go startCertificateRenewal(m, normalizedDomain, logger)

	logger.Info(fmt.Sprintf("HTTPS server starting on port %s for domain: %s", cfg.HTTPSPort, normalizedDomain))
	if normalizedDomain == "localhost" || normalizedDomain == "127.0.0.1" {
		logger.Warn("Let's Encrypt will not work for localhost. Use --self-signed for local development.")
	}

	if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to start HTTPS server", "error", err)
	}
}

func startHTTP(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting HTTP server", "port", cfg.HTTPPort, "frontend_uri", cfg.FrontendURI)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to start HTTP server", "error", err)
	}
}

func startSelfSignedHTTPS(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	logger.Info("Self-signed TLS enabled, generating certificate")

	hosts := []string{"localhost"}
	if cfg.Domain != "" {
		hosts = []string{cfg.Domain}
	}
	certPEM, keyPEM, err := generateSelfSignedCert(hosts)
	if err != nil {
		logger.Error("failed to generate self-signed certificate", "error", err)
		return
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		logger.Error("failed to load self-signed certificate", "error", err)
		return
	}

	httpsServer := &http.Server{
		Addr:    ":" + cfg.HTTPSPort,
		Handler: router,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		redirectHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if idx := strings.Index(host, ":"); idx != -1 {
				host = host[:idx]
			}
			target := "https://" + host + ":" + cfg.HTTPSPort + r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
		httpServer := &http.Server{
			Addr:    ":" + cfg.HTTPPort,
			Handler: redirectHandler,
		}
		logger.Info(fmt.Sprintf("HTTP redirect server starting on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil {
			logger.Error("HTTP redirect server error", "error", err)
		}
	}()

	logger.Info(fmt.Sprintf("HTTPS server (self-signed) starting on port %s", cfg.HTTPSPort))

	if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to start HTTPS server", "error", err)
	}
}

// startCertificateRenewal checks certificate expiration monthly and triggers
// renewal through the autocert manager when less than 30 days remain.
func startCertificateRenewal(m *autocert.Manager, domain string, logger *slog.Logger) {
	// Give the initial certificate time to be obtained.
	time.Sleep(30 * time.Second)

	ticker := time.NewTicker(30 * 24 * time.Hour)
	defer ticker.Stop()

	checkAndRenewCertificate(m, domain, logger)

	for range ticker.C {
		checkAndRenewCertificate(m, domain, logger)
	}
}

func checkAndRenewCertificate(m *autocert.Manager, domain string, logger *slog.Logger) {
	cert, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: domain})
	if err != nil {
		logger.Error("certificate check failed (will be obtained on next request)", "error", err)
		return
	}
	if cert == nil || len(cert.Certificate) == 0 {
		logger.Warn("no certificate found in cache (will be obtained on next request)")
		return
	}

	x509Cert := cert.Leaf
	if x509Cert == nil {
		x509Cert, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			logger.Error("failed to parse cached certificate", "error", err)
			return
		}
	}

	daysUntilExpiry := int(time.Until(x509Cert.NotAfter).Hours() / 24)
	logger.Info("certificate expiration check", "domain", domain, "days_left", daysUntilExpiry)

	if daysUntilExpiry < 30 {
		// Requesting the certificate makes autocert renew it.
		if _, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err != nil {
			logger.Error("certificate renewal failed", "error", err)
		} else {
			logger.Info("certificate renewal triggered")
		}
	}
}

func getCertsDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "certs"
	}
	return filepath.Join(filepath.Dir(execPath), "certs")
}

// normalizeDomain lowercases, trims and strips the www. prefix so host
// comparisons match what the browser sends.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}

func generateSelfSignedCert(hosts []string) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(365 * 24 * time.Hour)

	dnsNames := make([]string, 0, len(hosts))
	ipAddrs := make([]net.IP, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if idx := strings.Index(h, ":"); idx != -1 {
			h = h[:idx]
		}
		if ip := net.ParseIP(h); ip != nil {
			ipAddrs = append(ipAddrs, ip)
			continue
		}
		dnsNames = append(dnsNames, h)
	}
	if len(dnsNames) == 0 && len(ipAddrs) == 0 {
		dnsNames = []string{"localhost"}
	}

	commonName := "localhost"
	if len(dnsNames) > 0 {
		commonName = dnsNames[0]
	} else if len(ipAddrs) > 0 {
		commonName = ipAddrs[0].String()
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"WebRTC SaaS Development"},
			CommonName:   commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddrs,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	certBuffer := new(bytes.Buffer)
	if err := pem.Encode(certBuffer, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode certificate: %w", err)
	}

	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	keyBuffer := new(bytes.Buffer)
	if err := pem.Encode(keyBuffer, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	return certBuffer.Bytes(), keyBuffer.Bytes(), nil
}
