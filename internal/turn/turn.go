package turn

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/turn/v3"
)

const credentialUsername = "webrtc-saas"

// Server wraps an embedded TURN/STUN server with long-term credentials that
// are generated once and persisted under the keys directory.
type Server struct {
	server   *turn.Server
	username string
	password string

	logger *slog.Logger
}

type Credentials struct {
	Username string
	Password string
}

func Initialize(port int, realm string, logger *slog.Logger) (*Server, error) {
	udpListener, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP listener: %w", err)
	}

	creds := loadOrGenerateCredentials(logger)

	relayIP := publicIP(logger)
	if relayIP == nil {
		relayIP = localIP(logger)
	}
	logger.Info("TURN relay address resolved", "ip", relayIP.String())

	s, err := turn.NewServer(turn.ServerConfig{
		Realm: realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			if username != creds.Username {
				return nil, false
			}
			return turn.GenerateAuthKey(username, realm, creds.Password), true
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TURN server: %w", err)
	}

	return &Server{
		server:   s,
		username: creds.Username,
		password: creds.Password,
		logger:   logger,
	}, nil
}

func (s *Server) GetCredentials() Credentials {
	return Credentials{Username: s.username, Password: s.password}
}

func (s *Server) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func loadOrGenerateCredentials(logger *slog.Logger) Credentials {
	keysDir := keysDirectory()
	usernameFile := filepath.Join(keysDir, "turn-username.key")
	passwordFile := filepath.Join(keysDir, "turn-password.key")

	if usernameData, err := os.ReadFile(usernameFile); err == nil {
		if passwordData, err := os.ReadFile(passwordFile); err == nil {
			return Credentials{
				Username: strings.TrimSpace(string(usernameData)),
				Password: strings.TrimSpace(string(passwordData)),
			}
		}
	}

	buf := make([]byte, 16)
	rand.Read(buf)
	creds := Credentials{
		Username: credentialUsername,
		Password: fmt.Sprintf("%x", buf),
	}

	if err := os.MkdirAll(keysDir, 0700); err == nil {
		os.WriteFile(usernameFile, []byte(creds.Username), 0600)
		os.WriteFile(passwordFile, []byte(creds.Password), 0600)
		logger.Info("TURN credentials saved", "dir", keysDir)
	}

	return creds
}

func keysDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "keys"
	}
	return filepath.Join(filepath.Dir(execPath), "keys")
}

// publicIP asks ipify.org for the address browsers will reach the relay on.
// Returns nil when unreachable; the caller falls back to local detection.
func publicIP(logger *slog.Logger) net.IP {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("https://api.ipify.org")
	if err != nil {
		logger.Warn("public IP lookup failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("public IP lookup failed", "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("public IP lookup failed", "error", err)
		return nil
	}

	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		logger.Warn("public IP lookup returned garbage", "body", strings.TrimSpace(string(body)))
		return nil
	}
	return ip
}

func localIP(logger *slog.Logger) net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		logger.Warn("local IP detection failed", "error", err)
		return net.ParseIP("127.0.0.1")
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP
}
