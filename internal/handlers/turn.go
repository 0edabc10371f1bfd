package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetTURNConfig returns the ICE server list for the embedded TURN server.
// TURN servers also answer STUN, so one host covers both URLs. We advertise
// "turn:" rather than "turns:" because the relay is UDP-only; media is still
// encrypted by DTLS-SRTP.
func (h *Handlers) GetTURNConfig(c *gin.Context) {
	host := c.Request.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	creds := h.turnServer.GetCredentials()

	c.JSON(http.StatusOK, gin.H{
		"iceServers": []map[string]interface{}{
			{
				"urls": fmt.Sprintf("stun:%s:%d", host, h.config.TURNPort),
			},
			{
				"urls":       fmt.Sprintf("turn:%s:%d", host, h.config.TURNPort),
				"username":   creds.Username,
				"credential": creds.Password,
			},
		},
	})
}
