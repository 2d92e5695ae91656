package http

import (
	"net/http"
	"time"

	"github.com/6R1M5L07H/shopcore/configs"
	"github.com/6R1M5L07H/shopcore/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type TokenHandler struct {
	cfg     configs.Config
	clients *security.ClientStore
}

func NewTokenHandler(cfg configs.Config, clients *security.ClientStore) *TokenHandler {
	return &TokenHandler{cfg: cfg, clients: clients}
}

// POST /v1/token (form)
// Accepts: client_id, client_secret
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := h.clients.Lookup(clientID)
	if !ok || !cl.Enabled || clientSecret != cl.Secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":      h.cfg.Security.Issuer,
		"aud":      h.cfg.Security.Audience,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(h.cfg.Security.TTL).Unix(),
		"clientID": clientID,
		"perms":    cl.Perms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.Security.TTL.Seconds()),
	})
}
