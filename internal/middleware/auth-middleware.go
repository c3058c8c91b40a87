package middleware

import (
	"errors"
	"net/http"
	"strings"

	"chat-gateway/internal/contract"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const IdentityKey = "identity"

// BearerToken reads the credential from the Authorization header, falling back
// to the token query parameter used by browser websocket clients.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func Authenticate(verifier contract.IdentityVerifier, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("auth")
	return func(c *gin.Context) {
		identity, err := verifier.Verify(c.Request.Context(), BearerToken(c.Request))
		if err != nil {
			switch {
			case errors.Is(err, contract.ErrMissingCredential):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			case errors.Is(err, contract.ErrMalformedCredential),
				errors.Is(err, contract.ErrUnknownPrincipal),
				errors.Is(err, contract.ErrAuthentication):
				log.Debug("rejected credential", zap.String("ip", c.ClientIP()), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
			default:
				log.Error("identity lookup failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (contract.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return contract.Identity{}, false
	}
	identity, ok := v.(contract.Identity)
	return identity, ok
}
