package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/authorization"
	obscontext "github.com/smallbiznis/rentledger/internal/observability/context"
)

const (
	HeaderAPIKey = "X-API-Key"

	contextActorKey = "actor"
	actorTypeAPIKey = "api_key"
)

// APIKeyRequired resolves the X-API-Key header to a configured role.
// Keys are never logged; the actor subject carries a short fingerprint.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if key == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role, ok := s.roleForKey(key)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		fingerprint := keyFingerprint(key)
		actor := authorization.Actor{
			Subject: actorTypeAPIKey + ":" + fingerprint,
			Role:    role,
		}
		c.Set(contextActorKey, actor)

		ctx := obscontext.WithActor(c.Request.Context(), actorTypeAPIKey, fingerprint)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// roleForKey compares against every configured key so the lookup time does
// not depend on which key matched.
func (s *Server) roleForKey(key string) (string, bool) {
	var (
		role  string
		found bool
	)
	for candidate, candidateRole := range s.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			role, found = candidateRole, true
		}
	}
	return role, found
}

func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
