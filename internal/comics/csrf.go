package comics

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	csrfCookie    = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
	csrfField     = "csrf_token"
	ctxCSRFKey    = "csrf_token"
	maxFormMemory = 8 << 20
)

// CSRFMiddleware keeps a random token in a cookie and rejects any unsafe
// request that does not echo it in the X-CSRF-Token header or the
// csrf_token form field.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(csrfCookie)
		if err == nil && uuid.Validate(token) != nil {
			err = http.ErrNoCookie
		}

		if isSafeMethod(c.Request.Method) {
			if err != nil {
				token = uuid.NewString()
				c.SetSameSite(http.SameSiteLaxMode)
				c.SetCookie(csrfCookie, token, 0, "/", "", c.Request.TLS != nil, true)
			}
			c.Set(ctxCSRFKey, token)
			c.Next()
			return
		}

		if err != nil {
			rejectCSRF(c)
			return
		}
		sent, err := submittedToken(c)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed form"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			rejectCSRF(c)
			return
		}
		c.Set(ctxCSRFKey, token)
		c.Next()
	}
}

func submittedToken(c *gin.Context) (string, error) {
	if t := c.GetHeader(csrfHeader); t != "" {
		return t, nil
	}
	err := c.Request.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return "", err
	}
	return c.Request.PostFormValue(csrfField), nil
}

func rejectCSRF(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "invalid CSRF token"})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// csrfToken is empty when the middleware is not installed.
func csrfToken(c *gin.Context) string {
	return c.GetString(ctxCSRFKey)
}
