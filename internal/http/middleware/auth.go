package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectLocalKey is the key the token subject is stored under in Fiber locals.
const SubjectLocalKey = "subject"

type authError struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func unauthorized(c *fiber.Ctx, message string) error {
	res := authError{}
	if rid, ok := c.Locals(RequestIDLocalKey).(string); ok {
		res.RequestID = rid
	}
	res.Error.Code = "UNAUTHORIZED"
	res.Error.Message = message
	return c.Status(fiber.StatusUnauthorized).JSON(res)
}

// BearerAuth validates an HS256 bearer token and stores its subject in locals.
// An empty secret disables authentication entirely, for local development.
func BearerAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "missing authorization header")
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return unauthorized(c, "authorization header must use the Bearer scheme")
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid or expired token")
		}

		if sub, err := token.Claims.GetSubject(); err == nil {
			c.Locals(SubjectLocalKey, sub)
		}

		return c.Next()
	}
}
