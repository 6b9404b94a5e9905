package helpers

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/identity"
)

// RoleAdmin is the administrative role the reporting surface accepts in
// addition to the protocol roles.
const RoleAdmin = "admin"

var (
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "principalToken",
		Claims:        new(Claims),
	}
	appName string

	jwtExpirationDelta time.Duration
)

// Claims is the verified principal attached to every inbound call by
// the authentication layer. The core trusts it and performs no
// credential checks itself.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

// ConfigureAuth sets up the JWT middleware from config. Must be called
// once before GenerateToken or the returned middleware are used.
func ConfigureAuth(conf *core.Config) echo.MiddlewareFunc {
	appName = conf.AppName
	appJWTConfig.SigningKey = conf.SecretKey
	jwtExpirationDelta = conf.Server.JWTExpirationDelta
	return middleware.JWTWithConfig(appJWTConfig)
}

// GetPrincipalClaims builds the claims the auth layer would attach for
// a principal. Used by tests and the admin tooling.
func GetPrincipalClaims(principalID, role string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   principalID,
			ExpiresAt: now.Add(jwtExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role: role,
	}
}

// GenerateToken generates a signed JWT token string representing the principal Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GetContextClaims extracts the verified claims from the request context.
func GetContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, UnauthorizedHttpErr
}

// GetContextPrincipal returns the caller as a core.Principal.
func GetContextPrincipal(ctx echo.Context) (core.Principal, error) {
	claims, err := GetContextClaims(ctx)
	if err != nil {
		return core.Principal{}, err
	}
	return core.Principal{ID: claims.Subject, Role: claims.Role}, nil
}

// RoleMiddleware rejects callers whose verified role is not one of the
// given roles.
func RoleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := GetContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return ForbiddenHttpErr
		}
	}
}

// PresenterMiddleware allows presenters and admins.
func PresenterMiddleware() echo.MiddlewareFunc {
	return RoleMiddleware(string(identity.RolePresenter), RoleAdmin)
}

// AttendeeMiddleware allows attendees only.
func AttendeeMiddleware() echo.MiddlewareFunc {
	return RoleMiddleware(string(identity.RoleAttendee))
}
