package auth

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/alged/giftstream/pkg/app/errors"
	apphttp "github.com/alged/giftstream/pkg/app/http"
)

// RequireAdmin builds middleware that admits requests carrying either a
// valid admin bearer token or valid mini-app init data in X-Init-Data.
func RequireAdmin(validator *JWTValidator, botToken string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if initData := r.Header.Get("X-Init-Data"); initData != "" {
				if _, err := ValidateInitData(initData, botToken, time.Now()); err != nil {
					logger.Debug("init data rejected", zap.Error(err))
					apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid init data"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token, err := TokenFromRequest(r)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "authentication required"))
				return
			}
			if _, err := validator.ValidateToken(token); err != nil {
				logger.Debug("bearer token rejected", zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
