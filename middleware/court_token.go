package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/services"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const courtContextKey contextKey = "court"

// CourtToken резолвит {token} из URL в корт и кладёт его в контекст.
// Токен — единственная форма аутентификации судьи: неизвестный токен
// означает 404, без деталей, существует ли такой корт вообще.
func CourtToken(courts services.CourtService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := chi.URLParam(r, "token")

			court, err := courts.ResolveToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, services.ErrCourtNotFound) {
					http.Error(w, "court not found", http.StatusNotFound)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), courtContextKey, court)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CourtFromContext достаёт корт, положенный CourtToken.
func CourtFromContext(ctx context.Context) (*models.Court, error) {
	court, ok := ctx.Value(courtContextKey).(*models.Court)
	if !ok || court == nil {
		return nil, errors.New("court not found in request context")
	}
	return court, nil
}
