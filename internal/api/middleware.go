package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/types"
)

func (s *ForumApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				log.Ctx(r.Context()).Error().
					Err(panicError).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic")
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware admits only requests that carry a logged-in session and
// exposes the session to the handler through the request context.
func (s *ForumApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, sess, err := s.sessions.Resolve(r)
		if err != nil {
			if errors.Is(err, types.ErrUnauthenticated) {
				log.Ctx(r.Context()).Debug().Err(err).Msg("unauthenticated request")
			}
			s.writeError(w, r, errorFromDomain(err, "Failed to resolve session."))
			return
		}

		ctx := WithSession(r.Context(), token, sess)
		ctx = log.WithLogger(ctx, log.Ctx(ctx).With().Int(log.FieldUserID, sess.UserId).Logger())
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
