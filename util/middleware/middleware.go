package middleware

import (
	"net/http"
	"runtime"

	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/config"
)

func Logger(next http.Handler) http.Handler {
	return m.RequestLogger(
		&m.DefaultLogFormatter{
			Logger:  log.StandardLogger(),
			NoColor: runtime.GOOS == "windows",
		})(next)
}

// Recover turns a handler panic into a 500 JSON error.
func Recover(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, err)
				if config.GetIsDebug() {
					m.PrintPrettyStack(err)
				}
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, render.M{"error": "Something went wrong!"})
			}
		}()
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
