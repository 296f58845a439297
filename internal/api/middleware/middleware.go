package middleware

import "net/http"

type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain applies middlewares right to left, so the first one listed is the
// outermost wrapper.
func Chain(f http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		f = middlewares[i](f)
	}
	return f
}
