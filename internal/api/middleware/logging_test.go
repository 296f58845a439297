package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type hijackableRecorder struct {
	http.ResponseWriter
	hijacked bool
	err      error
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, h.err
}

func (h *hijackableRecorder) Flush() {
	if f, ok := h.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func TestLoggingMiddlewarePreservesHijacker(t *testing.T) {
	expectedErr := errors.New("hijack invoked")
	recorder := &hijackableRecorder{
		ResponseWriter: httptest.NewRecorder(),
		err:            expectedErr,
	}

	handlerCalled := false
	handler := Logging()(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatalf("response writer should implement http.Hijacker")
		}
		if _, _, err := hj.Hijack(); !errors.Is(err, expectedErr) {
			t.Fatalf("unexpected hijack error: %v", err)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(recorder, req)

	if !handlerCalled {
		t.Fatal("inner handler was not invoked")
	}
	if !recorder.hijacked {
		t.Fatal("underlying Hijack was not called")
	}
}

func TestChainOrdersOutsideIn(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next(w, r)
			}
		}
	}

	handler := Chain(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}, mk("first"), mk("second"))

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "handler"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("call order %v, want %v", order, want)
		}
	}
}
