package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, a actor.Actor) context.Context {
	return context.WithValue(ctx, callerKey{}, a)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (actor.Actor, bool) {
	a, ok := ctx.Value(callerKey{}).(actor.Actor)
	return a, ok
}

// maxBodyPeek bounds how much of a request body is buffered for id lookup.
const maxBodyPeek = 1 << 20

// ErrBodyTooLarge is returned when the resource id can only come from a
// body larger than maxBodyPeek.
var ErrBodyTooLarge = errors.New("request body too large to locate resource id")

// Middleware guards an http.Handler with need. The caller comes from the
// request context (see WithCaller). The resource id is read from the route
// pattern, then a JSON object body, then the query string. The body is
// restored for the wrapped handler.
func (g *Gate) Middleware(need Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, _ := CallerFrom(r.Context())
			req, err := fromHTTP(r, need.param())
			if err == nil {
				err = g.Check(r.Context(), caller, need, req)
			}
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromHTTP(r *http.Request, param string) (Request, error) {
	req := Request{Query: r.URL.Query()}
	if v := r.PathValue(param); v != "" {
		req.Params = map[string]string{param: v}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek+1))
	if err != nil {
		return req, fault.InvalidInput("read request body: %v", err)
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}

	if len(data) > maxBodyPeek {
		if _, ok := req.ResourceID(param); !ok {
			return req, ErrBodyTooLarge
		}
		return req, nil
	}

	var body map[string]any
	if json.Unmarshal(data, &body) == nil {
		req.Body = body
	}
	return req, nil
}

// StatusCode maps an error to an HTTP status by its fault kind.
func StatusCode(err error) int {
	if errors.Is(err, ErrBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch fault.KindOf(err) {
	case fault.ErrNotFound:
		return http.StatusNotFound
	case fault.ErrForbidden:
		return http.StatusForbidden
	case fault.ErrInvalidInput:
		return http.StatusBadRequest
	case fault.ErrInvalidState, fault.ErrInvalidTransition:
		return http.StatusConflict
	case fault.ErrExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON body with the mapped status.
// Unclassified errors are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	msg := err.Error()
	var ferr *fault.Error
	if status == http.StatusInternalServerError && !errors.As(err, &ferr) {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
