package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Виды ошибок транспорта. Проверяются через errors.Is.
var (
	ErrConnectivity      = errors.New("connectivity error")
	ErrTimeout           = errors.New("request timeout")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrServer            = errors.New("server error")
	ErrNotFound          = errors.New("not found on server")
)

// TransportError - ошибка вызова сервера. Kind - один из видов выше,
// Status и Body заполнены, если сервер ответил.
type TransportError struct {
	Kind    error
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap раскрывает вид, причину и, для некорректного ответа, ErrServer:
// нераспознанный ответ сервера считается серверной ошибкой.
func (e *TransportError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrMalformedResponse {
		errs = append(errs, ErrServer)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable сообщает, может ли помочь повторный запуск синхронизации позже.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrInvalidRequest)
}

// classifyNetError раскладывает ошибку http.Client.Do по видам.
func classifyNetError(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: ErrTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: ErrTimeout, Err: err}
	}

	return &TransportError{Kind: ErrConnectivity, Err: err}
}

// serverMessage достает человекочитаемое сообщение из тела ошибки.
// huma кладет его в detail, middleware авторизации - в error.
func serverMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
