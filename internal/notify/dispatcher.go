// Package notify fans a data payload out to a user's push tokens.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Result counts per-token outcomes of one dispatch.
type Result struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// Transport delivers one string-valued payload to many device tokens.
type Transport interface {
	MulticastSend(ctx context.Context, tokens []string, data map[string]string) (Result, error)
}

// Dispatcher adapts payloads for a Transport and contains its failures.
type Dispatcher struct {
	transport Transport
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher sending through t.
func NewDispatcher(t Transport, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{transport: t, logger: logger}
}

// Send stringifies payload and hands it to the transport. An empty token
// list returns a zero Result without calling the transport. On a transport
// error the successes already reported are kept and every other token
// counts as failed. A panic counts every token as failed. Neither is
// returned.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, payload map[string]any) (res Result) {
	if len(tokens) == 0 {
		return Result{}
	}
	data := Stringify(payload)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("push transport panicked",
				zap.Int("tokens", len(tokens)),
				zap.Any("panic", r),
			)
			res = Result{FailureCount: len(tokens)}
		}
	}()

	res, err := d.transport.MulticastSend(ctx, tokens, data)
	if err != nil {
		success := min(max(res.SuccessCount, 0), len(tokens))
		d.logger.Error("push send failed",
			zap.Int("tokens", len(tokens)),
			zap.Int("success", success),
			zap.Error(err),
		)
		return Result{SuccessCount: success, FailureCount: len(tokens) - success}
	}

	d.logger.Info("push sent",
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount),
	)
	return res
}

// Stringify converts payload values to strings. Nil values become "".
func Stringify(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = toString(v)
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
