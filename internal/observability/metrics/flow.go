package metrics

import (
	"time"

	obserrors "github.com/kramabill/billing-krama/internal/observability/errors"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names emitted by the client flows.
const (
	SessionLogin       = "session.login"
	SessionRegister    = "session.register"
	SessionInvalidated = "session.invalidated"
	CartAdd            = "cart.add"
	CheckoutSubmit     = "checkout.submit"
	PaymentConfirm     = "payment.confirm"
)

// FlowMetric captures one user-facing operation for metric emission.
type FlowMetric struct {
	Name     string
	Result   string
	Duration time.Duration
	Err      error
}

// Emit records a counter tagged with the result and, when a duration is
// known, a timing under "<name>.duration".
func Emit(sink statsd.Sink, in FlowMetric) {
	if sink == nil || in.Name == "" {
		return
	}

	result := in.Result
	if result == "" {
		result = ResultFor(in.Err)
	}
	tags := map[string]string{"result": result}

	if in.Err != nil && result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(in.Name, 1, tags)

	if in.Duration > 0 {
		sink.Timing(in.Name+".duration", in.Duration, CloneTags(tags))
	}
}

// ResultFor maps an error to a result tag.
func ResultFor(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
