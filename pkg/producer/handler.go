package producer

import (
	"go.uber.org/zap"
)

// FailureHandler is notified of delivery problems. Methods are called from
// worker goroutines, possibly several at once, and must be safe for
// concurrent use. They should return quickly: a worker does not flush again
// until the call returns.
type FailureHandler interface {
	// OnRecordFailure receives, once per flush, every record the service
	// rejected with a non-retryable code or that was still failing when the
	// retry budget ran out.
	OnRecordFailure(failed []FailedRecord)

	// OnRequestRetry is called before a failed request is sent again.
	OnRequestRetry(err error, records []Record)

	// OnRequestFailure is called when a request is abandoned: the error was
	// not retryable or the retry budget ran out.
	OnRequestFailure(err error, records []Record)
}

// NoopFailureHandler ignores every notification.
type NoopFailureHandler struct{}

func (NoopFailureHandler) OnRecordFailure([]FailedRecord)   {}
func (NoopFailureHandler) OnRequestRetry(error, []Record)   {}
func (NoopFailureHandler) OnRequestFailure(error, []Record) {}

// LogFailureHandler logs failures and carries on.
type LogFailureHandler struct {
	log *zap.SugaredLogger
}

func NewLogFailureHandler(log *zap.SugaredLogger) *LogFailureHandler {
	return &LogFailureHandler{log: log}
}

func (h *LogFailureHandler) OnRecordFailure(failed []FailedRecord) {
	codes := make(map[string]int)
	for _, f := range failed {
		codes[f.ErrorCode]++
	}
	h.log.Warnw("puts for records failed", "failed", len(failed), "errorCodes", codes)
}

// OnRequestRetry does nothing; retries are expected and logged by the worker
// at debug level.
func (h *LogFailureHandler) OnRequestRetry(error, []Record) {}

func (h *LogFailureHandler) OnRequestFailure(err error, records []Record) {
	h.log.Errorw("put records request failed", "records", len(records), "error", err)
}

// MultiFailureHandler forwards every notification to each handler in order.
type MultiFailureHandler []FailureHandler

func (m MultiFailureHandler) OnRecordFailure(failed []FailedRecord) {
	for _, h := range m {
		h.OnRecordFailure(failed)
	}
}

func (m MultiFailureHandler) OnRequestRetry(err error, records []Record) {
	for _, h := range m {
		h.OnRequestRetry(err, records)
	}
}

func (m MultiFailureHandler) OnRequestFailure(err error, records []Record) {
	for _, h := range m {
		h.OnRequestFailure(err, records)
	}
}
