package delivery

import (
	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/notify"
)

// Step names a stage of the delivery pipeline.
type Step string

const (
	StepGuard        Step = "guard"
	StepDecode       Step = "decode"
	StepVariant      Step = "variant"
	StepReceiverCopy Step = "receiver_copy"
	StepSenderStatus Step = "sender_status"
	StepTokens       Step = "tokens"
	StepDedupe       Step = "dedupe"
	StepNotify       Step = "notify"
)

// Outcome reports how far one pipeline run got. Step is the last step
// reached. A run either finished, stopped early on purpose (Skipped), or
// stopped on an error (Err). A run never retries its own steps.
type Outcome struct {
	MessageID string
	Step      Step
	Skipped   bool
	Reason    string
	Err       error
	Notified  bool
	Result    notify.Result
}

// Failed reports whether the run stopped on an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

func skip(id string, step Step, reason string) Outcome {
	return Outcome{MessageID: id, Step: step, Skipped: true, Reason: reason}
}

func fail(id string, step Step, err error) Outcome {
	return Outcome{MessageID: id, Step: step, Err: err}
}

func (o Outcome) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("message_id", o.MessageID),
		zap.String("step", string(o.Step)),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	if o.Notified {
		fields = append(fields,
			zap.Int("success", o.Result.SuccessCount),
			zap.Int("failure", o.Result.FailureCount),
		)
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	return fields
}
