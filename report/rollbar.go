package report

import (
	"github.com/rollbar/rollbar-go"
)

// RollbarNotifier ships errors to Rollbar. The rollbar client batches and
// sends asynchronously; call Close on shutdown to flush.
type RollbarNotifier struct{}

var _ Notifier = (*RollbarNotifier)(nil)

func NewRollbarNotifier(token, environment, codeVersion string) *RollbarNotifier {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetCodeVersion(codeVersion)
	return &RollbarNotifier{}
}

func (n *RollbarNotifier) Notify(err error, fields map[string]any) {
	if err == nil {
		return
	}
	if len(fields) > 0 {
		rollbar.Error(err, map[string]interface{}(fields))
		return
	}
	rollbar.Error(err)
}

func (n *RollbarNotifier) Close() error {
	rollbar.Close()
	return nil
}
