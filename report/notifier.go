// Package report forwards client-side failures to an external error tracker
// for diagnostics. Reporting is best-effort and must never influence
// control flow.
package report

// Notifier receives errors that survived the client's own handling, together
// with diagnostic fields.
type Notifier interface {
	Notify(err error, fields map[string]any)
}

// Nop discards all reports.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Notify(error, map[string]any) {}
