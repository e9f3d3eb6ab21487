// Package dashboard aggregates the tenant's resources into the figures the
// academic, financial and overview dashboards show.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shulebook/shulebook-go/fetch"
	"github.com/shulebook/shulebook-go/internal/utils"
	"github.com/shulebook/shulebook-go/school"
)

// UpcomingEventLimit caps the events surfaced on the overview.
const UpcomingEventLimit = 5

// Overview is the aggregated dashboard state.
type Overview struct {
	TotalStudents  int
	ActiveStudents int

	CollectedCents   int64
	OutstandingCents int64
	OverdueCents     int64
	LastPaymentAt    time.Time

	UpcomingEvents []school.Event
	ClassSizes     map[string]int // class name -> active enrollment

	GeneratedAt time.Time
}

type Service struct {
	fetcher *fetch.Client
	log     zerolog.Logger
	nowTime func() time.Time
}

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) { s.nowTime = nowFunc }
}

func NewService(fetcher *fetch.Client, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("[dashboard NewService] fetch client is required")
	}

	s := &Service{
		fetcher: fetcher,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Overview fetches students, payments, events and classes concurrently and
// folds them into one aggregate. Any resource failing after its retries
// fails the whole aggregate.
func (s *Service) Overview(ctx context.Context, opts ...fetch.Option) (*Overview, error) {
	var (
		students []school.Student
		payments []school.Payment
		events   []school.Event
		classes  []school.Class
	)

	resources := []struct {
		endpoint string
		into     any
	}{
		{school.StudentsEndpoint, &students},
		{school.PaymentsEndpoint, &payments},
		{school.EventsEndpoint, &events},
		{school.ClassesEndpoint, &classes},
	}

	subs := make([]*fetch.Subscription, 0, len(resources))
	for _, r := range resources {
		sub := s.fetcher.Subscribe(r.endpoint, opts...)
		defer sub.Close()
		sub.Trigger(ctx)
		subs = append(subs, sub)
	}

	for i, r := range resources {
		snap, err := subs[i].Wait(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "dashboard: waiting for %s", r.endpoint)
		}
		if snap.State == fetch.Errored {
			return nil, errors.Wrapf(snap.Err, "dashboard: fetching %s", r.endpoint)
		}
		if err := snap.Decode(r.into); err != nil {
			return nil, errors.Wrapf(err, "dashboard: decoding %s", r.endpoint)
		}
	}

	overview := s.aggregate(students, payments, events, classes)
	s.log.Debug().
		Int("students", overview.TotalStudents).
		Int("events", len(overview.UpcomingEvents)).
		Msg("dashboard overview built")
	return overview, nil
}

func (s *Service) aggregate(students []school.Student, payments []school.Payment, events []school.Event, classes []school.Class) *Overview {
	now := s.nowTime()

	overview := &Overview{
		TotalStudents: len(students),
		ClassSizes:    make(map[string]int, len(classes)),
		GeneratedAt:   now,
	}

	className := make(map[string]string, len(classes))
	for _, c := range classes {
		className[c.ID] = c.Name
		overview.ClassSizes[c.Name] = 0
	}

	for _, st := range students {
		if !st.Active() {
			continue
		}
		overview.ActiveStudents++
		if name, ok := className[st.ClassID]; ok {
			overview.ClassSizes[name]++
		}
	}

	for _, p := range payments {
		switch p.Status {
		case school.PaymentPaid:
			overview.CollectedCents += p.AmountCents
			if paidAt := utils.Value(p.PaidAt); paidAt.After(overview.LastPaymentAt) {
				overview.LastPaymentAt = paidAt
			}
		case school.PaymentOverdue:
			overview.OverdueCents += p.AmountCents
			overview.OutstandingCents += p.AmountCents
		default:
			overview.OutstandingCents += p.AmountCents
		}
	}

	upcoming := make([]school.Event, 0, len(events))
	for _, e := range events {
		if e.StartsAt.After(now) {
			upcoming = append(upcoming, e)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartsAt.Before(upcoming[j].StartsAt) })
	if len(upcoming) > UpcomingEventLimit {
		upcoming = upcoming[:UpcomingEventLimit]
	}
	overview.UpcomingEvents = upcoming

	return overview
}
