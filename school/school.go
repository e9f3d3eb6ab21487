// Package school holds the tenant-scoped resource models and their backend
// endpoint paths. JSON field names follow the backend's snake_case contract.
package school

import (
	"strings"
	"time"
)

// Resource endpoint paths. The tenant is encoded by the deployment (path or
// header), not by these constants.
const (
	StudentsEndpoint = "/api/students"
	PaymentsEndpoint = "/api/payments"
	EventsEndpoint   = "/api/events"
	ClassesEndpoint  = "/api/classes"
)

// StudentStatus is the enrollment state of a student.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentSuspended StudentStatus = "suspended"
	StudentGraduated StudentStatus = "graduated"
	StudentWithdrawn StudentStatus = "withdrawn"
)

type Student struct {
	ID         string        `json:"id"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	Email      string        `json:"email,omitempty"`
	ClassID    string        `json:"class_id,omitempty"`
	Status     StudentStatus `json:"status,omitempty"`
	EnrolledAt time.Time     `json:"enrolled_at,omitempty"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Active reports whether the student counts toward current enrollment.
func (s Student) Active() bool {
	return s.Status == StudentActive || s.Status == ""
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
)

type Payment struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency,omitempty"`
	Status      PaymentStatus `json:"status"`
	DueDate     time.Time     `json:"due_date,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
}

type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	Location string    `json:"location,omitempty"`
}

type Class struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Teacher string `json:"teacher,omitempty"`
	Room    string `json:"room,omitempty"`
}
