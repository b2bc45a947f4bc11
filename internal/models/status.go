package models

import "strings"

type Status string

const (
	StatusPending          Status = "Pending"
	StatusPackageReceived  Status = "Package Received"
	StatusProcessing       Status = "Processing"
	StatusInTransit        Status = "In Transit"
	StatusOutForDelivery   Status = "Out for Delivery"
	StatusDelivered        Status = "Delivered"
	StatusOnHold           Status = "On Hold"
	StatusDelayed          Status = "Delayed"
	StatusReturnedToSender Status = "Returned to Sender"
	StatusFailedDelivery   Status = "Failed Delivery"
)

// Statuses: полный словарь в порядке отображения в админке.
var Statuses = []Status{
	StatusPending,
	StatusPackageReceived,
	StatusProcessing,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDelivered,
	StatusOnHold,
	StatusDelayed,
	StatusReturnedToSender,
	StatusFailedDelivery,
}

type StatusClass string

const (
	StatusClassPending    StatusClass = "pending"
	StatusClassInProgress StatusClass = "in_progress"
	StatusClassDelivered  StatusClass = "delivered"
	StatusClassWarning    StatusClass = "warning"
	StatusClassFailed     StatusClass = "failed"
)

var statusByKey = func() map[string]Status {
	m := make(map[string]Status, len(Statuses))
	for _, s := range Statuses {
		m[strings.ToLower(string(s))] = s
	}
	return m
}()

// ParseStatus maps free-form input onto the vocabulary, ignoring case and
// surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusByKey[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s Status) Valid() bool {
	st, ok := statusByKey[strings.ToLower(string(s))]
	return ok && st == s
}

func (s Status) String() string { return string(s) }

func (s Status) Class() StatusClass {
	switch s {
	case StatusPending, StatusPackageReceived, StatusProcessing:
		return StatusClassPending
	case StatusInTransit, StatusOutForDelivery:
		return StatusClassInProgress
	case StatusDelivered:
		return StatusClassDelivered
	case StatusOnHold, StatusDelayed:
		return StatusClassWarning
	case StatusFailedDelivery, StatusReturnedToSender:
		return StatusClassFailed
	default:
		return StatusClassPending
	}
}

// Color is the badge palette the web console uses for a status class.
func (c StatusClass) Color() string {
	switch c {
	case StatusClassInProgress:
		return "blue"
	case StatusClassDelivered:
		return "green"
	case StatusClassWarning:
		return "yellow"
	case StatusClassFailed:
		return "red"
	default:
		return "gray"
	}
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusReturnedToSender
}

// Основная линия доставки. Движение вперёд разрешено (с пропусками), назад нельзя.
var mainLine = map[Status]int{
	StatusPending:         0,
	StatusPackageReceived: 1,
	StatusProcessing:      2,
	StatusInTransit:       3,
	StatusOutForDelivery:  4,
	StatusDelivered:       5,
}

// CanTransition reports whether an order in status from may move to status to.
// Terminal statuses only move on with an explicit reopen.
func CanTransition(from, to Status, reopen bool) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return reopen && from != to && to != StatusPending
	}
	// заметка о прогрессе без смены статуса, в том числе для Pending
	if from == to {
		return true
	}
	if to == StatusPending {
		return false
	}

	switch to {
	case StatusOnHold, StatusDelayed:
		return true
	case StatusReturnedToSender:
		return from != StatusPending
	case StatusFailedDelivery:
		return from == StatusOutForDelivery
	}

	switch from {
	case StatusOnHold, StatusDelayed:
		return true
	case StatusFailedDelivery:
		return to == StatusOutForDelivery || to == StatusInTransit
	}

	if from == StatusOutForDelivery && to == StatusInTransit {
		return true
	}
	return mainLine[to] > mainLine[from]
}
