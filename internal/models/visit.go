package models

import (
	"time"
)

// VisitState - производное состояние визита. В БД хранится только пара
// (consented, resolved_at): пока resolved_at IS NULL, визит считается pending,
// то есть "отклонён" и "так и не разрешён" различимы на уровне API.
type VisitState string

const (
	VisitPending   VisitState = "pending"
	VisitDeclined  VisitState = "declined"
	VisitConsented VisitState = "consented"
)

// Причины отказа, которые присылает клиентский скрипт
const (
	DeclineReasonNotSupported     = "not_supported"
	DeclineReasonPermissionDenied = "permission_denied"
	DeclineReasonTimeout          = "timeout"
	DeclineReasonSkipped          = "skipped"
	DeclineReasonAbandoned        = "abandoned"
)

type Visit struct {
	ID            string     `json:"id"`
	LinkID        int64      `json:"link_id"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	Referer       string     `json:"referer"`
	Consented     bool       `json:"consented"`
	DeclineReason *string    `json:"decline_reason,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	Accuracy      *float64   `json:"accuracy,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// State вычисляет трёхвариантное состояние визита
func (v *Visit) State() VisitState {
	if v.ResolvedAt == nil {
		return VisitPending
	}
	if v.Consented {
		return VisitConsented
	}
	return VisitDeclined
}

// OpenVisitInput - данные, снимаемые один раз в момент редиректа
type OpenVisitInput struct {
	LinkID    int64
	IPAddress string
	UserAgent string
	Referer   string
}

// VisitOutcome - терминальный исход визита. Ровно один из двух вариантов:
// Consented=true с тремя координатами либо Consented=false с причиной.
type VisitOutcome struct {
	Consented bool
	Reason    string
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64
}
