package domain

import "time"

// APILog is a captured request/response exchange, joinable to a payment by
// PaymentID and to a client flow by CorrelationID.
type APILog struct {
	ID             string
	CorrelationID  string
	PaymentID      string
	Method         string
	Endpoint       string
	RequestBody    string
	ResponseStatus int
	ResponseBody   string
	LatencyMs      int64
	CreatedAt      time.Time
}

// IsSuccess reports whether the response status was 2xx.
func (l *APILog) IsSuccess() bool {
	return l.ResponseStatus >= 200 && l.ResponseStatus < 300
}

// IsError reports whether the response status was 4xx or 5xx.
func (l *APILog) IsError() bool {
	return l.ResponseStatus >= 400
}
