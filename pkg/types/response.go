package types

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type SuccessEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// ListEnvelope is the success envelope for filtered list endpoints.
type ListEnvelope struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data"`
	RecordsTotal    int64  `json:"recordsTotal"`
	RecordsFiltered int64  `json:"recordsFiltered"`
}

type APIError struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Status string   `json:"status"`
	Error  APIError `json:"error"`
}
