package types

// SubmitRequest is the body of POST /v1/attendance. Coordinates travel as
// strings; the subject comes from the session (X-Subject-ID), not the body.
type SubmitRequest struct {
	Latitude  string `json:"latitude" validate:"notblank,latitude"`
	Longitude string `json:"longitude" validate:"notblank,longitude"`
	Accuracy  string `json:"accuracy" validate:"notblank,numeric,nonnegative"`
	Mode      string `json:"mode" validate:"required,oneof=masuk pulang"`
	Timestamp string `json:"timestamp,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type SubmitResponse struct {
	OK             bool     `json:"ok"`
	Duplicate      bool     `json:"duplicate"`
	Mode           string   `json:"mode"`
	Date           string   `json:"date"`
	RecordedAt     string   `json:"recorded_at"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Message        string   `json:"message"`
	ServerTime     string   `json:"server_time"`
}

// TodayResponse is the subject's record for the current school day.
// Timestamps are RFC 3339; null means not recorded yet.
type TodayResponse struct {
	Date      string  `json:"date"`
	JamMasuk  *string `json:"jam_masuk"`
	JamPulang *string `json:"jam_pulang"`
}

// ErrorResponse carries a generic message and optional field-keyed errors.
type ErrorResponse struct {
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Settings is the flat key/value attendance configuration.
type Settings map[string]string
