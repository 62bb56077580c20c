// Package client talks to the attendance server on behalf of the device
// agent. It implements the capture package's Submitter, SettingsSource and
// StateSource.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

const (
	WireJSON     = "json"
	WireProtobuf = "protobuf"

	headerSubjectID = "X-Subject-ID"
	headerAttemptID = "X-Attempt-ID"

	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"

	maxResponseBody = 64 << 10
)

type Config struct {
	BaseURL   string
	SubjectID string
	Wire      string // WireJSON (default) or WireProtobuf
	Timeout   time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	base      string
	subjectID string
	wire      string
	http      *http.Client
}

var (
	_ capture.Submitter      = (*Client)(nil)
	_ capture.SettingsSource = (*Client)(nil)
	_ capture.StateSource    = (*Client)(nil)
)

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	wire := cfg.Wire
	if wire != WireProtobuf {
		wire = WireJSON
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		subjectID: strings.TrimSpace(cfg.SubjectID),
		wire:      wire,
		http:      hc,
	}
}

// SubjectID is the subject this client was configured for.
func (c *Client) SubjectID() string { return c.subjectID }

// RawSettings returns the server's key/value settings unparsed.
func (c *Client) RawSettings(ctx context.Context) (map[string]string, error) {
	var kv types.Settings
	if err := c.getJSON(ctx, "/v1/settings", "", &kv); err != nil {
		return nil, err
	}
	return kv, nil
}

func (c *Client) Settings(ctx context.Context) (capture.Settings, error) {
	kv, err := c.RawSettings(ctx)
	if err != nil {
		return capture.Settings{}, err
	}
	return capture.ParseSettings(kv)
}

func (c *Client) Today(ctx context.Context, subjectID string) (capture.TodayRecord, error) {
	if subjectID == "" {
		subjectID = c.subjectID
	}

	var resp types.TodayResponse
	if err := c.getJSON(ctx, "/v1/attendance/today", subjectID, &resp); err != nil {
		return capture.TodayRecord{}, err
	}

	rec := capture.TodayRecord{Date: resp.Date}
	var err error
	if rec.CheckInAt, err = parseOptionalTime(resp.JamMasuk); err != nil {
		return capture.TodayRecord{}, errors.Wrap(err, "jam_masuk")
	}
	if rec.CheckOutAt, err = parseOptionalTime(resp.JamPulang); err != nil {
		return capture.TodayRecord{}, errors.Wrap(err, "jam_pulang")
	}
	return rec, nil
}

// Submit posts one record. Coordinates travel as decimal strings. Any
// failure, including a transport error, is a *capture.SubmissionError.
// Submit never retries.
func (c *Client) Submit(ctx context.Context, s capture.Submission) (capture.Receipt, error) {
	req := SubmitRequest(s)

	body, contentType, err := c.encode(req)
	if err != nil {
		return capture.Receipt{}, &capture.SubmissionError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/attendance", bytes.NewReader(body))
	if err != nil {
		return capture.Receipt{}, &capture.SubmissionError{Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentType)
	subjectID := s.SubjectID
	if subjectID == "" {
		subjectID = c.subjectID
	}
	httpReq.Header.Set(headerSubjectID, subjectID)
	if s.AttemptID != "" {
		httpReq.Header.Set(headerAttemptID, s.AttemptID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return capture.Receipt{}, &capture.SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return capture.Receipt{}, &capture.SubmissionError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er types.ErrorResponse
		if err := c.decode(resp.Header.Get("Content-Type"), raw, &er); err != nil {
			return capture.Receipt{}, &capture.SubmissionError{Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
		}
		return capture.Receipt{}, &capture.SubmissionError{Status: resp.StatusCode, Reason: er.Message, Fields: er.Errors}
	}

	var sr types.SubmitResponse
	if err := c.decode(resp.Header.Get("Content-Type"), raw, &sr); err != nil {
		return capture.Receipt{}, &capture.SubmissionError{Status: resp.StatusCode, Err: err}
	}

	receipt := capture.Receipt{Duplicate: sr.Duplicate, Date: sr.Date}
	if sr.RecordedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, sr.RecordedAt); err == nil {
			receipt.RecordedAt = t
		}
	}
	return receipt, nil
}

// SubmitRequest renders a submission in its wire form. Floats use the
// shortest decimal that round-trips, so 0.0005 is sent as "0.0005".
func SubmitRequest(s capture.Submission) types.SubmitRequest {
	req := types.SubmitRequest{
		Latitude:  formatFloat(s.Latitude),
		Longitude: formatFloat(s.Longitude),
		Accuracy:  formatFloat(s.Accuracy),
		Mode:      string(s.Mode),
	}
	if !s.Timestamp.IsZero() {
		req.Timestamp = s.Timestamp.UTC().Format(time.RFC3339)
	}
	return req
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Client) encode(req types.SubmitRequest) ([]byte, string, error) {
	if c.wire != WireProtobuf {
		b, err := json.Marshal(req)
		return b, contentTypeJSON, err
	}

	fields := map[string]any{
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
		"accuracy":  req.Accuracy,
		"mode":      req.Mode,
	}
	if req.Timestamp != "" {
		fields["timestamp"] = req.Timestamp
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, "", errors.Wrap(err, "build struct")
	}
	b, err := proto.Marshal(st)
	return b, contentTypeProtobuf, err
}

// decode reads a JSON or protobuf Struct body into out.
func (c *Client) decode(contentType string, raw []byte, out any) error {
	if strings.HasPrefix(contentType, contentTypeProtobuf) {
		st := &structpb.Struct{}
		if err := proto.Unmarshal(raw, st); err != nil {
			return errors.Wrap(err, "unmarshal protobuf body")
		}
		b, err := protojson.Marshal(st)
		if err != nil {
			return errors.Wrap(err, "struct to json")
		}
		raw = b
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode body")
}

func (c *Client) getJSON(ctx context.Context, path, subjectID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", contentTypeJSON)
	if subjectID != "" {
		req.Header.Set(headerSubjectID, subjectID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		var er types.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Message != "" {
			return errors.Errorf("GET %s: status %d: %s", path, resp.StatusCode, er.Message)
		}
		return errors.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "decode %s", path)
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
