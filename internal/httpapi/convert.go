package httpapi

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

// ── Submission ───────────────────────────────────────────────────────────────

func submitRequestFromStruct(st *structpb.Struct) types.SubmitRequest {
	return types.SubmitRequest{
		Latitude:  structString(st, "latitude"),
		Longitude: structString(st, "longitude"),
		Accuracy:  structString(st, "accuracy"),
		Mode:      structString(st, "mode"),
		Timestamp: structString(st, "timestamp"),
	}
}

// structString reads key as a string. Numbers are accepted and formatted
// the way agents format coordinates.
func structString(st *structpb.Struct, key string) string {
	v, ok := st.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

// ── Responses ────────────────────────────────────────────────────────────────

// toStruct converts any JSON-encodable response into a Struct with the same
// field names as the JSON body.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal response")
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, errors.Wrap(err, "response to struct")
	}
	return st, nil
}
