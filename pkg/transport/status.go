package transport

import (
	"fmt"
	"strings"
	"unicode/utf8"

	_ "google.golang.org/genproto/googleapis/rpc/errdetails" // registers detail types for anypb resolution
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

const (
	maxLoggedBody = 1024

	// receivedPrefix opens every line describing a rejected export.
	receivedPrefix = "OTLP metrics_exporter received "
)

// DecodeStatus parses a google.rpc.Status payload. It never panics and
// reports false for anything that is not a well-formed status.
func DecodeStatus(body []byte) (st *statuspb.Status, ok bool) {
	defer func() {
		if recover() != nil {
			st, ok = nil, false
		}
	}()

	if len(body) == 0 {
		return nil, false
	}

	decoded := &statuspb.Status{}

	err := proto.Unmarshal(body, decoded)
	if err != nil {
		return nil, false
	}

	return decoded, true
}

// FormatStatus renders a status for the log, resolving registered detail types.
// The code travels separately as the rpc.code log attribute.
func FormatStatus(st *statuspb.Status) string {
	details := make([]string, 0, len(st.GetDetails()))
	for _, detail := range st.GetDetails() {
		details = append(details, formatDetail(detail))
	}

	return fmt.Sprintf("rpc.Status{message=%s, details=[%s]}", st.GetMessage(), strings.Join(details, ", "))
}

// StatusCodeName returns the canonical name of the status code.
func StatusCodeName(st *statuspb.Status) string {
	return codes.Code(st.GetCode()).String() //nolint:gosec // status codes are small non-negative integers.
}

func formatDetail(detail *anypb.Any) string {
	msg, err := detail.UnmarshalNew()
	if err != nil {
		return fmt.Sprintf("%s(%d bytes)", detail.GetTypeUrl(), len(detail.GetValue()))
	}

	return fmt.Sprintf("%s{%s}", msg.ProtoReflect().Descriptor().FullName(), prototext.MarshalOptions{}.Format(msg))
}

// truncateBody keeps log lines bounded and valid UTF-8.
func truncateBody(body []byte) string {
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
	}

	s := string(body)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	return s
}
