package logging

import "go.opentelemetry.io/otel/attribute"

// PhaseKey is the attribute naming the stage of an export call that failed.
const PhaseKey = attribute.Key("phase")

// Export phases reported on failure lines.
const (
	PhaseEncode     = "encode"
	PhaseSendBytes  = "send_bytes"
	PhaseHTTPStatus = "http_status"
	PhaseRPCStatus  = "rpc_status"
	PhaseBudget     = "budget"
	PhaseShutdown   = "shutdown"
	PhaseTranslate  = "translate"
)

// Phase builds the phase attribute.
func Phase(name string) attribute.KeyValue {
	return PhaseKey.String(name)
}
