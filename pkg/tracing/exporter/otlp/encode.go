// Package otlp exports spans to an OpenTelemetry collector with the OTLP
// trace service over gRPC.
package otlp

import (
	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

// LogEventName is the name of the span event each log record becomes.
const LogEventName = "Log entry"

const sampledFlag uint32 = 0x01

// Resource describes the emitting service.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Attributes     []observability.Field
}

// Encode maps a batch onto a single ResourceSpans with one ScopeSpans.
func Encode(res Resource, batch []span.FinishedSpan) *coltracepb.ExportTraceServiceRequest {
	spans := make([]*tracepb.Span, 0, len(batch))
	for _, s := range batch {
		spans = append(spans, encodeSpan(s))
	}

	attrs := make([]*commonpb.KeyValue, 0, 2+len(res.Attributes))
	attrs = append(attrs, stringKV("service.name", res.ServiceName))
	if res.ServiceVersion != "" {
		attrs = append(attrs, stringKV("service.version", res.ServiceVersion))
	}
	attrs = append(attrs, attributes(res.Attributes)...)

	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: &resourcepb.Resource{Attributes: attrs},
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: &commonpb.InstrumentationScope{
					Name:    res.ServiceName,
					Version: res.ServiceVersion,
				},
				Spans: spans,
			}},
		}},
	}
}

// Marshal encodes the export request for batch in protobuf wire format.
func Marshal(res Resource, batch []span.FinishedSpan) ([]byte, error) {
	return proto.Marshal(Encode(res, batch))
}

func encodeSpan(s span.FinishedSpan) *tracepb.Span {
	sc := s.Context
	traceID := sc.TraceID
	spanID := sc.SpanID

	out := &tracepb.Span{
		TraceId:           traceID[:],
		SpanId:            spanID[:],
		Name:              s.OperationName,
		Kind:              spanKind(s.Kind),
		StartTimeUnixNano: uint64(s.StartTime.UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime().UnixNano()),
		Attributes:        attributes(s.Tags),
		Status:            status(s),
	}

	if sc.Sampled {
		out.Flags = sampledFlag
	}

	if !sc.IsRoot() {
		parentID := sc.ParentSpanID
		out.ParentSpanId = parentID[:]
	}

	for _, l := range s.Logs {
		out.Events = append(out.Events, &tracepb.Span_Event{
			TimeUnixNano: uint64(l.Time.UnixNano()),
			Name:         LogEventName,
			Attributes:   stringAttributes(l.Fields),
		})
	}

	for _, ref := range s.References {
		if ref.Type != span.FollowsFrom {
			continue
		}
		refTrace, refSpan := ref.TraceID, ref.SpanID
		out.Links = append(out.Links, &tracepb.Span_Link{
			TraceId: refTrace[:],
			SpanId:  refSpan[:],
			Attributes: []*commonpb.KeyValue{
				stringKV("ref_type", ref.Type.String()),
			},
		})
	}

	return out
}

func spanKind(k observability.SpanKind) tracepb.Span_SpanKind {
	switch k {
	case observability.SpanKindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	case observability.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case observability.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case observability.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case observability.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

// status reports an error when the span carries an "error" tag that is not
// the boolean false. A string value becomes the status message.
func status(s span.FinishedSpan) *tracepb.Status {
	v, ok := s.Tag("error")
	if !ok {
		return nil
	}

	switch val := v.(type) {
	case bool:
		if !val {
			return nil
		}
		return &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR}
	case string:
		return &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR, Message: val}
	default:
		return &tracepb.Status{
			Code:    tracepb.Status_STATUS_CODE_ERROR,
			Message: observability.Field{Key: "error", Value: v}.StringValue(),
		}
	}
}

func attributes(fields []observability.Field) []*commonpb.KeyValue {
	if len(fields) == 0 {
		return nil
	}

	out := make([]*commonpb.KeyValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, &commonpb.KeyValue{Key: f.Key, Value: anyValue(f)})
	}
	return out
}

func stringAttributes(fields []observability.Field) []*commonpb.KeyValue {
	out := make([]*commonpb.KeyValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, stringKV(f.Key, f.StringValue()))
	}
	return out
}

func anyValue(f observability.Field) *commonpb.AnyValue {
	switch v := f.Normalize().Value.(type) {
	case bool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v}}
	case int64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v}}
	case float64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v}}
	case []byte:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BytesValue{BytesValue: v}}
	case string:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: f.StringValue()}}
	}
}

func stringKV(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}
