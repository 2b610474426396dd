// Package jaeger exports spans to a Jaeger agent as Thrift compact-encoded
// emitBatch datagrams over UDP.
package jaeger

import (
	"context"
	"errors"
	"fmt"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"github.com/apache/thrift/lib/go/thrift"
)

// DefaultMaxPacketSize keeps datagrams below the 65507-byte UDP payload limit
// with room for IP options.
const DefaultMaxPacketSize = 65000

// ErrSpanTooLarge is matched by errors reporting spans that could not fit in a
// single datagram.
var ErrSpanTooLarge = errors.New("span exceeds the maximum packet size")

// SpanTooLargeError reports how many spans of a batch were dropped because
// each of them alone exceeds the packet limit.
type SpanTooLargeError struct {
	Count int
	Limit int
}

func (e *SpanTooLargeError) Error() string {
	return fmt.Sprintf("%d span(s) exceed the maximum packet size of %d bytes", e.Count, e.Limit)
}

func (e *SpanTooLargeError) Is(target error) bool {
	return target == ErrSpanTooLarge
}

// Tag value types from jaeger.thrift.
const (
	tagString int32 = iota
	tagDouble
	tagBool
	tagLong
	tagBinary
)

// Span reference types from jaeger.thrift.
const (
	refChildOf     int32 = 0
	refFollowsFrom int32 = 1
)

const flagSampled int32 = 1

// Process describes the emitting service. It is repeated in every datagram.
type Process struct {
	ServiceName string
	Tags        []observability.Field
}

// Encoder turns span batches into Agent.emitBatch messages. It keeps no state
// between calls and is safe for concurrent use.
type Encoder struct {
	process       Process
	maxPacketSize int
}

// NewEncoder creates an encoder. A non-positive maxPacketSize selects
// DefaultMaxPacketSize.
func NewEncoder(process Process, maxPacketSize int) *Encoder {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Encoder{process: process, maxPacketSize: maxPacketSize}
}

// MaxPacketSize returns the datagram size limit.
func (e *Encoder) MaxPacketSize() int {
	return e.maxPacketSize
}

// Encode splits batch into as few datagrams as possible, each at most
// MaxPacketSize bytes and each a complete message carrying the process.
// Spans that cannot fit alone are left out and reported with a
// *SpanTooLargeError; the returned datagrams are still valid.
func (e *Encoder) Encode(batch []span.FinishedSpan) ([][]byte, error) {
	empty, err := e.packet(nil, 0)
	if err != nil {
		return nil, err
	}
	overhead := len(empty) - listHeaderLen(0)

	var (
		packets      [][]byte
		pending      [][]byte
		pendingBytes int
		tooLarge     int
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		p, err := e.packet(pending, pendingBytes)
		if err != nil {
			return err
		}
		packets = append(packets, p)
		pending, pendingBytes = nil, 0
		return nil
	}

	for _, s := range batch {
		encoded, err := encodeSpan(s)
		if err != nil {
			return nil, err
		}

		if overhead+listHeaderLen(1)+len(encoded) > e.maxPacketSize {
			tooLarge++
			continue
		}

		if overhead+listHeaderLen(len(pending)+1)+pendingBytes+len(encoded) > e.maxPacketSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		pending = append(pending, encoded)
		pendingBytes += len(encoded)
	}

	if err := flush(); err != nil {
		return nil, err
	}

	if tooLarge > 0 {
		return packets, &SpanTooLargeError{Count: tooLarge, Limit: e.maxPacketSize}
	}
	return packets, nil
}

// packet writes emitBatch_args{1: Batch{1: process, 2: spans}} around spans,
// which are already encoded span structs. Every compact struct starts its
// field deltas from zero, so encoded structs can be copied into the list.
func (e *Encoder) packet(spans [][]byte, spansLen int) ([]byte, error) {
	buf := thrift.NewTMemoryBufferLen(256 + spansLen)
	w := newWriter(buf)

	w.do(w.p.WriteMessageBegin(w.ctx, "emitBatch", thrift.ONEWAY, 0))
	w.structBegin("emitBatch_args")
	w.fieldBegin("batch", thrift.STRUCT, 1)

	w.structBegin("Batch")
	w.fieldBegin("process", thrift.STRUCT, 1)
	w.process(e.process)
	w.fieldEnd()

	w.listBegin("spans", 2, thrift.STRUCT, len(spans))
	for _, s := range spans {
		if w.err == nil {
			_, err := buf.Write(s)
			w.do(err)
		}
	}
	w.listEnd()
	w.structEnd()

	w.fieldEnd()
	w.structEnd()
	w.do(w.p.WriteMessageEnd(w.ctx))
	w.do(w.p.Flush(w.ctx))

	if w.err != nil {
		return nil, fmt.Errorf("encode jaeger batch: %w", w.err)
	}
	return buf.Bytes(), nil
}

func encodeSpan(s span.FinishedSpan) ([]byte, error) {
	buf := thrift.NewTMemoryBufferLen(128 + 32*len(s.Tags))
	w := newWriter(buf)
	w.span(s)
	w.do(w.p.Flush(w.ctx))

	if w.err != nil {
		return nil, fmt.Errorf("encode span %q: %w", s.OperationName, w.err)
	}
	return buf.Bytes(), nil
}

// listHeaderLen is the size of a compact list header for n elements.
func listHeaderLen(n int) int {
	if n <= 14 {
		return 1
	}
	size := 1
	for v := uint32(n); v >= 0x80; v >>= 7 {
		size++
	}
	return size + 1
}

// writer wraps a compact protocol and keeps the first error, so the encoding
// code reads as a flat sequence of writes.
type writer struct {
	ctx context.Context
	p   *thrift.TCompactProtocol
	err error
}

func newWriter(buf *thrift.TMemoryBuffer) *writer {
	return &writer{
		ctx: context.Background(),
		p:   thrift.NewTCompactProtocolConf(buf, &thrift.TConfiguration{}),
	}
}

func (w *writer) do(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *writer) structBegin(name string) {
	w.do(w.p.WriteStructBegin(w.ctx, name))
}

func (w *writer) structEnd() {
	w.do(w.p.WriteFieldStop(w.ctx))
	w.do(w.p.WriteStructEnd(w.ctx))
}

func (w *writer) fieldBegin(name string, typ thrift.TType, id int16) {
	w.do(w.p.WriteFieldBegin(w.ctx, name, typ, id))
}

func (w *writer) fieldEnd() {
	w.do(w.p.WriteFieldEnd(w.ctx))
}

func (w *writer) listBegin(name string, id int16, elem thrift.TType, n int) {
	w.fieldBegin(name, thrift.LIST, id)
	w.do(w.p.WriteListBegin(w.ctx, elem, n))
}

func (w *writer) listEnd() {
	w.do(w.p.WriteListEnd(w.ctx))
	w.fieldEnd()
}

func (w *writer) i32(name string, id int16, v int32) {
	w.fieldBegin(name, thrift.I32, id)
	w.do(w.p.WriteI32(w.ctx, v))
	w.fieldEnd()
}

func (w *writer) i64(name string, id int16, v int64) {
	w.fieldBegin(name, thrift.I64, id)
	w.do(w.p.WriteI64(w.ctx, v))
	w.fieldEnd()
}

func (w *writer) str(name string, id int16, v string) {
	w.fieldBegin(name, thrift.STRING, id)
	w.do(w.p.WriteString(w.ctx, v))
	w.fieldEnd()
}

func (w *writer) process(p Process) {
	w.structBegin("Process")
	w.str("serviceName", 1, p.ServiceName)
	if len(p.Tags) > 0 {
		w.tags("tags", 2, p.Tags)
	}
	w.structEnd()
}

// Jaeger has no span kind field; the role travels as a tag.
const spanKindTag = "span.kind"

func (w *writer) span(s span.FinishedSpan) {
	sc := s.Context

	w.structBegin("Span")
	w.i64("traceIdLow", 1, int64(span.TraceIDLow(sc.TraceID)))
	w.i64("traceIdHigh", 2, int64(span.TraceIDHigh(sc.TraceID)))
	w.i64("spanId", 3, int64(span.SpanIDUint64(sc.SpanID)))
	w.i64("parentSpanId", 4, int64(span.SpanIDUint64(sc.ParentSpanID)))
	w.str("operationName", 5, s.OperationName)

	if len(s.References) > 0 {
		w.listBegin("references", 6, thrift.STRUCT, len(s.References))
		for _, ref := range s.References {
			w.reference(ref)
		}
		w.listEnd()
	}

	var flags int32
	if sc.Sampled {
		flags |= flagSampled
	}
	w.i32("flags", 7, flags)
	w.i64("startTime", 8, s.StartTime.UnixMicro())
	w.i64("duration", 9, s.Duration.Microseconds())

	tags := s.Tags
	if s.Kind != observability.SpanKindUnspecified && !s.HasTag(spanKindTag) {
		tags = append(tags[:len(tags):len(tags)], observability.String(spanKindTag, s.Kind.String()))
	}
	if len(tags) > 0 {
		w.tags("tags", 10, tags)
	}

	if len(s.Logs) > 0 {
		w.listBegin("logs", 11, thrift.STRUCT, len(s.Logs))
		for _, l := range s.Logs {
			w.structBegin("Log")
			w.i64("timestamp", 1, l.Time.UnixMicro())
			w.tags("fields", 2, l.Fields)
			w.structEnd()
		}
		w.listEnd()
	}

	w.structEnd()
}

func (w *writer) reference(ref span.Reference) {
	refType := refChildOf
	if ref.Type == span.FollowsFrom {
		refType = refFollowsFrom
	}

	w.structBegin("SpanRef")
	w.i32("refType", 1, refType)
	w.i64("traceIdLow", 2, int64(span.TraceIDLow(ref.TraceID)))
	w.i64("traceIdHigh", 3, int64(span.TraceIDHigh(ref.TraceID)))
	w.i64("spanId", 4, int64(span.SpanIDUint64(ref.SpanID)))
	w.structEnd()
}

func (w *writer) tags(name string, id int16, fields []observability.Field) {
	w.listBegin(name, id, thrift.STRUCT, len(fields))
	for _, f := range fields {
		w.tag(f)
	}
	w.listEnd()
}

func (w *writer) tag(f observability.Field) {
	w.structBegin("Tag")
	w.str("key", 1, f.Key)

	switch v := f.Normalize().Value.(type) {
	case bool:
		w.i32("vType", 2, tagBool)
		w.fieldBegin("vBool", thrift.BOOL, 5)
		w.do(w.p.WriteBool(w.ctx, v))
		w.fieldEnd()
	case int64:
		w.i32("vType", 2, tagLong)
		w.i64("vLong", 6, v)
	case float64:
		w.i32("vType", 2, tagDouble)
		w.fieldBegin("vDouble", thrift.DOUBLE, 4)
		w.do(w.p.WriteDouble(w.ctx, v))
		w.fieldEnd()
	case []byte:
		w.i32("vType", 2, tagBinary)
		w.fieldBegin("vBinary", thrift.STRING, 7)
		w.do(w.p.WriteBinary(w.ctx, v))
		w.fieldEnd()
	case string:
		w.i32("vType", 2, tagString)
		w.str("vStr", 3, v)
	default:
		w.i32("vType", 2, tagString)
		w.str("vStr", 3, f.StringValue())
	}

	w.structEnd()
}
