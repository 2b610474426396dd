// Package jaegertest decodes Agent.emitBatch datagrams for tests. The reader
// is written against jaeger.thrift with the generic thrift Read calls and is
// independent of the encoder it checks.
package jaegertest

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

type Tag struct {
	Key     string
	VType   int32
	VStr    string
	VDouble float64
	VBool   bool
	VLong   int64
	VBinary []byte
}

type Log struct {
	Timestamp int64
	Fields    []Tag
}

type Ref struct {
	RefType     int32
	TraceIDLow  int64
	TraceIDHigh int64
	SpanID      int64
}

type Span struct {
	TraceIDLow    int64
	TraceIDHigh   int64
	SpanID        int64
	ParentSpanID  int64
	OperationName string
	References    []Ref
	Flags         int32
	StartTime     int64
	Duration      int64
	Tags          []Tag
	Logs          []Log
}

// Tag returns the first tag named key.
func (s Span) Tag(key string) (Tag, bool) {
	for _, t := range s.Tags {
		if t.Key == key {
			return t, true
		}
	}
	return Tag{}, false
}

type Batch struct {
	Method      string
	MessageType thrift.TMessageType
	ServiceName string
	ProcessTags []Tag
	Spans       []Span
}

// Decode reads one datagram. Trailing bytes after the message are an error.
func Decode(packet []byte) (Batch, error) {
	buf := thrift.NewTMemoryBufferLen(len(packet))
	if _, err := buf.Write(packet); err != nil {
		return Batch{}, err
	}

	ctx := context.Background()
	p := thrift.NewTCompactProtocolConf(buf, &thrift.TConfiguration{})
	r := &reader{ctx: ctx, p: p}

	var (
		out Batch
		err error
	)
	out.Method, out.MessageType, _, err = p.ReadMessageBegin(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("read message header: %w", err)
	}

	err = r.readStruct(func(id int16, typ thrift.TType) error {
		if id != 1 || typ != thrift.STRUCT {
			return p.Skip(ctx, typ)
		}
		return r.readBatch(&out)
	})
	if err != nil {
		return Batch{}, fmt.Errorf("read emitBatch args: %w", err)
	}
	if err := p.ReadMessageEnd(ctx); err != nil {
		return Batch{}, err
	}
	if n := buf.RemainingBytes(); n != 0 {
		return Batch{}, errors.New("trailing bytes after the message")
	}

	return out, nil
}

type reader struct {
	ctx context.Context
	p   *thrift.TCompactProtocol
}

func (r *reader) readStruct(field func(id int16, typ thrift.TType) error) error {
	if _, err := r.p.ReadStructBegin(r.ctx); err != nil {
		return err
	}
	for {
		_, typ, id, err := r.p.ReadFieldBegin(r.ctx)
		if err != nil {
			return err
		}
		if typ == thrift.STOP {
			break
		}
		if err := field(id, typ); err != nil {
			return err
		}
		if err := r.p.ReadFieldEnd(r.ctx); err != nil {
			return err
		}
	}
	return r.p.ReadStructEnd(r.ctx)
}

func (r *reader) readList(elem func() error) error {
	typ, n, err := r.p.ReadListBegin(r.ctx)
	if err != nil {
		return err
	}
	if n > 0 && typ != thrift.STRUCT {
		return fmt.Errorf("unexpected list element type %v", typ)
	}
	for i := 0; i < n; i++ {
		if err := elem(); err != nil {
			return err
		}
	}
	return r.p.ReadListEnd(r.ctx)
}

func (r *reader) readBatch(out *Batch) error {
	return r.readStruct(func(id int16, typ thrift.TType) error {
		switch id {
		case 1:
			return r.readStruct(func(id int16, typ thrift.TType) error {
				switch id {
				case 1:
					v, err := r.p.ReadString(r.ctx)
					out.ServiceName = v
					return err
				case 2:
					return r.readTags(&out.ProcessTags)
				default:
					return r.p.Skip(r.ctx, typ)
				}
			})
		case 2:
			return r.readList(func() error {
				var s Span
				if err := r.readSpan(&s); err != nil {
					return err
				}
				out.Spans = append(out.Spans, s)
				return nil
			})
		default:
			return r.p.Skip(r.ctx, typ)
		}
	})
}

func (r *reader) readSpan(s *Span) error {
	return r.readStruct(func(id int16, typ thrift.TType) error {
		var err error
		switch id {
		case 1:
			s.TraceIDLow, err = r.p.ReadI64(r.ctx)
		case 2:
			s.TraceIDHigh, err = r.p.ReadI64(r.ctx)
		case 3:
			s.SpanID, err = r.p.ReadI64(r.ctx)
		case 4:
			s.ParentSpanID, err = r.p.ReadI64(r.ctx)
		case 5:
			s.OperationName, err = r.p.ReadString(r.ctx)
		case 6:
			err = r.readList(func() error {
				var ref Ref
				err := r.readStruct(func(id int16, typ thrift.TType) error {
					var err error
					switch id {
					case 1:
						ref.RefType, err = r.p.ReadI32(r.ctx)
					case 2:
						ref.TraceIDLow, err = r.p.ReadI64(r.ctx)
					case 3:
						ref.TraceIDHigh, err = r.p.ReadI64(r.ctx)
					case 4:
						ref.SpanID, err = r.p.ReadI64(r.ctx)
					default:
						err = r.p.Skip(r.ctx, typ)
					}
					return err
				})
				s.References = append(s.References, ref)
				return err
			})
		case 7:
			s.Flags, err = r.p.ReadI32(r.ctx)
		case 8:
			s.StartTime, err = r.p.ReadI64(r.ctx)
		case 9:
			s.Duration, err = r.p.ReadI64(r.ctx)
		case 10:
			err = r.readTags(&s.Tags)
		case 11:
			err = r.readList(func() error {
				var l Log
				err := r.readStruct(func(id int16, typ thrift.TType) error {
					switch id {
					case 1:
						var err error
						l.Timestamp, err = r.p.ReadI64(r.ctx)
						return err
					case 2:
						return r.readTags(&l.Fields)
					default:
						return r.p.Skip(r.ctx, typ)
					}
				})
				s.Logs = append(s.Logs, l)
				return err
			})
		default:
			err = r.p.Skip(r.ctx, typ)
		}
		return err
	})
}

func (r *reader) readTags(out *[]Tag) error {
	return r.readList(func() error {
		var tag Tag
		err := r.readStruct(func(id int16, typ thrift.TType) error {
			var err error
			switch id {
			case 1:
				tag.Key, err = r.p.ReadString(r.ctx)
			case 2:
				tag.VType, err = r.p.ReadI32(r.ctx)
			case 3:
				tag.VStr, err = r.p.ReadString(r.ctx)
			case 4:
				tag.VDouble, err = r.p.ReadDouble(r.ctx)
			case 5:
				tag.VBool, err = r.p.ReadBool(r.ctx)
			case 6:
				tag.VLong, err = r.p.ReadI64(r.ctx)
			case 7:
				tag.VBinary, err = r.p.ReadBinary(r.ctx)
			default:
				err = r.p.Skip(r.ctx, typ)
			}
			return err
		})
		*out = append(*out, tag)
		return err
	})
}
