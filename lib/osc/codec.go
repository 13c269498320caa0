// Package osc encodes and decodes OSC 1.0 messages and serves them over UDP.
package osc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrTruncated = errors.New("osc: truncated message")

type Message struct {
	Address string
	Args    []any
}

func pad(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for range pad(len(s) + 1) {
		buf = append(buf, 0)
	}
	return buf
}

func typeTag(arg any) (byte, error) {
	switch v := arg.(type) {
	case int32:
		return 'i', nil
	case float32:
		return 'f', nil
	case string:
		return 's', nil
	case []byte:
		return 'b', nil
	case int64:
		return 'h', nil
	case float64:
		return 'd', nil
	case bool:
		if v {
			return 'T', nil
		}
		return 'F', nil
	case nil:
		return 'N', nil
	}
	return 0, fmt.Errorf("osc: unsupported argument type %T", arg)
}

// Encode serializes m. Supported arguments are int32, float32, string,
// []byte, int64, float64, bool and nil.
func (m Message) Encode() ([]byte, error) {
	tags := []byte{','}
	for _, arg := range m.Args {
		tag, err := typeTag(arg)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	buf := appendString(nil, m.Address)
	buf = appendString(buf, string(tags))
	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			for range pad(len(v)) {
				buf = append(buf, 0)
			}
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) str() (string, error) {
	end := r.pos
	for end < len(r.data) && r.data[end] != 0 {
		end++
	}
	if end >= len(r.data) {
		return "", ErrTruncated
	}
	s := string(r.data[r.pos:end])
	r.pos = end + 1 + pad(end-r.pos+1)
	return s, nil
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Parse decodes one message. A message without a type tag string has no
// arguments.
func Parse(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, ErrTruncated
	}
	r := &reader{data: data}
	addr, err := r.str()
	if err != nil {
		return Message{}, err
	}
	m := Message{Address: addr}
	if r.pos >= len(data) || data[r.pos] != ',' {
		return m, nil
	}
	tags, err := r.str()
	if err != nil {
		return m, err
	}

	for _, tag := range tags[1:] {
		switch tag {
		case 'i', 'f':
			b, err := r.next(4)
			if err != nil {
				return m, err
			}
			u := binary.BigEndian.Uint32(b)
			if tag == 'i' {
				m.Args = append(m.Args, int32(u))
			} else {
				m.Args = append(m.Args, math.Float32frombits(u))
			}
		case 'h', 'd':
			b, err := r.next(8)
			if err != nil {
				return m, err
			}
			u := binary.BigEndian.Uint64(b)
			if tag == 'h' {
				m.Args = append(m.Args, int64(u))
			} else {
				m.Args = append(m.Args, math.Float64frombits(u))
			}
		case 's':
			s, err := r.str()
			if err != nil {
				return m, err
			}
			m.Args = append(m.Args, s)
		case 'b':
			b, err := r.next(4)
			if err != nil {
				return m, err
			}
			size := int(binary.BigEndian.Uint32(b))
			blob, err := r.next(size)
			if err != nil {
				return m, err
			}
			m.Args = append(m.Args, append([]byte(nil), blob...))
			r.pos = min(r.pos+pad(size), len(data))
		case 'T':
			m.Args = append(m.Args, true)
		case 'F':
			m.Args = append(m.Args, false)
		case 'N':
			m.Args = append(m.Args, nil)
		default:
			return m, fmt.Errorf("osc: unknown type tag %q", tag)
		}
	}
	return m, nil
}

// Float reads a numeric argument as float64.
func Float(arg any) (float64, bool) {
	switch v := arg.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
