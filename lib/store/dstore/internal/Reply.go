package internal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/rkv/lib/store"
)

// reply value tags
const (
	tagNil byte = iota
	tagString
	tagInt
	tagArray
	tagError
)

// EncodeReplies serializes the replies of an applied command into the result
// data of a raft entry. Values are encoded as tag byte + payload:
// nil, string (length prefixed), int64 (8 bytes), array (count + values) and
// error (1 byte code + length prefixed message).
func EncodeReplies(replies []store.Reply) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(replies)))
	for _, r := range replies {
		if r.Err != nil {
			buf = append(buf, tagError, byte(store.CodeOf(r.Err)))
			buf = appendString(buf, errMsg(r.Err))
			continue
		}
		buf = appendValue(buf, r.Value)
	}
	return buf
}

// DecodeReplies is the inverse of EncodeReplies
func DecodeReplies(data []byte) ([]store.Reply, error) {
	r := reader{data: data}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(count) > uint64(len(data)) {
		return nil, fmt.Errorf("invalid reply count %d", count)
	}

	replies := make([]store.Reply, count)
	for i := range replies {
		tag, err := r.byte()
		if err != nil {
			return nil, err
		}
		if tag == tagError {
			code, err := r.byte()
			if err != nil {
				return nil, err
			}
			msg, err := r.string()
			if err != nil {
				return nil, err
			}
			replies[i].Err = store.NewError(store.RetCode(code), msg)
			continue
		}
		if replies[i].Value, err = readValue(&r, tag); err != nil {
			return nil, fmt.Errorf("reply %d: %w", i, err)
		}
	}
	return replies, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendValue(buf []byte, v any) []byte {
	switch v := v.(type) {
	case nil:
		return append(buf, tagNil)
	case string:
		return appendString(append(buf, tagString), v)
	case int64:
		return binary.BigEndian.AppendUint64(append(buf, tagInt), uint64(v))
	case int:
		return binary.BigEndian.AppendUint64(append(buf, tagInt), uint64(v))
	case []any:
		buf = binary.BigEndian.AppendUint32(append(buf, tagArray), uint32(len(v)))
		for _, item := range v {
			buf = appendValue(buf, item)
		}
		return buf
	case float64:
		return appendString(append(buf, tagString), strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return appendString(append(buf, tagString), fmt.Sprint(v))
	}
}

func readValue(r *reader, tag byte) (any, error) {
	switch tag {
	case tagNil:
		return nil, nil
	case tagString:
		return r.string()
	case tagInt:
		v, err := r.uint64()
		return int64(v), err
	case tagArray:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if uint64(n) > uint64(len(r.data)-r.offset) {
			return nil, fmt.Errorf("invalid array length %d", n)
		}
		items := make([]any, n)
		for i := range items {
			t, err := r.byte()
			if err != nil {
				return nil, err
			}
			if items[i], err = readValue(r, t); err != nil {
				return nil, err
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unknown reply tag %d", tag)
	}
}

// errMsg returns the message of a store error without the code prefix
func errMsg(err error) string {
	var e *store.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
