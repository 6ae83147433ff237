package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/rkv/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasDB       byte = 1 << 0
	hasCommands byte = 1 << 1
	hasResults  byte = 1 << 2
	hasErr      byte = 1 << 3
	hasCode     byte = 1 << 4
	hasMeta     byte = 1 << 5
)

// maxNesting bounds the depth of nested array results
const maxNesting = 32

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	if msg.DB != 0 {
		flags |= hasDB
		result = binary.BigEndian.AppendUint32(result, msg.DB)
	}

	// Handle Commands
	if msg.Commands != nil {
		flags |= hasCommands
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Commands)))
		for _, c := range msg.Commands {
			result = appendString(result, c.Name)
			result = binary.BigEndian.AppendUint32(result, uint32(len(c.Args)))
			for _, arg := range c.Args {
				result = appendString(result, arg)
			}
		}
	}

	// Handle Results
	if msg.Results != nil {
		flags |= hasResults
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Results)))
		for _, r := range msg.Results {
			result = appendResult(result, r)
		}
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	if msg.Code != 0 {
		flags |= hasCode
		result = binary.BigEndian.AppendUint64(result, msg.Code)
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Meta)))
		result = append(result, msg.Meta...)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := &reader{data: data, pos: 2}

	var err error
	if flags&hasDB != 0 {
		if msg.DB, err = r.uint32("DB"); err != nil {
			return err
		}
	}

	// Read Commands if present
	if flags&hasCommands != 0 {
		n, err := r.count("commands", 8)
		if err != nil {
			return err
		}
		msg.Commands = make([]common.Command, n)
		for i := range msg.Commands {
			if msg.Commands[i], err = r.command(); err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
		}
	}

	// Read Results if present
	if flags&hasResults != 0 {
		n, err := r.count("results", 1)
		if err != nil {
			return err
		}
		msg.Results = make([]common.Result, n)
		for i := range msg.Results {
			if msg.Results[i], err = r.result(0); err != nil {
				return fmt.Errorf("result %d: %w", i, err)
			}
		}
	}

	// Read Err if present
	if flags&hasErr != 0 {
		if msg.Err, err = r.string("error"); err != nil {
			return err
		}
	}

	if flags&hasCode != 0 {
		if msg.Code, err = r.uint64("code"); err != nil {
			return err
		}
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		metaLen, err := r.uint32("meta length")
		if err != nil {
			return err
		}
		if r.pos+int(metaLen) > len(data) {
			return fmt.Errorf("data too short for meta data")
		}
		msg.Meta = make([]byte, metaLen)
		copy(msg.Meta, data[r.pos:r.pos+int(metaLen)])
		r.pos += int(metaLen)
	}

	if r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the size needed for serialization (nested results are estimated)
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.DB != 0 {
		size += 4
	}
	if msg.Commands != nil {
		size += 4
		for _, c := range msg.Commands {
			size += 8 + len(c.Name) // name + arg count
			for _, arg := range c.Args {
				size += 4 + len(arg)
			}
		}
	}
	if msg.Results != nil {
		size += 4 + 9*len(msg.Results)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// appendResult writes kind byte + payload
func appendResult(buf []byte, r common.Result) []byte {
	buf = append(buf, byte(r.Kind))
	switch r.Kind {
	case common.ResultString:
		buf = appendString(buf, r.Str)
	case common.ResultInt:
		buf = binary.BigEndian.AppendUint64(buf, uint64(r.Int))
	case common.ResultArray:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Items)))
		for _, item := range r.Items {
			buf = appendResult(buf, item)
		}
	case common.ResultError:
		buf = binary.BigEndian.AppendUint64(buf, r.Code)
		buf = appendString(buf, r.Err)
	}
	return buf
}

// reader reads length prefixed fields and reports which field was truncated
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uint32(field string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// count reads an element count and checks it against the remaining bytes,
// every element needs at least minSize bytes
func (r *reader) count(field string, minSize int) (int, error) {
	n, err := r.uint32(field + " count")
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(len(r.data)-r.pos) {
		return 0, fmt.Errorf("data too short for %d %s", n, field)
	}
	return int(n), nil
}

func (r *reader) string(field string) (string, error) {
	n, err := r.uint32(field + " length")
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", fmt.Errorf("data too short for %s data", field)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) command() (common.Command, error) {
	var c common.Command
	var err error
	if c.Name, err = r.string("command name"); err != nil {
		return c, err
	}
	n, err := r.count("arguments", 4)
	if err != nil {
		return c, err
	}
	if n == 0 {
		return c, nil
	}
	c.Args = make([]string, n)
	for i := range c.Args {
		if c.Args[i], err = r.string("argument"); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (r *reader) result(depth int) (common.Result, error) {
	if depth > maxNesting {
		return common.Result{}, fmt.Errorf("results nested deeper than %d", maxNesting)
	}
	if r.pos >= len(r.data) {
		return common.Result{}, fmt.Errorf("data too short for result kind")
	}
	res := common.Result{Kind: common.ResultKind(r.data[r.pos])}
	r.pos++

	var err error
	switch res.Kind {
	case common.ResultNil:
	case common.ResultString:
		res.Str, err = r.string("string result")
	case common.ResultInt:
		var v uint64
		v, err = r.uint64("int result")
		res.Int = int64(v)
	case common.ResultArray:
		var n int
		if n, err = r.count("array items", 1); err != nil || n == 0 {
			return res, err
		}
		res.Items = make([]common.Result, n)
		for i := range res.Items {
			if res.Items[i], err = r.result(depth + 1); err != nil {
				return res, err
			}
		}
	case common.ResultError:
		if res.Code, err = r.uint64("error code"); err != nil {
			return res, err
		}
		res.Err, err = r.string("error result")
	default:
		err = fmt.Errorf("unknown result kind %d", res.Kind)
	}
	return res, err
}
