package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/rkv/lib/store"
)

// Mode defines how the commands of a proposal are applied by the state machine.
type Mode uint8

const (
	ModeSingle Mode = iota // A single command.
	ModeAtomic             // All commands as one indivisible unit.
	ModeBatch              // All commands independently, in order.
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "Single"
	case ModeAtomic:
		return "Atomic"
	case ModeBatch:
		return "Batch"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Command represents a proposal to be applied by the state machine (a single entry in the raft log)
type Command struct {
	Mode Mode
	DB   uint32
	Now  int64 // proposer clock (unix ms), used for all expiration decisions of the entry
	Cmds []store.Command
}

// header: Mode + DB + Now + command count
const headerSize = 1 + 4 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := headerSize
	for _, c := range command.Cmds {
		size += 4 + len(c.Name) + 4 // NameLen + Name + ArgCount
		for _, a := range c.Args {
			size += 4 + len(a)
		}
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for the mode,
// 4 bytes for the logical database (big endian),
// 8 bytes for the proposer time (big endian),
// 4 bytes for the number of commands,
// per command: 4 bytes name length, name, 4 bytes argument count and
// per argument 4 bytes length followed by the argument data
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Mode)
	binary.BigEndian.PutUint32(result[1:5], command.DB)
	binary.BigEndian.PutUint64(result[5:13], uint64(command.Now))
	binary.BigEndian.PutUint32(result[13:17], uint32(len(command.Cmds)))

	offset := headerSize
	putString := func(s string) {
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(s)))
		offset += 4
		offset += copy(result[offset:], s)
	}

	for _, c := range command.Cmds {
		putString(c.Name)
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(c.Args)))
		offset += 4
		for _, a := range c.Args {
			putString(a)
		}
	}
	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Mode = Mode(data[0])
	command.DB = binary.BigEndian.Uint32(data[1:5])
	command.Now = int64(binary.BigEndian.Uint64(data[5:13]))
	count := binary.BigEndian.Uint32(data[13:17])

	r := reader{data: data, offset: headerSize}

	// every command needs at least 8 bytes, reject bogus counts before allocating
	if uint64(count)*8 > uint64(len(data)-headerSize) {
		return fmt.Errorf("data too short for %d commands", count)
	}

	command.Cmds = make([]store.Command, count)
	for i := range command.Cmds {
		name, err := r.string()
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		argc, err := r.uint32()
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		if uint64(argc)*4 > uint64(len(data)-r.offset) {
			return fmt.Errorf("command %d: data too short for %d arguments", i, argc)
		}
		args := make([]string, argc)
		for j := range args {
			if args[j], err = r.string(); err != nil {
				return fmt.Errorf("command %d argument %d: %w", i, j, err)
			}
		}
		command.Cmds[i] = store.Command{Name: name, Args: args}
	}

	if r.offset != len(data) {
		return fmt.Errorf("%d trailing bytes after command", len(data)-r.offset)
	}
	return nil
}

// reader reads length prefixed values from a byte slice
type reader struct {
	data   []byte
	offset int
}

func (r *reader) uint32() (uint32, error) {
	if len(r.data)-r.offset < 4 {
		return 0, fmt.Errorf("data too short at offset %d", r.offset)
	}
	v := binary.BigEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if len(r.data)-r.offset < 8 {
		return 0, fmt.Errorf("data too short at offset %d", r.offset)
	}
	v := binary.BigEndian.Uint64(r.data[r.offset : r.offset+8])
	r.offset += 8
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if len(r.data)-r.offset < 1 {
		return 0, fmt.Errorf("data too short at offset %d", r.offset)
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if uint64(len(r.data)-r.offset) < uint64(n) {
		return "", fmt.Errorf("data too short for string of length %d", n)
	}
	s := string(r.data[r.offset : r.offset+int(n)])
	r.offset += int(n)
	return s, nil
}
