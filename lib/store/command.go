package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Command is a single store command in wire form: an upper-case name plus
// its arguments converted to strings.
type Command struct {
	Name string
	Args []string
}

// NewCommand creates a command from a name and arbitrary arguments.
func NewCommand(name string, args ...any) Command {
	return Command{Name: strings.ToUpper(name), Args: Args(args...)}
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Args converts command arguments to their string representation the same
// way the redis protocol does: integers and floats in decimal, byte slices
// verbatim, durations in whole seconds.
func Args(args ...any) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, Arg(arg))
	}
	return out
}

// Arg converts a single argument (see Args).
func Arg(arg any) string {
	switch v := arg.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Duration:
		return strconv.FormatInt(int64(v/time.Second), 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// --------------------------------------------------------------------------
// Command Queue (used by backends to implement Atomic and Batch)
// --------------------------------------------------------------------------

// CommandQueue is a Commander that only records commands.
// Backends hand it to the fn of Atomic/Batch and send the recorded commands
// afterward.
type CommandQueue struct {
	mu       sync.Mutex
	commands []Command
}

// Do records the command and returns the Queued placeholder.
func (q *CommandQueue) Do(_ context.Context, name string, args ...any) (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, NewCommand(name, args...))
	return Queued, nil
}

// Commands returns the recorded commands in submission order.
func (q *CommandQueue) Commands() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Command, len(q.commands))
	copy(out, q.commands)
	return out
}

// Len returns the number of recorded commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
