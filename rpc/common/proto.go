package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/rkv/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	DB       uint32    `json:"db,omitempty"`       // Logical database of the shard the commands run against
	Commands []Command `json:"commands,omitempty"` // Used for: Command (exactly one), Atomic, Batch

	// Response fields
	Results []Result `json:"results,omitempty"` // One result per command of the request
	Err     string   `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message
	Code    uint64   `json:"code,omitempty"`    // store.RetCode of Err

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// Command is the wire form of a store.Command
type Command struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// --------------------------------------------------------------------------
// Results (typed replies)
// --------------------------------------------------------------------------

// ResultKind tags the value held by a Result.
type ResultKind uint8

const (
	ResultNil ResultKind = iota
	ResultString
	ResultInt
	ResultArray
	ResultError
)

// Result is the wire form of a store.Reply. Only the field matching Kind is set.
type Result struct {
	Kind  ResultKind `json:"kind"`
	Str   string     `json:"str,omitempty"`
	Int   int64      `json:"int,omitempty"`
	Items []Result   `json:"items,omitempty"`
	Code  uint64     `json:"code,omitempty"`
	Err   string     `json:"err,omitempty"`
}

// NewResult converts a store.Reply to its wire form.
func NewResult(r store.Reply) Result {
	if r.Err != nil {
		return Result{Kind: ResultError, Code: uint64(store.CodeOf(r.Err)), Err: errMessage(r.Err)}
	}
	return valueResult(r.Value)
}

func valueResult(v any) Result {
	switch v := v.(type) {
	case nil:
		return Result{Kind: ResultNil}
	case string:
		return Result{Kind: ResultString, Str: v}
	case int64:
		return Result{Kind: ResultInt, Int: v}
	case int:
		return Result{Kind: ResultInt, Int: int64(v)}
	case []any:
		items := make([]Result, len(v))
		for i, item := range v {
			items[i] = valueResult(item)
		}
		return Result{Kind: ResultArray, Items: items}
	case float64:
		return Result{Kind: ResultString, Str: strconv.FormatFloat(v, 'f', -1, 64)}
	default:
		return Result{Kind: ResultString, Str: fmt.Sprint(v)}
	}
}

// Reply converts the result back to a store.Reply.
func (r Result) Reply() store.Reply {
	if r.Kind == ResultError {
		return store.Reply{Err: store.NewError(store.RetCode(r.Code), r.Err)}
	}
	return store.Reply{Value: r.value()}
}

func (r Result) value() any {
	switch r.Kind {
	case ResultString:
		return r.Str
	case ResultInt:
		return r.Int
	case ResultArray:
		items := make([]any, len(r.Items))
		for i, item := range r.Items {
			items[i] = item.value()
		}
		return items
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCommandRequest creates a request for a single command
func NewCommandRequest(db int, cmd store.Command) *Message {
	return &Message{
		MsgType:  MsgTCommand,
		DB:       uint32(db),
		Commands: []Command{{Name: cmd.Name, Args: cmd.Args}},
	}
}

// NewAtomicRequest creates a request whose commands are applied as one indivisible unit
func NewAtomicRequest(db int, cmds []store.Command) *Message {
	return &Message{
		MsgType:  MsgTAtomic,
		DB:       uint32(db),
		Commands: wireCommands(cmds),
	}
}

// NewBatchRequest creates a request whose commands are executed independently
func NewBatchRequest(db int, cmds []store.Command) *Message {
	return &Message{
		MsgType:  MsgTBatch,
		DB:       uint32(db),
		Commands: wireCommands(cmds),
	}
}

// NewResponse creates the response to a request of type t
func NewResponse(t MessageType, replies []store.Reply) *Message {
	results := make([]Result, len(replies))
	for i, r := range replies {
		results[i] = NewResult(r)
	}
	return &Message{
		MsgType: t,
		Results: results,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     errMessage(err),
		Code:    uint64(store.CodeOf(err)),
	}
}

// StoreCommands returns the commands of the message as store commands
func (m *Message) StoreCommands() []store.Command {
	cmds := make([]store.Command, len(m.Commands))
	for i, c := range m.Commands {
		cmds[i] = store.Command{Name: c.Name, Args: c.Args}
	}
	return cmds
}

// Replies returns the results of the message as store replies
func (m *Message) Replies() []store.Reply {
	replies := make([]store.Reply, len(m.Results))
	for i, r := range m.Results {
		replies[i] = r.Reply()
	}
	return replies
}

// Error returns the message level error of an error response, nil otherwise
func (m *Message) Error() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	return store.NewError(store.RetCode(m.Code), m.Err)
}

func wireCommands(cmds []store.Command) []Command {
	out := make([]Command, len(cmds))
	for i, c := range cmds {
		out[i] = Command{Name: c.Name, Args: c.Args}
	}
	return out
}

// errMessage returns the message of a store error without the code prefix
func errMessage(err error) string {
	var e *store.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTCommand:
		return "command"
	case MsgTAtomic:
		return "atomic"
	case MsgTBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "unknown":
		*t = MsgTUnknown
	case "success":
		*t = MsgTSuccess
	case "error":
		*t = MsgTError
	case "command":
		*t = MsgTCommand
	case "atomic":
		*t = MsgTAtomic
	case "batch":
		*t = MsgTBatch
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess
	MsgTError

	// Store operations
	MsgTCommand // a single command, executed immediately
	MsgTAtomic  // a command list applied as one unit
	MsgTBatch   // a command list executed independently in order
)
