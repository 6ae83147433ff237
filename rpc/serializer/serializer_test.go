package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/rkv/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Single command request
		{
			MsgType:  common.MsgTCommand,
			DB:       3,
			Commands: []common.Command{{Name: "SET", Args: []string{"test-key", "test-value"}}},
		},

		// Atomic request with a command without arguments
		{
			MsgType: common.MsgTAtomic,
			Commands: []common.Command{
				{Name: "INCR", Args: []string{"counter"}},
				{Name: "PING"},
			},
		},

		// Batch response with every result kind
		{
			MsgType: common.MsgTBatch,
			Results: []common.Result{
				{Kind: common.ResultNil},
				{Kind: common.ResultString, Str: "OK"},
				{Kind: common.ResultInt, Int: -42},
				{Kind: common.ResultArray, Items: []common.Result{
					{Kind: common.ResultString, Str: "a"},
					{Kind: common.ResultArray, Items: []common.Result{{Kind: common.ResultInt, Int: 1}}},
				}},
				{Kind: common.ResultError, Code: 4, Err: "wrong kind of value"},
			},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
			Code:    2,
		},

		// Message with meta data
		{
			MsgType:  common.MsgTCommand,
			Commands: []common.Command{{Name: "GET", Args: []string{"k"}}},
			Meta:     []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTBatch; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty command list but not nil",
			msg: common.Message{
				MsgType:  common.MsgTAtomic,
				Commands: []common.Command{},
			},
		},
		{
			name: "Empty result list but not nil",
			msg: common.Message{
				MsgType: common.MsgTBatch,
				Results: []common.Result{},
			},
		},
		{
			name: "Empty strings",
			msg: common.Message{
				MsgType:  common.MsgTCommand,
				Commands: []common.Command{{Name: "SET", Args: []string{"", ""}}},
				Results:  []common.Result{{Kind: common.ResultString, Str: ""}},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTSuccess,
				Meta:    []byte{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResetsMessage tests that fields of a reused message don't leak into the next one
func TestBinaryDeserializeResetsMessage(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Err: "stale", Results: []common.Result{{Kind: common.ResultInt, Int: 1}}}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if msg.Err != "" || msg.Results != nil {
		t.Errorf("Expected a clean message, got %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Command count larger than data",
			data:        []byte{3, hasCommands, 0, 0, 0, 5, 0, 0, 0, 1, 'a'},
			expectError: true,
		},
		{
			name:        "Invalid length for error",
			data:        []byte{2, hasErr, 0, 0, 0, 10}, // Claims error length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Unknown result kind",
			data:        []byte{5, hasResults, 0, 0, 0, 1, 99},
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{1, 0, 7},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestByName tests the serializer lookup used by the cli and the client
func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary", ""} {
		if _, err := ByName(name); err != nil {
			t.Errorf("Expected serializer for %q, got error %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}
