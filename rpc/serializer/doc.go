// Package serializer encodes and decodes common.Message values for the rkv
// transports. Client and server must use the same serializer, a client picks
// it per target (?serializer=json|gob|binary, binary by default) and ByName
// resolves the name.
//
// Implementations:
//
//   - binary: hand written format. A header byte flags which message fields
//     are present, every command is a name plus length prefixed arguments and
//     every result starts with a kind byte (nil, string, int, array, error)
//     followed by its payload. Arrays nest. Smallest and fastest of the three.
//
//   - json: encoding/json with the tagged Result representation. Readable on
//     the wire, useful with the http transport and for debugging.
//
//   - gob: encoding/gob. Kept for completeness, it produces the largest
//     payloads and is the slowest (see benchmark_test.go).
//
// Serializers hold no state and can be shared between goroutines.
//
//	s, _ := serializer.ByName("binary")
//	data, err := s.Serialize(msg)
//	...
//	var resp common.Message
//	err = s.Deserialize(data, &resp)
package serializer
