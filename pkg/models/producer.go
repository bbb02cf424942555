package models

import (
	"fmt"
	"strings"

	"github.com/conductor-telemetry/conductor/pkg/schema"
)

// ErrorCode is the wire-stable result code returned by the server. The
// numeric values are part of the protocol; clients without option/null
// support rely on NoError==0.
type ErrorCode uint8

const (
	NoError            ErrorCode = 0
	TimestampDefined   ErrorCode = 1
	NoMembers          ErrorCode = 2
	InvalidColumnNames ErrorCode = 3
	TooManyColumns     ErrorCode = 4
	InternalError      ErrorCode = 5
	InvalidUUID        ErrorCode = 6
	NameInvalid        ErrorCode = 7
	Unregistered       ErrorCode = 8
	InvalidData        ErrorCode = 9
	InvalidSchema      ErrorCode = 10
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case TimestampDefined:
		return "TimestampDefined"
	case NoMembers:
		return "NoMembers"
	case InvalidColumnNames:
		return "InvalidColumnNames"
	case TooManyColumns:
		return "TooManyColumns"
	case InternalError:
		return "InternalError"
	case InvalidUUID:
		return "InvalidUUID"
	case NameInvalid:
		return "NameInvalid"
	case Unregistered:
		return "Unregistered"
	case InvalidData:
		return "InvalidData"
	case InvalidSchema:
		return "InvalidSchema"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Err converts a non-zero code into a Go error for client use.
func (c ErrorCode) Err() error {
	if c == NoError {
		return nil
	}
	return &ServerError{Code: c}
}

// ServerError is an error code surfaced by the conductor server.
type ServerError struct {
	Code ErrorCode
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("conductor: %s", e.Code)
}

// MaxColumns is the largest schema QuestDB can represent.
const MaxColumns = 2147483647

// Registration is the payload a producer sends to register its schema.
// UseCustomID supports devices without persistent storage, which cannot
// remember a server-generated UUID across power cycles.
type Registration struct {
	Name        string        `json:"name" msgpack:"name"`
	Schema      schema.Schema `json:"schema" msgpack:"schema"`
	UseCustomID string        `json:"use_custom_id,omitempty" msgpack:"use_custom_id,omitempty"`
}

// RegistrationResult is the server's response to a registration attempt.
type RegistrationResult struct {
	Error ErrorCode `json:"error" msgpack:"error"`
	UUID  string    `json:"uuid,omitempty" msgpack:"uuid,omitempty"`
}

// Emit is a data packet sent by a registered producer. Timestamp is epoch
// milliseconds; zero means the server assigns its own receive time.
type Emit struct {
	UUID      string                 `json:"uuid" msgpack:"uuid"`
	Timestamp uint64                 `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
}

// EmitResult is the server's response to an emit.
type EmitResult struct {
	Error ErrorCode `json:"error" msgpack:"error"`
}

// Producer is the stored registration row.
type Producer struct {
	Name   string `json:"name"`
	UUID   string `json:"uuid"`
	Schema string `json:"schema"`
}

// ParsedSchema deserializes the stored schema JSON.
func (p *Producer) ParsedSchema() (schema.Schema, error) {
	return schema.ParseJSON(p.Schema)
}

// hasIllegalChars reports whether an identifier would break the quoted
// SQL conductor generates for table and column names.
func hasIllegalChars(s string) bool {
	return strings.ContainsAny(s, ".\"")
}

// ValidateRegistration checks a registration payload and returns the wire
// code describing the first problem found.
func (r *Registration) ValidateRegistration() ErrorCode {
	if r.Name == "" {
		return NameInvalid
	}
	if r.UseCustomID != "" && hasIllegalChars(r.UseCustomID) {
		return InvalidUUID
	}
	if _, ok := r.Schema["ts"]; ok {
		// ts is the designated timestamp column, generated by the server.
		return TimestampDefined
	}
	if len(r.Schema) == 0 {
		return NoMembers
	}
	for col, t := range r.Schema {
		if hasIllegalChars(col) {
			return InvalidColumnNames
		}
		if !t.Valid() {
			return InvalidData
		}
	}
	if len(r.Schema) > MaxColumns {
		return TooManyColumns
	}
	return NoError
}
