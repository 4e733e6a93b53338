package gateway

import "encoding/binary"

// UnavailableMessage is sent to a client when no primary is reachable.
const UnavailableMessage = "no healthy PostgreSQL primary available"

// BuildErrorResponse encodes a minimal PostgreSQL ErrorResponse frame:
//
//	'E' (1 byte message type)
//	int32 big-endian length, counted from the length field itself
//	'S' severity '\0'
//	'C' sqlstate '\0'
//	'M' message '\0'
//	'\0' terminator
//
// severity is always "FATAL" and sqlstate always "08006" (connection_failure)
// for the one caller that needs this: the no-primary-available response.
func BuildErrorResponse(message string) []byte {
	const severity = "FATAL"
	const sqlstate = "08006"

	fieldsLen := 0
	fieldsLen += 1 + len(severity) + 1
	fieldsLen += 1 + len(sqlstate) + 1
	fieldsLen += 1 + len(message) + 1
	fieldsLen++ // terminator

	totalLen := 4 + fieldsLen

	buf := make([]byte, 0, 1+totalLen)
	buf = append(buf, 'E')

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(totalLen))
	buf = append(buf, lenBuf[:]...)

	buf = append(buf, 'S')
	buf = append(buf, severity...)
	buf = append(buf, 0)

	buf = append(buf, 'C')
	buf = append(buf, sqlstate...)
	buf = append(buf, 0)

	buf = append(buf, 'M')
	buf = append(buf, message...)
	buf = append(buf, 0)

	buf = append(buf, 0)
	return buf
}

// UnavailableErrorResponse is the frame sent when no primary is available.
func UnavailableErrorResponse() []byte {
	return BuildErrorResponse(UnavailableMessage)
}
