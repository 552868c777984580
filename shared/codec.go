package shared

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// ParseEnvelope decodes one line into an Envelope. Malformed JSON is
// an error; the caller reports it and drops the line.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// FormatEnvelope serializes an Envelope into exactly one
// newline-terminated line.
func FormatEnvelope(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ReadEnvelope reads the next line from reader and decodes it.
func ReadEnvelope(reader *bufio.Reader) (Envelope, error) {
	data, err := reader.ReadBytes('\n')
	if err != nil {
		return Envelope{}, err
	}
	return ParseEnvelope(bytes.TrimSpace(data))
}
