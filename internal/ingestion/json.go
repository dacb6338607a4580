package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// jsonReader streams the elements of a top-level JSON array. Element indexes
// are 1-based and stand in for line numbers.
type jsonReader struct {
	dec   *json.Decoder
	index int
	done  bool
}

func newJSONReader(r io.Reader) (*jsonReader, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InputFormatError{Reason: "empty JSON document"}
		}
		if isJSONSyntaxError(err) {
			return nil, &InputFormatError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		return nil, errors.Wrap(err, "read json input")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, &InputFormatError{Reason: "JSON input must be an array of objects"}
	}
	return &jsonReader{dec: dec}, nil
}

func (j *jsonReader) Read() (domain.RawRecord, error) {
	if j.done {
		return domain.RawRecord{}, io.EOF
	}
	if !j.dec.More() {
		j.done = true
		return domain.RawRecord{}, io.EOF
	}

	j.index++
	var element json.RawMessage
	if err := j.dec.Decode(&element); err != nil {
		if isJSONSyntaxError(err) {
			// The decoder cannot resynchronise after a syntax error.
			j.done = true
			return domain.NewRawRecord(j.index, nil, fmt.Sprintf("malformed JSON element: %v", err)), nil
		}
		return domain.RawRecord{}, errors.Wrapf(err, "read json element %d", j.index)
	}

	fields, err := decodeObject(element)
	if err != nil {
		return domain.NewRawRecord(j.index, nil, err.Error()), nil
	}
	return domain.NewRawRecord(j.index, fields, ""), nil
}

func (j *jsonReader) Close() error { return nil }

// decodeObject keeps key order, which a map would lose.
func decodeObject(raw json.RawMessage) ([]domain.Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "malformed JSON element")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Newf("element is not an object (got %s)", describeJSON(tok))
	}

	var fields []domain.Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "malformed JSON object")
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "malformed value for %q", key)
		}
		text, err := stringifyJSON(value)
		if err != nil {
			return nil, errors.Wrapf(err, "unrepresentable value for %q", key)
		}
		fields = append(fields, domain.Field{Name: key, Value: text})
	}
	return fields, nil
}

func stringifyJSON(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func describeJSON(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		if v == '[' {
			return "array"
		}
		return string(v)
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isJSONSyntaxError(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
