package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

const hashField = "hash"

// canonicalBody encodes v as sorted-key JSON without its hash field. Numbers
// are kept verbatim so a decoded line re-encodes to the same bytes.
func canonicalBody(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal audit event")
	}
	body, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	delete(body, hashField)
	return stableJSON(body)
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode audit event")
	}
	return body, nil
}

// stableJSON relies on encoding/json sorting map keys at every level.
func stableJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode canonical json")
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

func chainHash(prevHash string, seq int64, body []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte("|" + strconv.FormatInt(seq, 10) + "|"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
