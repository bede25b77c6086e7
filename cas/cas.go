// Package cas provides the content digests used to identify text blocks and
// diff documents: BLAKE3 hashing and canonical JSON serialization.
package cas

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"lukechampine.com/blake3"
)

// DigestPrefix tags digests rendered as strings.
const DigestPrefix = "blake3:"

// Sum returns the 256-bit BLAKE3 digest of data.
func Sum(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// SumHex returns the BLAKE3 digest of data as lowercase hex.
func SumHex(data []byte) string {
	sum := Sum(data)
	return hex.EncodeToString(sum[:])
}

// BlockDigest hashes a run of lines. Lines are framed by their length so
// ["ab"] and ["a", "b"] never collide.
func BlockDigest(lines []string) [32]byte {
	h := blake3.New(32, nil)
	var frame [8]byte
	for _, line := range lines {
		n := uint64(len(line))
		for i := range frame {
			frame[i] = byte(n >> (8 * i))
		}
		h.Write(frame[:])
		h.Write([]byte(line))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Digest returns DigestPrefix followed by the hex BLAKE3 digest of the
// canonical JSON encoding of v.
func Digest(v interface{}) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return DigestPrefix + SumHex(data), nil
}

// CanonicalJSON converts a value to canonical JSON (stable key ordering).
func CanonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	// Decode with UseNumber so numbers keep their exact spelling
	var obj interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := canonicalMarshal(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalMarshal(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := canonicalMarshal(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := canonicalMarshal(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeJSON(buf, v)
	}
}

func writeJSON(buf *bytes.Buffer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
