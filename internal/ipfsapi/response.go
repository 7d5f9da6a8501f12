package ipfsapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Error is the error envelope the daemon returns with non-2xx statuses:
// {"Message": "...", "Code": 0, "Type": "error"}.
type Error struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`

	Status int `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("ipfsapi: node error: status=%d", e.Status)
	}
	return fmt.Sprintf("ipfsapi: node error: status=%d message=%q", e.Status, e.Message)
}

// DecodeError converts a non-2xx response body into an *Error. Bodies that do
// not carry the JSON envelope are passed through as the message verbatim.
func DecodeError(status int, body []byte) error {
	apiErr := &Error{Status: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(trimmed, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(trimmed)
	}
	return apiErr
}

// ParseAddResponse extracts the content identifier from an add response.
// The daemon streams newline-delimited JSON progress objects; the last
// object carrying a Hash field identifies the stored root.
func ParseAddResponse(body []byte) (string, error) {
	var hash string
	dec := json.NewDecoder(bytes.NewReader(body))
	for dec.More() {
		var entry struct {
			Hash string `json:"Hash"`
		}
		if err := dec.Decode(&entry); err != nil {
			return "", errors.Wrap(err, "ipfsapi: decode add response")
		}
		if strings.TrimSpace(entry.Hash) != "" {
			hash = entry.Hash
		}
	}
	if hash == "" {
		return "", errors.New("ipfsapi: add response missing hash")
	}
	return hash, nil
}

// ParsePinLs extracts the pinned identifiers from a pin/ls response body:
// {"Keys": {"<cid>": {"Type": "recursive"}, ...}}. The result is sorted so
// callers observe a stable order.
func ParsePinLs(body []byte) ([]string, error) {
	var envelope struct {
		Keys map[string]struct {
			Type string `json:"Type"`
		} `json:"Keys"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return nil, errors.Wrap(err, "ipfsapi: decode pin/ls response")
	}
	cids := make([]string, 0, len(envelope.Keys))
	for cid := range envelope.Keys {
		cids = append(cids, cid)
	}
	sort.Strings(cids)
	return cids, nil
}
