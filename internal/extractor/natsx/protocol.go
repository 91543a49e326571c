package natsx

import (
	"encoding/json"
	"errors"
)

// Subject suffixes appended to the configured prefix.
const (
	opOpen    = "open"
	opExtract = "extract"
	opClose   = "close"
)

// ErrRemote is wrapped around error messages reported by the worker.
var ErrRemote = errors.New("extraction worker error")

type openRequest struct {
	Path string `json:"path"`
}

type handleRequest struct {
	Handle         string `json:"handle"`
	Path           string `json:"path,omitempty"`
	ActiveDocument bool   `json:"active_document,omitempty"`
}

// reply is the envelope of every worker response.
type reply struct {
	Handle   string          `json:"handle,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func subject(prefix, op string) string {
	return prefix + "." + op
}

func decodeReply(data []byte) (reply, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return reply{}, err
	}
	if r.Error != "" {
		return reply{}, errors.Join(ErrRemote, errors.New(r.Error))
	}
	return r, nil
}
