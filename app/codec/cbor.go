// Package codec encodes task documents for the backing stores that keep
// opaque records. It wraps github.com/fxamacker/cbor/v2 with Core
// Deterministic Encoding so the same task always produces identical
// bytes.
package codec

import (
	"github.com/fxamacker/cbor/v2"

	"tasktree-go/app/models"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Nanosecond RFC 3339 strings keep timestamps exact across a round
	// trip; the default integer seconds would truncate them.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeTask encodes a task document.
func EncodeTask(task models.Task) ([]byte, error) {
	return Marshal(task)
}

// DecodeTask decodes a task document. A missing child list decodes as
// an empty one.
func DecodeTask(data []byte) (models.Task, error) {
	var task models.Task
	if err := Unmarshal(data, &task); err != nil {
		return models.Task{}, err
	}
	if task.Children == nil {
		task.Children = []string{}
	}
	return task, nil
}
