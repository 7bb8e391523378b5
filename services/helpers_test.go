package services

import (
	"bytes"

	"github.com/pocketbase/pocketbase/core"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// newRecord builds an unsaved record of col with fields set.
func newRecord(col *core.Collection, fields map[string]any) *core.Record {
	r := core.NewRecord(col)
	for k, v := range fields {
		r.Set(k, v)
	}
	return r
}
