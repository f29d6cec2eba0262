package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

func EncodeMsgpack(w io.Writer, doc Document) error {
	return msgpack.NewEncoder(w).Encode(doc)
}

func DecodeMsgpack(r io.Reader) (Document, error) {
	var doc Document
	err := msgpack.NewDecoder(r).Decode(&doc)
	return doc, err
}

// MsgpackFile stores the full Document, per-frame statistics included.
type MsgpackFile struct {
	Path string
}

func (m MsgpackFile) Write(ctx context.Context, doc Document) error {
	f, err := os.Create(m.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", m.Path, err)
	}
	if err := EncodeMsgpack(f, doc); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", m.Path, err)
	}
	return f.Close()
}
