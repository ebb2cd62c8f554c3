package changefeed

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrExhausted is returned by DocumentStream.Next once the stream has no
// more documents. It is distinct from Next blocking while waiting for input.
var ErrExhausted = errors.New("document stream exhausted")

// DocumentStream is a pull-based sequence of raw documents.
type DocumentStream interface {
	// Next returns the next document, ErrExhausted at the end of the
	// stream, or any other error when the source fails.
	Next(ctx context.Context) (map[string]any, error)
}

// SliceStream serves documents from memory.
type SliceStream struct {
	mu   sync.Mutex
	docs []map[string]any
	pos  int
}

// NewSliceStream creates a stream over docs.
func NewSliceStream(docs ...map[string]any) *SliceStream {
	return &SliceStream{docs: docs}
}

// Next implements DocumentStream.
func (s *SliceStream) Next(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.docs) {
		return nil, ErrExhausted
	}
	doc := s.docs[s.pos]
	s.pos++
	return doc, nil
}

// ChannelStream serves documents received on a channel. Closing the channel
// exhausts the stream; Next blocks while the channel is empty.
type ChannelStream struct {
	ch <-chan map[string]any
}

// NewChannelStream creates a stream reading from ch.
func NewChannelStream(ch <-chan map[string]any) *ChannelStream {
	return &ChannelStream{ch: ch}
}

// Next implements DocumentStream.
func (s *ChannelStream) Next(ctx context.Context) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case doc, ok := <-s.ch:
		if !ok {
			return nil, ErrExhausted
		}
		return doc, nil
	}
}

// Cursor is the subset of *mongo.Cursor used by CursorStream.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// CursorStream adapts a MongoDB cursor. The cursor is closed once it is
// exhausted or fails.
type CursorStream struct {
	cursor Cursor
	done   bool
}

// NewCursorStream wraps cursor.
func NewCursorStream(cursor Cursor) *CursorStream {
	return &CursorStream{cursor: cursor}
}

// Next implements DocumentStream.
func (s *CursorStream) Next(ctx context.Context) (map[string]any, error) {
	if s.done {
		return nil, ErrExhausted
	}
	if !s.cursor.Next(ctx) {
		s.done = true
		err := s.cursor.Err()
		_ = s.cursor.Close(ctx)
		if err != nil {
			return nil, err
		}
		return nil, ErrExhausted
	}

	var doc bson.M
	if err := s.cursor.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
