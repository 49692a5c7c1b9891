package chat

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/adapter"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
)

const sessionPrefix = "sessions/"

func sessionKey(id model.SessionID) string {
	return sessionPrefix + string(id) + ".json"
}

// SaveSession writes the exported conversation to storage
func SaveSession(ctx context.Context, storage adapter.Storage, conv *conversation.Session) error {
	data, err := conv.Export()
	if err != nil {
		return err
	}

	writer, err := storage.Put(ctx, sessionKey(conv.ID()))
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("session_id", conv.ID()))
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write session to storage", goerr.V("session_id", conv.ID()))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("session_id", conv.ID()))
	}

	return nil
}

// LoadSession reads a stored session. opts are applied before the stored
// state is imported, so WithSystemPrompt sets the baseline a bare log is
// replayed from.
func LoadSession(ctx context.Context, storage adapter.Storage, id model.SessionID, opts ...conversation.Option) (*conversation.Session, error) {
	reader, err := storage.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session from storage", goerr.V("session_id", id))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session data", goerr.V("session_id", id))
	}

	conv := conversation.New(append([]conversation.Option{conversation.WithID(id)}, opts...)...)
	if err := conv.Import(ctx, data); err != nil {
		return nil, goerr.Wrap(err, "failed to import session", goerr.V("session_id", id))
	}

	return conv, nil
}

// ListSessions returns the IDs of all stored sessions
func ListSessions(ctx context.Context, storage adapter.Storage) ([]model.SessionID, error) {
	keys, err := storage.List(ctx, sessionPrefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions")
	}

	ids := make([]model.SessionID, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if !strings.HasSuffix(name, ".json") || path.Dir(key)+"/" != sessionPrefix {
			continue
		}
		ids = append(ids, model.SessionID(strings.TrimSuffix(name, ".json")))
	}
	return ids, nil
}

// Save writes the conversation of this chat session to its storage
func (s *Session) Save(ctx context.Context) error {
	if s.storage == nil {
		return goerr.New("storage is not configured")
	}
	return SaveSession(ctx, s.storage, s.conv)
}
