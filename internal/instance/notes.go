package instance

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Notes is a thin passthrough over NoteStore sharing the instance id space.
type Notes struct {
	store Store
	opts  options
}

// NewNotes creates a notes service over store.
func NewNotes(store Store, opts ...Option) *Notes {
	return &Notes{store: store, opts: buildOptions(opts)}
}

// Add appends a note to an existing instance. The body is trimmed and
// NFC-normalized so visually identical notes compare equal.
func (n *Notes) Add(ctx context.Context, author, instanceID, body string) (Note, error) {
	const op = "add note"
	if author == "" {
		return Note{}, errNotAuthenticated(op)
	}
	body = norm.NFC.String(strings.TrimSpace(body))
	if body == "" {
		return Note{}, newError(ErrCodeInvalidArgument, op, "note body is empty", nil)
	}
	if _, err := n.store.Get(ctx, instanceID); err != nil {
		return Note{}, storeFailure(op, err)
	}

	note := Note{
		ID:         n.opts.ids.Generate(),
		InstanceID: instanceID,
		Author:     author,
		Body:       body,
		CreatedAt:  n.opts.clock.Now(),
	}
	if err := n.store.InsertNote(ctx, note); err != nil {
		return Note{}, storeFailure(op, err)
	}
	return note, nil
}

// List returns an instance's notes, oldest first.
func (n *Notes) List(ctx context.Context, instanceID string) ([]Note, error) {
	notes, err := n.store.ListNotes(ctx, instanceID)
	if err != nil {
		return nil, storeFailure("list notes", err)
	}
	return notes, nil
}

// Delete removes a note.
func (n *Notes) Delete(ctx context.Context, actor, noteID string) error {
	const op = "delete note"
	if actor == "" {
		return errNotAuthenticated(op)
	}
	if err := n.store.DeleteNote(ctx, noteID); err != nil {
		return storeFailure(op, err)
	}
	return nil
}
