package core

import (
	"context"

	"github.com/calmcall/calmcall/internal/domain"
)

// Frame is a marshaled outbound message, ready for the wire.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Completer is the generative-language collaborator. imageJPEG may be nil
// for text-only prompts.
type Completer interface {
	Complete(ctx context.Context, prompt string, imageJPEG []byte) (string, error)
}

// AvatarClient drives the streaming-avatar collaborator. CreateSession
// returning (nil, nil) means the provider declined; callers broadcast the
// text answer without a stream in that case.
type AvatarClient interface {
	CreateSession(ctx context.Context, text string) (*domain.AvatarSession, error)
	CloseSession(ctx context.Context, sess *domain.AvatarSession) error
}
