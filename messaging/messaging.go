// Package messaging defines the boundary to the real-time messaging network.
// The gateway only ever talks to the network through Dialer and Conn, so the
// whole HTTP surface can be exercised against a fake implementation.
package messaging

import "context"

// User is the minimal identity the network reports for an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phoneNumber,omitempty"`
}

// Message is a plain text message fetched from the account's saved messages.
type Message struct {
	ID   int
	Text string
}

// OutgoingFile is a file to be sent as a document attachment.
type OutgoingFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Attachment is a document fetched from a message.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// CodePrompt supplies the human-entered one-time code. It blocks until the
// code is available or ctx is done; the sign-in flow calls it at most once.
type CodePrompt func(ctx context.Context) (string, error)

// Conn is one live connection to the network, anonymous until SignIn
// succeeds or authenticated from the start when dialed with a saved session.
type Conn interface {
	// SignIn drives the code handshake for phone, reading the code from
	// prompt. Rejections by the network (wrong code, unknown number) unwrap
	// to errors.ErrSignInRejected.
	SignIn(ctx context.Context, phone string, prompt CodePrompt) (User, error)

	// SavedSession returns the opaque blob that lets a later Dial restore
	// this connection's authorization without repeating the handshake.
	SavedSession(ctx context.Context) ([]byte, error)

	// SendMessage posts text to the account's saved messages.
	SendMessage(ctx context.Context, text string) (msgID int, err error)

	// GetMessage fetches a message by id. Missing messages unwrap to
	// errors.ErrNotFound.
	GetMessage(ctx context.Context, msgID int) (Message, error)

	// SendFile uploads f and sends it as a document to saved messages.
	SendFile(ctx context.Context, f OutgoingFile) (msgID int, err error)

	// FetchFile downloads the document attached to the message msgID.
	// Messages that do not exist or carry no document unwrap to
	// errors.ErrNotFound.
	FetchFile(ctx context.Context, msgID int) (Attachment, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections. A nil or empty savedSession dials anonymously.
type Dialer interface {
	Dial(ctx context.Context, savedSession []byte) (Conn, error)
}
