// Package files performs file operations against the messaging network on
// behalf of a verified credential. Every operation dials its own short-lived
// connection from the credential's saved session and releases it before
// returning; nothing is pooled or shared between requests.
package files

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/filegram/filegram/catalog"
	"github.com/filegram/filegram/credential"
	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

// Upload is a file received from a client.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Download is a fetched file ready to stream back.
type Download struct {
	Name     string
	MimeType string
	Data     []byte
}

type Gateway struct {
	dialer  messaging.Dialer
	catalog catalog.Repo
}

func NewGateway(dialer messaging.Dialer, repo catalog.Repo) *Gateway {
	return &Gateway{dialer: dialer, catalog: repo}
}

// Store sends the upload as a document to the caller's saved messages and
// records it in the catalog under the caller's account.
func (g *Gateway) Store(ctx context.Context, cred credential.Payload, up Upload) (catalog.Entry, error) {
	var entry catalog.Entry
	err := g.withConn(ctx, cred, func(conn messaging.Conn) error {
		msgID, err := conn.SendFile(ctx, messaging.OutgoingFile{
			Name:     up.Name,
			MimeType: up.MimeType,
			Data:     up.Data,
		})
		if err != nil {
			return errors.Wrapf(err, "store %q", up.Name)
		}

		entry = catalog.Entry{
			ID:          msgID,
			OwnerID:     cred.SubjectID,
			Title:       up.Name,
			MimeType:    up.MimeType,
			URL:         fmt.Sprintf("/files/%d", msgID),
			DownloadURL: fmt.Sprintf("/files/%d?download=1", msgID),
		}
		if err := g.catalog.Insert(entry); err != nil {
			// The file made it to the network; a catalogue slip must not
			// fail the upload.
			log.Err(err).Int("id", msgID).Msg("cataloguing uploaded file")
		}
		return nil
	})
	return entry, err
}

// Retrieve fetches the document attached to message id. The display name is
// taken from the catalog when the file was uploaded through this process,
// otherwise from the attachment itself.
func (g *Gateway) Retrieve(ctx context.Context, cred credential.Payload, id int) (Download, error) {
	var dl Download
	err := g.withConn(ctx, cred, func(conn messaging.Conn) error {
		att, err := conn.FetchFile(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "retrieve %d", id)
		}

		dl = Download{Name: att.Name, MimeType: att.MimeType, Data: att.Data}
		if entry, ok := g.catalog.ByID(id); ok {
			dl.Name = entry.Title
		}
		return nil
	})
	return dl, err
}

// List returns the catalog entries owned by the credential's account. No
// connection is needed; the catalog is local state.
func (g *Gateway) List(cred credential.Payload) []catalog.Entry {
	return g.catalog.ByOwner(cred.SubjectID)
}

// SendMessage posts a plain text message to the caller's saved messages.
func (g *Gateway) SendMessage(ctx context.Context, cred credential.Payload, text string) (int, error) {
	var msgID int
	err := g.withConn(ctx, cred, func(conn messaging.Conn) error {
		id, err := conn.SendMessage(ctx, text)
		if err != nil {
			return errors.Wrapf(err, "send message")
		}
		msgID = id
		return nil
	})
	return msgID, err
}

// GetMessage fetches a plain text message by id.
func (g *Gateway) GetMessage(ctx context.Context, cred credential.Payload, id int) (messaging.Message, error) {
	var msg messaging.Message
	err := g.withConn(ctx, cred, func(conn messaging.Conn) error {
		m, err := conn.GetMessage(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "get message %d", id)
		}
		msg = m
		return nil
	})
	return msg, err
}

// withConn restores a session from the credential, runs op, and releases
// the connection on every exit path.
func (g *Gateway) withConn(ctx context.Context, cred credential.Payload, op func(messaging.Conn) error) error {
	conn, err := g.dialer.Dial(ctx, cred.SavedSession)
	if err != nil {
		return errors.Wrapf(err, "restore session")
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Err(err).Msg("releasing messaging connection")
		}
	}()

	return op(conn)
}
