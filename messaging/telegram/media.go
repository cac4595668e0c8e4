package telegram

import (
	"bytes"
	"context"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

// Everything is sent to the account's own saved messages, the private
// "me" chat that serves as the storage bucket.

func (c *conn) SendMessage(ctx context.Context, text string) (int, error) {
	updates, err := message.NewSender(c.client.API()).Self().Text(ctx, text)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "send message: %v", err)
	}

	id, ok := sentMessageID(updates)
	if !ok {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "send message: no message id in updates")
	}
	return id, nil
}

func (c *conn) GetMessage(ctx context.Context, msgID int) (messaging.Message, error) {
	msg, err := c.messageByID(ctx, msgID)
	if err != nil {
		return messaging.Message{}, err
	}
	return messaging.Message{ID: msg.ID, Text: msg.Message}, nil
}

func (c *conn) SendFile(ctx context.Context, f messaging.OutgoingFile) (int, error) {
	api := c.client.API()

	file, err := uploader.NewUploader(api).FromBytes(ctx, f.Name, f.Data)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "upload %q: %v", f.Name, err)
	}

	document := message.UploadedDocument(file).
		MIME(f.MimeType).
		Filename(f.Name).
		ForceFile(true)

	updates, err := message.NewSender(api).Self().Media(ctx, document)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "send media %q: %v", f.Name, err)
	}

	id, ok := sentMessageID(updates)
	if !ok {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "send media: no message id in updates")
	}
	return id, nil
}

func (c *conn) FetchFile(ctx context.Context, msgID int) (messaging.Attachment, error) {
	msg, err := c.messageByID(ctx, msgID)
	if err != nil {
		return messaging.Attachment{}, err
	}

	media, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return messaging.Attachment{}, errors.Wrapf(errors.ErrNotFound, "message %d has no document", msgID)
	}
	doc, ok := media.Document.AsNotEmpty()
	if !ok {
		return messaging.Attachment{}, errors.Wrapf(errors.ErrNotFound, "message %d has an empty document", msgID)
	}

	var buf bytes.Buffer
	_, err = downloader.NewDownloader().
		Download(c.client.API(), doc.AsInputDocumentFileLocation()).
		Stream(ctx, &buf)
	if err != nil {
		return messaging.Attachment{}, errors.Wrapf(errors.ErrUpstreamUnavailable, "download message %d: %v", msgID, err)
	}

	return messaging.Attachment{
		Name:     documentFilename(doc),
		MimeType: doc.MimeType,
		Data:     buf.Bytes(),
	}, nil
}

func (c *conn) messageByID(ctx context.Context, msgID int) (*tg.Message, error) {
	result, err := c.client.API().MessagesGetMessages(ctx, []tg.InputMessageClass{
		&tg.InputMessageID{ID: msgID},
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "get message %d: %v", msgID, err)
	}

	var msgs []tg.MessageClass
	switch m := result.(type) {
	case *tg.MessagesMessages:
		msgs = m.Messages
	case *tg.MessagesMessagesSlice:
		msgs = m.Messages
	case *tg.MessagesChannelMessages:
		msgs = m.Messages
	}

	for _, m := range msgs {
		if msg, ok := m.(*tg.Message); ok && msg.ID == msgID {
			return msg, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "message %d", msgID)
}

func documentFilename(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if name, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return name.FileName
		}
	}
	return ""
}

// sentMessageID digs the id of the freshly sent message out of whichever
// updates container the server answered with.
func sentMessageID(u tg.UpdatesClass) (int, bool) {
	switch updates := u.(type) {
	case *tg.UpdateShortSentMessage:
		return updates.ID, true
	case *tg.Updates:
		return idFromUpdates(updates.Updates)
	case *tg.UpdatesCombined:
		return idFromUpdates(updates.Updates)
	}
	return 0, false
}

func idFromUpdates(updates []tg.UpdateClass) (int, bool) {
	for _, u := range updates {
		switch upd := u.(type) {
		case *tg.UpdateMessageID:
			return upd.ID, true
		case *tg.UpdateNewMessage:
			if msg, ok := upd.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		}
	}
	return 0, false
}
