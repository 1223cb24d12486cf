package mailbox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/inbucket/html2text"

	"github.com/sandevgo/tuskmail/internal/core"
)

var wordDecoder = &mime.WordDecoder{}

// ParseMessage converts an RFC 5322 message into an Email. The thread id is
// the first entry of References, else In-Reply-To, else the message's own id.
func ParseMessage(r io.Reader) (core.Email, error) {
	msg, err := mail.ReadMessage(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return core.Email{}, fmt.Errorf("read message: %w", err)
	}
	h := msg.Header

	from, err := addresses(h, "From")
	if err != nil {
		return core.Email{}, err
	}
	to, err := addresses(h, "To")
	if err != nil {
		return core.Email{}, err
	}
	cc, err := addresses(h, "Cc")
	if err != nil {
		return core.Email{}, err
	}

	email := core.Email{
		ID:      messageID(h.Get("Message-Id")),
		To:      to,
		Cc:      cc,
		Subject: decodeHeader(h.Get("Subject")),
	}
	if len(from) > 0 {
		email.From = from[0]
	}

	if date, err := h.Date(); err == nil {
		email.Timestamp = date.UTC()
	}

	email.ThreadID = threadRoot(h)
	if email.ThreadID == "" {
		email.ThreadID = email.ID
	}

	body, err := readBody(h.Get("Content-Type"), h.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return core.Email{}, err
	}
	email.Body = strings.TrimSpace(body)

	return email, nil
}

func addresses(h mail.Header, key string) ([]string, error) {
	if h.Get(key) == "" {
		return nil, nil
	}
	list, err := h.AddressList(key)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, strings.ToLower(a.Address))
	}
	return out, nil
}

func decodeHeader(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

func messageID(v string) string {
	return strings.Trim(strings.TrimSpace(v), "<>")
}

func threadRoot(h mail.Header) string {
	if refs := strings.Fields(h.Get("References")); len(refs) > 0 {
		return messageID(refs[0])
	}
	if irt := strings.Fields(h.Get("In-Reply-To")); len(irt) > 0 {
		return messageID(irt[0])
	}
	return ""
}

// readBody prefers a text/plain part and falls back to converted HTML.
func readBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	r = decodeTransfer(encoding, r)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return readMultipart(multipart.NewReader(r, params["boundary"]))
	case mediaType == "text/html":
		text, err := html2text.FromReader(r, html2text.Options{OmitLinks: true})
		if err != nil {
			return "", fmt.Errorf("convert html body: %w", err)
		}
		return text, nil
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(data), nil
	}
}

func readMultipart(mr *multipart.Reader) (string, error) {
	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read part: %w", err)
		}

		ct := part.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(ct)
		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition == "attachment" {
			continue
		}

		// NextPart already decodes quoted-printable parts and drops the header.
		text, err := readBody(ct, part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil {
			return "", err
		}

		switch {
		case mediaType == "text/plain" && plain == "":
			plain = text
		case mediaType == "text/html" && html == "":
			html = text
		case strings.HasPrefix(mediaType, "multipart/") && plain == "":
			plain = text
		}
	}

	if plain != "" {
		return plain, nil
	}
	return html, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
