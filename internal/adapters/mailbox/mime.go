package mailbox

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/mikey/payment-tracker/internal/core"
)

// ParseRFC822 reads one RFC822 message and converts it into a RawEmail.
// Used by the SMTP ingest path and the CLI; the Gmail adapter gets its
// messages pre-parsed by the API.
func ParseRFC822(r io.Reader) (*core.RawEmail, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	raw := &core.RawEmail{
		MessageID: strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		From:      msg.Header.Get("From"),
		To:        msg.Header.Get("To"),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
	}
	if t, err := msg.Header.Date(); err == nil {
		raw.ReceivedAt = t
	}

	raw.Body, raw.HTMLBody = extractBodies(msg)
	return raw, nil
}

// decodeHeader decodes RFC 2047 encoded-words, falling back to the raw value.
func decodeHeader(value string) string {
	decoder := &mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractBodies pulls the text/plain and text/html alternatives out of a
// message, walking nested multiparts and reversing the transfer encoding.
func extractBodies(msg *mail.Message) (plain, html string) {
	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, readErr := io.ReadAll(decodeTransfer(msg.Body, encoding))
		if readErr != nil {
			return "", ""
		}
		if strings.HasPrefix(mediaType, "text/html") || looksLikeHTML(body) {
			return "", string(body)
		}
		return string(body), ""
	}

	boundary, ok := params["boundary"]
	if !ok {
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", ""
		}
		return string(body), ""
	}

	return walkMultipart(msg.Body, boundary)
}

func walkMultipart(r io.Reader, boundary string) (plain, html string) {
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return plain, html
		}

		partType := part.Header.Get("Content-Type")
		encoding := part.Header.Get("Content-Transfer-Encoding")
		mediaType, params, typeErr := mime.ParseMediaType(partType)
		if typeErr != nil {
			mediaType = strings.ToLower(strings.TrimSpace(strings.Split(partType, ";")[0]))
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested, ok := params["boundary"]; ok {
				nestedPlain, nestedHTML := walkMultipart(part, nested)
				if plain == "" {
					plain = nestedPlain
				}
				if html == "" {
					html = nestedHTML
				}
			}
		case strings.HasPrefix(mediaType, "text/plain") && plain == "":
			if body, readErr := io.ReadAll(decodeTransfer(part, encoding)); readErr == nil {
				plain = string(body)
			}
		case strings.HasPrefix(mediaType, "text/html") && html == "":
			if body, readErr := io.ReadAll(decodeTransfer(part, encoding)); readErr == nil {
				html = string(body)
			}
		}
	}
}

// decodeTransfer wraps the reader to reverse quoted-printable or base64
// transfer encoding.
func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

func looksLikeHTML(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<div"))
}
