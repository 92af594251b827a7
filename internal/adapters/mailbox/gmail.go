package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mikey/payment-tracker/internal/config"
	"github.com/mikey/payment-tracker/internal/core"
)

// GmailCollector implements the MailCollector port over the Gmail REST API
type GmailCollector struct {
	svc        *gmail.Service
	user       string
	maxResults int64
	logger     *zap.Logger
}

// NewGmailCollector creates a new Gmail collector. It expects an OAuth client
// secret file and a previously saved token file; token acquisition is an
// operator concern, not something a headless batch can do.
func NewGmailCollector(ctx context.Context, cfg config.GmailConfig, logger *zap.Logger) (*GmailCollector, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth token from %s: %w", cfg.TokenFile, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailCollector{
		svc:        svc,
		user:       cfg.User,
		maxResults: int64(cfg.MaxResults),
		logger:     logger,
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// FetchCandidates lists all messages from the allowlisted senders received
// since the given time and returns them as raw emails. Gmail message IDs are
// unique within a mailbox, which is what the dedup key relies on.
func (c *GmailCollector) FetchCandidates(ctx context.Context, since time.Time, senders []string) ([]core.RawEmail, error) {
	query := buildQuery(since, senders)
	c.logger.Info("Fetching candidate emails", zap.String("query", query))

	var out []core.RawEmail
	pageToken := ""
	for {
		var page *gmail.ListMessagesResponse
		err := withRetry(ctx, c.logger, "list messages", func() error {
			req := c.svc.Users.Messages.List(c.user).Q(query).MaxResults(c.maxResults)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var listErr error
			page, listErr = req.Context(ctx).Do()
			return listErr
		})
		if err != nil {
			return nil, err
		}

		for _, stub := range page.Messages {
			id := stub.Id
			var full *gmail.Message
			err := withRetry(ctx, c.logger, "get message", func() error {
				var getErr error
				full, getErr = c.svc.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
				return getErr
			})
			if err != nil {
				return nil, err
			}
			out = append(out, messageToRawEmail(full))
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Info("Fetched candidate emails", zap.Int("count", len(out)))
	return out, nil
}

func buildQuery(since time.Time, senders []string) string {
	if len(senders) == 0 {
		return fmt.Sprintf("after:%d", since.Unix())
	}
	return fmt.Sprintf("from:(%s) after:%d", strings.Join(senders, " OR "), since.Unix())
}

// messageToRawEmail flattens a Gmail message into the core RawEmail shape,
// picking up the plain-text and HTML alternatives separately.
func messageToRawEmail(msg *gmail.Message) core.RawEmail {
	raw := core.RawEmail{MessageID: msg.Id}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				raw.From = header.Value
			case "To":
				raw.To = header.Value
			case "Subject":
				raw.Subject = header.Value
			case "Date":
				if t, err := mail.ParseDate(header.Value); err == nil {
					raw.ReceivedAt = t
				}
			}
		}
		raw.Body, raw.HTMLBody = collectParts(msg.Payload)
	}

	if raw.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	return raw
}

// collectParts walks the MIME tree and returns the first text/plain and
// text/html bodies found.
func collectParts(part *gmail.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}

	mimeType := part.MimeType
	if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			// The API omits padding on some parts
			decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		}
		if err == nil {
			switch {
			case strings.HasPrefix(mimeType, "text/plain"):
				plain = string(decoded)
			case strings.HasPrefix(mimeType, "text/html"):
				html = string(decoded)
			}
		}
	}

	for _, child := range part.Parts {
		childPlain, childHTML := collectParts(child)
		if plain == "" {
			plain = childPlain
		}
		if html == "" {
			html = childHTML
		}
	}

	return plain, html
}
