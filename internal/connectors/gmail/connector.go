package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"quoteintake/internal"
	"quoteintake/internal/config"
)

// Connector lists supplier mail through the Gmail API. Only messages that
// match the configured search query (attachments by default) are fetched.
type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, query: cfg.GmailQuery}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listCall := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(int64(max)).Context(ctx)
	if c.query != "" {
		listCall = listCall.Q(c.query)
	}
	listResp, err := listCall.Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		msg := fromRaw(rawBytes)
		if msg.MessageID == "" {
			msg.MessageID = msgRef.Id
		}
		if msg.ReceivedAt == "" && rawResp.InternalDate > 0 {
			msg.ReceivedAt = time.UnixMilli(rawResp.InternalDate).UTC().Format(time.RFC3339)
		}
		if msg.ReceivedAt == "" {
			msg.ReceivedAt = time.Now().UTC().Format(time.RFC3339)
		}
		out = append(out, msg)
	}

	return out, nil
}

// fromRaw fills the envelope fields from the raw message headers.
func fromRaw(raw []byte) internal.FetchedMailMessage {
	msg := internal.FetchedMailMessage{Provider: "gmail", Raw: raw}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return msg
	}
	dec := new(mime.WordDecoder)
	decode := func(v string) string {
		if out, err := dec.DecodeHeader(v); err == nil {
			return out
		}
		return v
	}
	msg.MessageID = strings.TrimSpace(parsed.Header.Get("Message-Id"))
	msg.Subject = decode(parsed.Header.Get("Subject"))
	msg.From = decode(parsed.Header.Get("From"))
	if t, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = t.UTC().Format(time.RFC3339)
	} else if t, err := mailDateFallback(parsed.Header.Get("Date")); err == nil {
		msg.ReceivedAt = t.UTC().Format(time.RFC3339)
	}
	return msg
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func mailDateFallback(value string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}
