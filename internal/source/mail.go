package source

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Email is a parsed supplier message with its attachments as inputs.
type Email struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []Input
}

// FromEmail parses a raw RFC 822 message. Inline parts that carry a file name
// are treated as attachments too, since suppliers often paste sheets inline.
func FromEmail(raw []byte) (Email, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Email{}, err
	}

	out := Email{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}
	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, part := range parts {
		if part == nil || len(part.Content) == 0 {
			continue
		}
		filename := strings.TrimSpace(part.FileName)
		if filename == "" {
			continue
		}
		out.Attachments = append(out.Attachments, New(filename, part.ContentType, part.Content))
	}
	return out, nil
}

func (e Email) AttachmentNames() []string {
	names := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		names = append(names, a.Name)
	}
	return names
}
