package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppewatch/internal/platform/config"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	msg := string(buildMessage("alerts@site.example", "lead@site.example", "Digest\r\nBcc: evil@x.example", "line one\nline two", now))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: alerts@site.example")
	assert.Contains(t, head, "To: lead@site.example")
	assert.Contains(t, head, "Subject: Digest Bcc: evil@x.example")
	assert.NotContains(t, head, "\r\nBcc:")
	assert.Contains(t, head, "Date: Fri, 01 Mar 2024 08:00:00 +0000")
	assert.Contains(t, head, "@site.example>")
	assert.Equal(t, "line one\r\nline two", body)
}

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	m := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example"})
	_, ok := m.(noopMailer)
	assert.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), "a@b.co", "c@d.co", "s", "b"))

	m = New(config.Config{EmailEnabled: true})
	_, ok = m.(noopMailer)
	assert.True(t, ok)

	m = New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example", SMTPPort: 587})
	_, ok = m.(*smtpMailer)
	assert.True(t, ok)
}
