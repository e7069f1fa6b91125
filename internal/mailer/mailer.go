// Package mailer sends the crawl digest through the Mailgun API. Queue
// entries from the digest window are listed in label order, so grouped
// near-duplicates sit together in the email.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/newsherd/newsherd/internal/metrics"
	"github.com/newsherd/newsherd/internal/storage"
)

const defaultAPIBase = "https://api.mailgun.net/v3"

var reNewlines = regexp.MustCompile(`[\r\n]+`)

// Mailer posts messages to Mailgun.
type Mailer struct {
	Domain string
	APIKey string
	From   string

	// APIBase is overridable for tests.
	APIBase string

	client *http.Client
}

func New(domain, apiKey, from string) *Mailer {
	return &Mailer{
		Domain:  domain,
		APIKey:  apiKey,
		From:    from,
		APIBase: defaultAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether the mailer has API credentials.
func (m *Mailer) Configured() bool {
	return m != nil && m.Domain != "" && m.APIKey != ""
}

// Send delivers one plain text message.
func (m *Mailer) Send(ctx context.Context, recipient, subject, body string) error {
	form := url.Values{}
	form.Set("from", m.fromAddress())
	form.Set("to", recipient)
	form.Set("subject", subject)
	form.Set("text", body)
	form.Set("o:tracking-clicks", "no")

	endpoint := fmt.Sprintf("%s/%s/messages", m.APIBase, m.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailgun error: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func (m *Mailer) fromAddress() string {
	if m.From != "" {
		return m.From
	}
	return fmt.Sprintf("\"No Reply\" <no-reply@%s>", m.Domain)
}

// Digest renders the queue entries into an email subject and body. The
// second return value is false when there is nothing to send.
func Digest(items []storage.QueueItem) (subject, body string, ok bool) {
	if len(items) == 0 {
		return "", "", false
	}

	mostRecent := items[0].AddedOn
	for _, item := range items {
		if item.AddedOn.After(mostRecent) {
			mostRecent = item.AddedOn
		}
	}
	subject = fmt.Sprintf("Crawl digest - potential articles from %s",
		mostRecent.Format("Monday, January 2, 2006"))

	var b strings.Builder
	b.WriteString("Below are the links and the associated text that we found " +
		"on local news sites from around the country:\n\n")
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = reNewlines.ReplaceAllString(item.Title, " ") + "\n" + item.URL
	}
	b.WriteString(strings.Join(lines, "\n\n"))
	return subject, b.String(), true
}

// SendDigest emails the digest to every recipient. Without recipients or
// credentials the digest goes to stdout instead, which keeps local runs
// useful.
func SendDigest(ctx context.Context, m *Mailer, recipients []string, items []storage.QueueItem) error {
	subject, body, ok := Digest(items)
	if !ok {
		slog.Info("digest empty, nothing to send")
		return nil
	}

	if len(recipients) == 0 || !m.Configured() {
		fmt.Fprintln(os.Stdout, body)
		return nil
	}

	emailed := make(map[string]struct{})
	for _, recipient := range recipients {
		if _, done := emailed[recipient]; done {
			continue
		}
		emailed[recipient] = struct{}{}

		if err := m.Send(ctx, recipient, subject, body); err != nil {
			return err
		}
		metrics.Global.IncrementDigestEmailsSent()
		slog.Info("emailed crawl digest", "recipient", recipient)
	}
	return nil
}
