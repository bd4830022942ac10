package mailer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

type fakeSender struct {
	failures int
	calls    int
	sent     []*mail.Message
}

func (f *fakeSender) DialAndSend(m ...*mail.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestMailer(s sender) *SMTPMailer {
	return &SMTPMailer{sender: s, fromEmail: "shop@solestore.test", logger: zap.NewNop().Sugar()}
}

type line struct {
	ProductName    string
	Size           string
	Color          string
	Quantity       int
	LineTotalCents int64
}

func TestRenderOrderConfirmation(t *testing.T) {
	subject, body, err := Render(OrderConfirmationTemplate, map[string]any{
		"Username":      "Ada",
		"OrderNumber":   "SS-ABC123",
		"Items":         []line{{ProductName: "Samba <OG>", Size: "9", Quantity: 2, LineTotalCents: 20000}},
		"SubtotalCents": int64(20000),
		"ShippingCents": int64(0),
		"TotalCents":    int64(20000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Order SS-ABC123 confirmed", subject)
	assert.Contains(t, body, "Samba &lt;OG&gt; (size 9)")
	assert.Contains(t, body, "Total: $200.00")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("nope.tmpl", nil)
	assert.Error(t, err)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	s := &fakeSender{failures: 2}
	m := newTestMailer(s)

	status, err := m.Send(WelcomeTemplate, "Ada", "ada@example.com", map[string]string{"Username": "Ada", "ShopURL": "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 3, s.calls)
	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"Welcome to SoleStore, Ada!"}, s.sent[0].GetHeader("Subject"))
}

func TestSendGivesUp(t *testing.T) {
	s := &fakeSender{failures: 10}
	status, err := newTestMailer(s).Send(OrderStatusTemplate, "Ada", "ada@example.com", map[string]string{
		"Username": "Ada", "OrderNumber": "SS-1", "Status": "shipped",
	})
	assert.Error(t, err)
	assert.Equal(t, -1, status)
	assert.Equal(t, maxRetries, s.calls)
}

func TestLogClient(t *testing.T) {
	status, err := NewLogClient(zap.NewNop().Sugar()).Send(WelcomeTemplate, "Ada", "ada@example.com", map[string]string{"Username": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
}
