// Package chatbot answers storefront questions with canned replies and
// catalog suggestions. It never calls external services.
package chatbot

import (
	"context"
	"fmt"
	"strings"

	"solestore/internal/domain/products"
)

const (
	IntentGreeting    = "greeting"
	IntentShipping    = "shipping"
	IntentReturns     = "returns"
	IntentSizing      = "sizing"
	IntentOrderStatus = "order_status"
	IntentPayment     = "payment"
	IntentContact     = "contact"
	IntentProducts    = "products"
	IntentFallback    = "fallback"

	maxSuggestions = 3
	MaxMessageLen  = 500
)

type Searcher interface {
	Search(ctx context.Context, text string, n int) ([]*products.Product, error)
}

type Suggestion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	PriceCents int64  `json:"price_cents"`
	ImageURL   string `json:"image_url,omitempty"`
}

type Reply struct {
	Intent       string       `json:"intent"`
	Message      string       `json:"message"`
	Suggestions  []Suggestion `json:"suggestions"`
	QuickReplies []string     `json:"quick_replies,omitempty"`
}

type Options struct {
	FreeShippingThresholdCents int64
	ShippingFeeCents           int64
	SupportEmail               string
}

type Bot struct {
	catalog Searcher
	opts    Options
}

func New(catalog Searcher, opts Options) *Bot {
	if opts.SupportEmail == "" {
		opts.SupportEmail = "support@solestore.example"
	}
	return &Bot{catalog: catalog, opts: opts}
}

// intents are checked in order; the first keyword hit wins.
var intents = []struct {
	name     string
	keywords []string
}{
	{IntentOrderStatus, []string{"where is my order", "order status", "track", "tracking", "my order"}},
	{IntentReturns, []string{"return", "refund", "exchange", "send back"}},
	{IntentShipping, []string{"shipping", "delivery", "deliver", "ship"}},
	{IntentSizing, []string{"size", "sizing", "fit", "too small", "too big", "width"}},
	{IntentPayment, []string{"pay", "payment", "card", "paypal", "cash"}},
	{IntentContact, []string{"contact", "human", "agent", "email", "phone", "support"}},
	{IntentGreeting, []string{"hello", "hi", "hey", "good morning", "good evening"}},
}

func detectIntent(msg string) string {
	words := " " + strings.Join(strings.FieldsFunc(msg, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), " ") + " "
	for _, in := range intents {
		for _, kw := range in.keywords {
			if strings.Contains(words, " "+kw+" ") || (len(kw) > 4 && strings.Contains(words, " "+kw)) {
				return in.name
			}
		}
	}
	return ""
}

func (b *Bot) Reply(ctx context.Context, message string) (*Reply, error) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if len(msg) > MaxMessageLen {
		msg = msg[:MaxMessageLen]
	}
	reply := &Reply{Suggestions: []Suggestion{}}

	switch reply.Intent = detectIntent(msg); reply.Intent {
	case IntentGreeting:
		reply.Message = "Hi! I can help you find shoes, check sizing, or answer questions about shipping and returns."
		reply.QuickReplies = []string{"Show me running shoes", "How does sizing work?", "What is your return policy?"}
	case IntentShipping:
		reply.Message = b.shippingMessage()
	case IntentReturns:
		reply.Message = "You can return unworn shoes within 30 days of delivery for a full refund. Cancel an order from your account while it is pending or processing."
	case IntentSizing:
		reply.Message = "Our shoes use US sizing. If you are between sizes, go half a size up for running shoes and true to size for sneakers."
	case IntentOrderStatus:
		reply.Message = "Sign in and open My Orders to see the live status of every order, including tracking once it ships."
	case IntentPayment:
		reply.Message = "We accept cards, PayPal and cash on delivery."
	case IntentContact:
		reply.Message = fmt.Sprintf("You can reach our team at %s. We reply within one business day.", b.opts.SupportEmail)
	}

	if reply.Intent == "" || reply.Intent == IntentSizing {
		found, err := b.catalog.Search(ctx, msg, maxSuggestions)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			reply.Suggestions = append(reply.Suggestions, Suggestion{
				ID:         p.ID,
				Name:       p.Name,
				Slug:       p.Slug,
				PriceCents: p.EffectivePriceCents(),
				ImageURL:   p.PrimaryImage(),
			})
		}
	}

	if reply.Intent == "" {
		if len(reply.Suggestions) > 0 {
			reply.Intent = IntentProducts
			reply.Message = "Here are some shoes that match what you are looking for."
		} else {
			reply.Intent = IntentFallback
			reply.Message = "Sorry, I did not catch that. Try asking about a brand, a style, shipping or returns."
			reply.QuickReplies = []string{"Shipping", "Returns", "Sizing"}
		}
	}
	return reply, nil
}

func (b *Bot) shippingMessage() string {
	msg := "Orders ship within 1-2 business days."
	if b.opts.FreeShippingThresholdCents > 0 {
		msg += fmt.Sprintf(" Shipping is free on orders over %s", money(b.opts.FreeShippingThresholdCents))
		if b.opts.ShippingFeeCents > 0 {
			msg += fmt.Sprintf(", otherwise it is %s", money(b.opts.ShippingFeeCents))
		}
		msg += "."
	}
	return msg
}

func money(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
