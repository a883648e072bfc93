package domain

import (
	"encoding/json"
	"regexp"
)

// ============================================================
// Budgets (orçamentos)
// ============================================================

// Budget is a quotation record, uniquely identified by Number.
// Writes replace the whole record; there are no partial updates.
type Budget struct {
	Number  string   `json:"number"`
	Date    string   `json:"date"`
	Company *Company `json:"company,omitempty"`
	Client  Client   `json:"client"`
	Items   []Item   `json:"items"`
	Total   float64  `json:"total"`
}

// Company identifies the issuer printed on the budget.
type Company struct {
	Name    string `json:"name"`
	CNPJ    string `json:"cnpj"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Logo    string `json:"logo"`
}

// Client is the customer the budget was issued to.
type Client struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
	Plate   string `json:"plate"`
}

// Item is one budget line. ID is kept verbatim: the web app generates
// numeric ids that are not always integers.
type Item struct {
	ID           json.Number `json:"id"`
	Description  string      `json:"description"`
	Quantity     float64     `json:"quantity"`
	UnitPrice    float64     `json:"unitPrice"`
	DisplayPrice string      `json:"displayPrice"`
}

// MissingFields returns the required fields absent from b, in a stable order.
// Items must be present but may be empty.
func (b *Budget) MissingFields() []string {
	var missing []string
	if b.Number == "" {
		missing = append(missing, "number")
	}
	if b.Client.Name == "" {
		missing = append(missing, "client.name")
	}
	if b.Items == nil {
		missing = append(missing, "items")
	}
	return missing
}

var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// PhoneDigits strips every non-digit character: "(11) 91234-5678" → "11912345678".
func PhoneDigits(phone string) string {
	return nonDigitRegex.ReplaceAllString(phone, "")
}

// ============================================================
// Webhook payloads
// ============================================================

// NotificationClient is the client block sent to the webhook.
type NotificationClient struct {
	Client
	PhoneDigits string `json:"phoneDigits"`
}

// NotificationPayload is the body POSTed to the webhook after a budget is saved
// or resent. It is built per call and never stored.
type NotificationPayload struct {
	Number  string             `json:"number"`
	Date    string             `json:"date"`
	Company *Company           `json:"company,omitempty"`
	Client  NotificationClient `json:"client"`
	Items   []Item             `json:"items"`
	Total   float64            `json:"total"`
	PdfURL  string             `json:"pdfUrl"`
}

// NewNotificationPayload copies b and adds the PDF link and the normalized phone.
func NewNotificationPayload(b *Budget, pdfURL string) *NotificationPayload {
	items := b.Items
	if items == nil {
		items = []Item{}
	}
	return &NotificationPayload{
		Number:  b.Number,
		Date:    b.Date,
		Company: b.Company,
		Client: NotificationClient{
			Client:      b.Client,
			PhoneDigits: PhoneDigits(b.Client.Phone),
		},
		Items:  items,
		Total:  b.Total,
		PdfURL: pdfURL,
	}
}

// PingPayload is the synthetic body sent by the webhook diagnostic.
type PingPayload struct {
	Ping   bool   `json:"ping"`
	TS     string `json:"ts"`
	Sample any    `json:"sample"`
}
