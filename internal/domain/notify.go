package domain

// NotifyStatus classifies a single webhook delivery attempt.
type NotifyStatus string

const (
	NotifySkipped   NotifyStatus = "skipped"   // no webhook URL configured
	NotifyDelivered NotifyStatus = "delivered" // remote answered 2xx
	NotifyRejected  NotifyStatus = "rejected"  // remote answered non-2xx
	NotifyFailed    NotifyStatus = "failed"    // transport error or timeout
)

// NotifyOutcome is the result of one delivery attempt.
type NotifyOutcome struct {
	Status     NotifyStatus
	StatusCode int    // set for delivered and rejected
	Body       string // response body preview, bounded
	Err        string // failure reason, empty when delivered or skipped
}

// Delivered reports whether the remote accepted the notification.
func (o *NotifyOutcome) Delivered() bool {
	return o != nil && o.Status == NotifyDelivered
}

// ============================================================
// Service results
// ============================================================

// SaveResult is returned by a successful create-or-update.
type SaveResult struct {
	Number string
	Notify *NotifyOutcome
}

// ResendResult is returned by a resend, successful or not.
type ResendResult struct {
	Number string
	Notify *NotifyOutcome
}

// WebhookDiagnostics is the masked view of the webhook settings.
type WebhookDiagnostics struct {
	OK            bool                      `json:"ok"`
	HasURL        bool                      `json:"hasUrl"`
	HasToken      bool                      `json:"hasToken"`
	PublicBaseSet bool                      `json:"publicBaseSet"`
	Details       WebhookDiagnosticsDetails `json:"details"`
}

// WebhookDiagnosticsDetails never carries the token value itself.
type WebhookDiagnosticsDetails struct {
	URLPreview   *string `json:"urlPreview"`
	TokenPresent bool    `json:"tokenPresent"`
	PublicBase   *string `json:"publicBase"`
}
