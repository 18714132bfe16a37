package constants

// Domain event types published after a commit
const (
	EventBookBorrowed      = "book.borrowed"
	EventBookReturned      = "book.returned"
	EventFineIssued        = "fine.issued"
	EventPaymentCreated    = "payment.created"
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventUserRegistered    = "user.registered"
	EventUserStatusChanged = "user.status_changed"
)
