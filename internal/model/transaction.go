package model

// TransactionType defines what a monetary record is for.
type TransactionType string

const (
	TransactionTypeFine        TransactionType = "FINE"
	TransactionTypeFinePayment TransactionType = "FINE_PAYMENT"
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
)

// TransactionStatus defines the lifecycle of a monetary record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is a fine or a payment. Only Status changes after creation.
type Transaction struct {
	Base
	UserID string            `gorm:"size:36;not null;index" json:"userId"`
	Amount float64           `gorm:"not null" json:"amount"`
	Type   TransactionType   `gorm:"size:16;not null;index" json:"type"`
	Status TransactionStatus `gorm:"size:16;not null;index" json:"status"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
