package pg

import (
	"time"

	"github.com/google/uuid"
)

type TripGroupModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"size:255;not null"`
	Description string    `gorm:"size:1024"`
	CreatedBy   string    `gorm:"size:255;not null"`
	TripCode    string    `gorm:"size:16;not null;uniqueIndex"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TripGroupModel.
func (TripGroupModel) TableName() string {
	return "trip_groups"
}

type GroupMemberModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID     uuid.UUID `gorm:"type:uuid;not null"`
	UserID      string    `gorm:"size:255"`
	Name        string    `gorm:"size:255;not null"`
	PhoneNumber string    `gorm:"size:32"`
	IsAdmin     bool      `gorm:"not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GroupMemberModel.
func (GroupMemberModel) TableName() string {
	return "group_members"
}

type ExpenseModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID     uuid.UUID `gorm:"type:uuid;not null"`
	Description string    `gorm:"size:255;not null"`
	Amount      float64   `gorm:"type:numeric(10,2);not null"`
	PaidBy      uuid.UUID `gorm:"type:uuid;not null"`
	SplitType   string    `gorm:"size:16;not null"`
	ExpenseDate time.Time `gorm:"not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpenseModel.
func (ExpenseModel) TableName() string {
	return "expenses"
}

type ExpenseSplitModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ExpenseID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	MemberID    uuid.UUID  `gorm:"type:uuid;not null"`
	ShareAmount float64    `gorm:"type:numeric(10,2);not null"`
	IsPaid      bool       `gorm:"not null"`
	PaidAt      *time.Time `gorm:""`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpenseSplitModel.
func (ExpenseSplitModel) TableName() string {
	return "expense_splits"
}
