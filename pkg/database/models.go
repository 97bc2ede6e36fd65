package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the calendar-date format used for all ledger keys.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Item types
const (
	ItemTypeNormal  = "Normal"
	ItemTypeGrocery = "Grocery"
	ItemTypeMachine = "Machine"
)

// Cash entry reconciliation statuses
const (
	CashStatusMatch    = "Match"
	CashStatusOverage  = "Overage"
	CashStatusShortage = "Shortage"
)

// Machine batch statuses
const (
	MachineBatchActive   = "active"
	MachineBatchFinished = "finished"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the UUID so the same models work on Postgres and the
// SQLite test databases.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Item represents a sellable catalog entry
type Item struct {
	BaseModel
	Code         string  `gorm:"uniqueIndex;not null" json:"code"`
	Name         string  `gorm:"not null" json:"name"`
	ItemType     string  `gorm:"not null;default:'Normal'" json:"item_type"` // Normal, Grocery, Machine
	Category     string  `json:"category"`
	Subcategory  string  `json:"subcategory"`
	Price        float64 `gorm:"not null;default:0" json:"price"`
	SoldByWeight bool    `gorm:"default:false" json:"sold_by_weight"`
	NotifyExpiry bool    `gorm:"default:false" json:"notify_expiry"`
}

// Branch represents a store location, referenced by name throughout
type Branch struct {
	BaseModel
	Name    string `gorm:"uniqueIndex;not null" json:"name"`
	Address string `json:"address"`
	Manager string `json:"manager"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// User represents a system user
type User struct {
	BaseModel
	Username         string `gorm:"uniqueIndex;not null" json:"username"` // stored lowercase
	FullName         string `gorm:"not null" json:"full_name"`
	Email            string `gorm:"index" json:"email"`
	PasswordHash     string `json:"-"`
	Role             string `gorm:"default:'custom'" json:"role"`    // admin, custom
	Accesses         string `gorm:"type:text;default:'[]'" json:"-"` // JSON array of capability tags
	AssignedBranches string `gorm:"type:text;default:'[]'" json:"-"` // JSON array of branch names
	Status           string `gorm:"default:'active'" json:"status"`  // active, disabled
}

// StockEntry is the per-day Normal-Item ledger row, keyed on (date, branch, item)
type StockEntry struct {
	BaseModel
	Date        string  `gorm:"type:date;not null;uniqueIndex:idx_stock_key" json:"date"`
	Branch      string  `gorm:"not null;uniqueIndex:idx_stock_key" json:"branch"`
	ItemCode    string  `gorm:"not null;uniqueIndex:idx_stock_key" json:"item_code"`
	Added       float64 `gorm:"default:0" json:"added"`
	Returned    float64 `gorm:"default:0" json:"returned"`
	Transferred float64 `gorm:"default:0" json:"transferred"`
	Sold        float64 `gorm:"default:0" json:"sold"`
}

// Available returns the quantity still on hand for this row.
func (s *StockEntry) Available() float64 {
	available := s.Added - s.Returned - s.Transferred
	if available < 0 {
		return 0
	}
	return available
}

// FinishedBatch marks a branch's daily stock movements as closed
type FinishedBatch struct {
	BaseModel
	Date       string `gorm:"type:date;not null;uniqueIndex:idx_finished_key" json:"date"`
	Branch     string `gorm:"not null;uniqueIndex:idx_finished_key" json:"branch"`
	FinishedBy string `json:"finished_by"`
}

// GroceryBatch holds grocery stock consumed FIFO by soonest expiry
type GroceryBatch struct {
	BaseModel
	BatchID    string  `gorm:"index;not null" json:"batch_id"`
	ItemCode   string  `gorm:"index;not null" json:"item_code"`
	Branch     string  `gorm:"index;not null" json:"branch"`
	Quantity   float64 `gorm:"not null" json:"quantity"`
	Remaining  float64 `gorm:"not null" json:"remaining"`
	ExpiryDate string  `gorm:"type:date;not null;index" json:"expiry_date"`
	AddedDate  string  `gorm:"type:date;not null" json:"added_date"`
}

// GrocerySale records a grocery sale for a branch/date
type GrocerySale struct {
	BaseModel
	Branch    string  `gorm:"index;not null" json:"branch"`
	Date      string  `gorm:"type:date;not null;index" json:"date"`
	ItemCode  string  `gorm:"not null" json:"item_code"`
	Quantity  float64 `gorm:"not null" json:"quantity"`
	TotalCash float64 `gorm:"not null" json:"total_cash"`
}

// GroceryReturn records returned grocery stock; must be completed before
// the day's cash entry can be created
type GroceryReturn struct {
	BaseModel
	Branch    string  `gorm:"index;not null" json:"branch"`
	Date      string  `gorm:"type:date;not null;index" json:"date"`
	ItemCode  string  `gorm:"not null" json:"item_code"`
	Quantity  float64 `gorm:"not null" json:"quantity"`
	Reason    string  `json:"reason"`
	Completed bool    `gorm:"default:false" json:"completed"`
}

// MachineBatch is a metered production run for a branch/date
type MachineBatch struct {
	BaseModel
	Branch       string  `gorm:"index;not null" json:"branch"`
	Date         string  `gorm:"type:date;not null;index" json:"date"`
	MachineName  string  `json:"machine_name"`
	StartReading float64 `gorm:"default:0" json:"start_reading"`
	EndReading   float64 `gorm:"default:0" json:"end_reading"`
	Status       string  `gorm:"default:'active'" json:"status"` // active, finished
}

// MachineSale records machine-metered revenue for a branch/date
type MachineSale struct {
	BaseModel
	Branch    string  `gorm:"index;not null" json:"branch"`
	Date      string  `gorm:"type:date;not null;index" json:"date"`
	Quantity  float64 `gorm:"not null" json:"quantity"`
	TotalCash float64 `gorm:"not null" json:"total_cash"`
}

// CashEntry is the append-only reconciliation record, unique per (branch, date)
type CashEntry struct {
	BaseModel
	Branch       string  `gorm:"not null;uniqueIndex:idx_cash_key" json:"branch"`
	Date         string  `gorm:"type:date;not null;uniqueIndex:idx_cash_key" json:"date"`
	Expected     float64 `gorm:"not null" json:"expected"`
	ActualCash   float64 `gorm:"not null" json:"actual_cash"`
	CardPayment  float64 `gorm:"default:0" json:"card_payment"`
	Actual       float64 `gorm:"not null" json:"actual"`
	Difference   float64 `gorm:"not null" json:"difference"`
	Status       string  `gorm:"not null" json:"status"` // Match, Overage, Shortage
	OperatorID   string  `json:"operator_id"`
	OperatorName string  `json:"operator_name"`
	Notes        string  `json:"notes"`
}

// TransferRecord is the immutable record of a branch-to-branch transfer
type TransferRecord struct {
	BaseModel
	Date           string         `gorm:"type:date;not null;index" json:"date"`
	SenderBranch   string         `gorm:"not null;index" json:"sender_branch"`
	ReceiverBranch string         `gorm:"not null;index" json:"receiver_branch"`
	ItemType       string         `gorm:"not null" json:"item_type"`
	ProcessedBy    string         `json:"processed_by"`
	ProcessedAt    time.Time      `json:"processed_at"`
	Items          []TransferItem `gorm:"foreignKey:TransferID" json:"items"`
}

// TransferItem is one line of a transfer
type TransferItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TransferID uuid.UUID `gorm:"type:uuid;not null;index" json:"transfer_id"`
	ItemCode   string    `gorm:"not null" json:"item_code"`
	Quantity   float64   `gorm:"not null" json:"quantity"`
}

func (t *TransferItem) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Notification is an alert row; expiry alerts are deduplicated on
// (type, item_code, branch, batch_id, expiry_date)
type Notification struct {
	BaseModel
	Type       string `gorm:"not null;index" json:"type"` // expiry, expired, ...
	Message    string `gorm:"not null" json:"message"`
	Branch     string `gorm:"index" json:"branch"`
	ItemCode   string `json:"item_code"`
	BatchID    string `json:"batch_id"`
	ExpiryDate string `json:"expiry_date"`
	ReadBy     string `gorm:"type:text;default:'[]'" json:"-"` // JSON array of user ids
}

// ActivityLog tracks actions for the audit trail. EntryDate carries the
// business date so transfer entries order by when they happened, not when
// they were recorded.
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid" json:"user_id"`
	Username   string     `json:"username"`
	Branch     string     `gorm:"index" json:"branch"`
	Action     string     `gorm:"not null" json:"action"` // create, update, delete, stock_sent, stock_received, ...
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"` // JSON details
	IPAddress  string     `json:"ip_address"`
	EntryDate  string     `gorm:"type:date;index" json:"entry_date"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Item{},
		&Branch{},
		&User{},
		&StockEntry{},
		&FinishedBatch{},
		&GroceryBatch{},
		&GrocerySale{},
		&GroceryReturn{},
		&MachineBatch{},
		&MachineSale{},
		&CashEntry{},
		&TransferRecord{},
		&TransferItem{},
		&Notification{},
		&ActivityLog{},
	)
}
