package models

import (
	"database/sql"
	"time"
)

// Project statuses. A project accepts bids only while Open;
// accepting a bid moves it to Closed exactly once.
const (
	ProjectStatusDraft      = "Draft"
	ProjectStatusOpen       = "Open"
	ProjectStatusInProgress = "InProgress"
	ProjectStatusCompleted  = "Completed"
	ProjectStatusClosed     = "Closed"
)

// Bid statuses. Accepted, Rejected and Withdrawn are terminal.
const (
	BidStatusPending   = "Pending"
	BidStatusAccepted  = "Accepted"
	BidStatusRejected  = "Rejected"
	BidStatusWithdrawn = "Withdrawn"
)

// Order settlement statuses.
const (
	OrderStatusPlaced           = "Placed"
	OrderStatusPaymentInitiated = "PaymentInitiated"
	OrderStatusSplitsRecorded   = "SplitsRecorded"
	OrderStatusReconciling      = "Reconciling"
	OrderStatusSettled          = "Settled"
	OrderStatusFailed           = "Failed"
)

type Project struct {
	ID                 int           `db:"id" json:"id"`
	OwnerID            int           `db:"owner_id" json:"ownerId"`
	Name               string        `db:"name" json:"name" validate:"required,max=100"`
	Description        string        `db:"description" json:"description" validate:"max=1000"`
	Status             string        `db:"status" json:"status"`
	ChosenEstimationID sql.NullInt64 `db:"chosen_estimation_id" json:"chosenEstimationId"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"-"`
}

type Bid struct {
	ID        int    `db:"id" json:"id"`
	ProjectID int    `db:"project_id" json:"projectId" validate:"required"`
	SellerID  int    `db:"seller_id" json:"sellerId"`
	// Amount is in minor currency units.
	Amount    int64     `db:"amount" json:"amount" validate:"required,gt=0"`
	Message   string    `db:"message" json:"message" validate:"max=500"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Seller struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	SubaccountID string    `db:"subaccount_id" json:"subaccountId"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Product struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SellerID  int       `db:"seller_id" json:"sellerId"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Cart is a mutable working set per user. OrderedAt is set exactly once,
// when the cart is converted into an order.
type Cart struct {
	ID        int          `db:"id" json:"id"`
	UserID    int          `db:"user_id" json:"userId"`
	OrderedAt sql.NullTime `db:"ordered_at" json:"-"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
	Items     []CartItem   `db:"-" json:"items"`
	Subtotal  int64        `db:"-" json:"subtotal"`
	Total     int64        `db:"-" json:"total"`
}

// CartItem snapshots the product's price and seller attribution at add time.
type CartItem struct {
	ID        int   `db:"id" json:"id"`
	CartID    int   `db:"cart_id" json:"cartId"`
	ProductID int   `db:"product_id" json:"productId" validate:"required"`
	SellerID  int   `db:"seller_id" json:"sellerId"`
	UnitPrice int64 `db:"unit_price" json:"unitPrice"`
	Quantity  int   `db:"quantity" json:"quantity" validate:"required,gt=0"`
}

// Order is an immutable snapshot of a cart at placement time. Only Status
// mutates afterwards, driven by the settlement coordinator.
type Order struct {
	ID         int         `db:"id" json:"id"`
	CartID     int         `db:"cart_id" json:"cartId"`
	UserID     int         `db:"user_id" json:"userId"`
	Total      int64       `db:"total" json:"total"`
	Status     string      `db:"status" json:"status"`
	PaymentRef string      `db:"payment_ref" json:"paymentRef"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	Lines      []OrderLine `db:"-" json:"lines,omitempty"`
}

type OrderLine struct {
	ID        int   `db:"id" json:"id"`
	OrderID   int   `db:"order_id" json:"orderId"`
	ProductID int   `db:"product_id" json:"productId"`
	SellerID  int   `db:"seller_id" json:"sellerId"`
	UnitPrice int64 `db:"unit_price" json:"unitPrice"`
	Quantity  int   `db:"quantity" json:"quantity"`
	LineTotal int64 `db:"line_total" json:"lineTotal"`
}

// SplitCalculation is the persisted per-seller breakdown of an order,
// one row per distinct seller, unique on (order_id, seller_id).
// Rows are never deleted; Checked only ever goes false -> true.
type SplitCalculation struct {
	ID           int       `db:"id" json:"id"`
	OrderID      int       `db:"order_id" json:"orderId"`
	SellerID     int       `db:"seller_id" json:"sellerId"`
	Gross        int64     `db:"gross" json:"grossAmount"`
	RatioBps     int64     `db:"ratio_bps" json:"splitRatioBps"`
	Commission   int64     `db:"commission" json:"platformCommission"`
	Net          int64     `db:"net" json:"netAmount"`
	SubaccountID string    `db:"subaccount_id" json:"subaccountId"`
	Checked      bool      `db:"checked" json:"checked"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Estimation struct {
	ID        int       `db:"id" json:"id"`
	ProjectID int       `db:"project_id" json:"projectId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type EstimationItem struct {
	ID           int    `db:"id" json:"id"`
	EstimationID int    `db:"estimation_id" json:"estimationId"`
	Description  string `db:"description" json:"description" validate:"required,max=200"`
	Unit         string `db:"unit" json:"unit" validate:"required,max=20"`
	Quantity     int    `db:"quantity" json:"quantity" validate:"required,gt=0"`
	UnitPrice    int64  `db:"unit_price" json:"unitPrice" validate:"required,gt=0"`
}

// BillOfQuantities is generated on demand and keyed by project: a repeat
// generation supersedes the previous document instead of duplicating it.
type BillOfQuantities struct {
	ID          int       `db:"id" json:"id"`
	ProjectID   int       `db:"project_id" json:"projectId"`
	CompanyName string    `db:"company_name" json:"companyName"`
	CompanyLogo string    `db:"company_logo" json:"companyLogo"`
	Total       int64     `db:"total" json:"totalAmount"`
	PDFPath     string    `db:"pdf_path" json:"pdfPath"`
	GeneratedAt time.Time `db:"generated_at" json:"generatedAt"`
	Items       []BOQItem `db:"-" json:"items,omitempty"`
}

type BOQItem struct {
	ID          int    `db:"id" json:"id"`
	BOQID       int    `db:"boq_id" json:"boqId"`
	Position    int    `db:"position" json:"position"`
	Description string `db:"description" json:"description"`
	Unit        string `db:"unit" json:"unit"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unitPrice"`
	LineTotal   int64  `db:"line_total" json:"lineTotal"`
}
