package models

import "time"

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

type Payment struct {
	Meta
	UserID      string        `json:"userId"`
	ContractID  string        `json:"contractId,omitempty"`
	Amount      float64       `json:"amount"`
	FinalAmount float64       `json:"finalAmount"`
	Status      PaymentStatus `json:"status"`
	PaidDate    *time.Time    `json:"paidDate,omitempty"`
	Method      string        `json:"method,omitempty"`
}

// Effective is the charged amount: the final amount when set, otherwise the base amount.
func (p Payment) Effective() float64 {
	if p.FinalAmount > 0 {
		return p.FinalAmount
	}
	return p.Amount
}

// EffectiveDate is when the payment counts towards revenue.
func (p Payment) EffectiveDate() time.Time {
	if p.PaidDate != nil && !p.PaidDate.IsZero() {
		return *p.PaidDate
	}
	return p.Created()
}

type FoodOrder struct {
	Meta
	UserID      string  `json:"userId"`
	OrderNumber string  `json:"orderNumber,omitempty"`
	TotalAmount float64 `json:"totalAmount"`
	Status      string  `json:"status"`
}

type TimeRange string

const (
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
	RangeYear    TimeRange = "year"
)

func (r TimeRange) Valid() bool {
	switch r {
	case RangeWeek, RangeMonth, RangeQuarter, RangeYear:
		return true
	}
	return false
}

type DashboardSummary struct {
	TotalStudents     int     `json:"totalStudents"`
	TotalRooms        int     `json:"totalRooms"`
	ActiveContracts   int     `json:"activeContracts"`
	TotalCapacity     int     `json:"totalCapacity"`
	OccupiedBeds      int     `json:"occupiedBeds"`
	OccupancyRate     float64 `json:"occupancyRate"`
	PendingPayments   int     `json:"pendingPayments"`
	PendingAmount     float64 `json:"pendingAmount"`
	PendingCheckouts  int     `json:"pendingCheckouts"`
	Revenue           float64 `json:"revenue"`
	FoodOrders        int     `json:"foodOrders"`
	FoodOrdersRevenue float64 `json:"foodOrdersRevenue"`
}

type RevenuePoint struct {
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Amount float64   `json:"amount"`
}

type ActivityType string

const (
	ActivityPayment   ActivityType = "payment"
	ActivityContract  ActivityType = "contract"
	ActivityFoodOrder ActivityType = "food_order"
	ActivityCheckout  ActivityType = "checkout"
)

type ActivityItem struct {
	Type        ActivityType `json:"type"`
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	TimeAgo     string       `json:"timeAgo"`
}

type Dashboard struct {
	Range         TimeRange             `json:"range"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	Summary       DashboardSummary      `json:"summary"`
	Revenue       []RevenuePoint        `json:"revenue"`
	RoomStatus    map[RoomStatus]int    `json:"roomStatus"`
	PaymentStatus map[PaymentStatus]int `json:"paymentStatus"`
	Activity      []ActivityItem        `json:"activity"`
}
