package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// Product is one catalog entry (a reviewed ride).
type Product struct {
	Slug      string
	Type      string // escooter|ebike|eskate|euc|hoverboard
	Title     string
	Brand     string
	Score     float64 // editorial review score 0..10, 0 = unrated
	Specs     Specs
	Image     string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Specs holds the measured spec sheet. Zero values mean "unknown" and are
// skipped by the value-metric derivation.
type Specs struct {
	RangeMi     float64 `json:"range_mi,omitempty"`
	TopSpeedMph float64 `json:"top_speed_mph,omitempty"`
	BatteryWh   float64 `json:"battery_wh,omitempty"`
	WeightLb    float64 `json:"weight_lb,omitempty"`
	MotorW      float64 `json:"motor_w,omitempty"`
	MaxLoadLb   float64 `json:"max_load_lb,omitempty"`
}

// Offer is the current price at one retailer in one country.
type Offer struct {
	ProductSlug string
	Retailer    string
	Country     string // ISO 3166-1 alpha-2, upper case
	Currency    string // ISO 4217, upper case
	Price       float64
	InStock     bool
	URL         string
	CheckedAt   time.Time
}

// HistorySample is one consolidated daily price for a product in a region.
type HistorySample struct {
	ProductSlug string
	Region      string // US|GB|EU|CA|AU
	Day         string // YYYY-MM-DD
	Price       float64
	Currency    string
	InStock     bool
}

// CacheRow is the denormalized per-(product, region) row the rebuild job
// maintains. StatsJSON and MetricsJSON are serialized pricing structs; the
// storage layer treats them as opaque.
type CacheRow struct {
	ProductSlug string
	Region      string
	Price       float64
	Currency    string
	Retailer    string
	URL         string
	InStock     bool
	StatsJSON   string
	MetricsJSON string
	RebuiltAt   time.Time
}

// Tracker kinds.
const (
	TrackerKindTarget = "target" // notify at or below an absolute price
	TrackerKindDrop   = "drop"   // notify at a percent drop from baseline
)

// Tracker is a user price alert.
type Tracker struct {
	ID            int64
	Token         string // uuid, confirm/unsubscribe handle
	Email         string
	ProductSlug   string
	Region        string
	Kind          string
	TargetPrice   float64 // kind=target
	DropPercent   float64 // kind=drop
	BaselinePrice float64 // regional price when the tracker was created
	Cooldown      time.Duration
	LastNotified  time.Time // zero = never
	Confirmed     bool
	Active        bool
	CreatedAt     time.Time
}

// Subscriber is a newsletter recipient.
type Subscriber struct {
	ID        int64
	Token     string
	Email     string
	Confirmed bool
	Active    bool
	CreatedAt time.Time
}

// Outbox statuses.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEmail is one queued message.
type OutboxEmail struct {
	ID          int64
	Recipient   string
	Subject     string
	Body        string
	Status      string
	Attempts    int
	NextAttempt time.Time
	LastError   string
	CreatedAt   time.Time
	SentAt      time.Time // zero until sent
}

// ViewCount is an aggregated per-product view total.
type ViewCount struct {
	ProductSlug string
	Views       int64
}

// ComparisonCount is an aggregated count for an ordered product pair key
// ("slug-a|slug-b", slugs sorted).
type ComparisonCount struct {
	PairKey string
	Views   int64
}
