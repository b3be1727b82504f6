package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawTransaction is one purchase line exactly as it was ingested.
// Nil pointers mark values that were missing in the source file.
type RawTransaction struct {
	UserID       *int64          // from "user_id" or nil
	EventTime    time.Time       // from "event_time", keeps the recorded offset
	OrderID      int64           // from "order_id"
	ProductID    int64           // from "product_id"
	CategoryID   int64           // from "category_id"
	CategoryCode *string         // from "category_code" or nil
	Brand        *string         // from "brand" or nil
	Price        decimal.Decimal // from "price", 2 fractional digits
}

// CleanTransaction is the canonical record produced by the cleaning stage.
// Labels are carried over unresolved; the analytical view applies the fallback chain.
type CleanTransaction struct {
	ID     int64
	UserID *int64

	EventTime           civil.DateTime // wall clock as recorded, offset dropped
	NormalizedEventTime civil.DateTime // EventTime minus the correction offset

	OrderID    int64
	ProductID  int64
	CategoryID int64

	CategoryCode *string
	Brand        *string

	Price decimal.Decimal
}

// UserType classifies a purchase by presence of a user identifier.
type UserType string

const (
	UserTypeRegistered UserType = "registered"
	UserTypeAnonymous  UserType = "anonymous"
)

// UserTypes lists user types in report order.
var UserTypes = []UserType{UserTypeAnonymous, UserTypeRegistered}

// UserTypeOf returns the user type for a nullable user id.
func UserTypeOf(userID *int64) UserType {
	if userID != nil {
		return UserTypeRegistered
	}
	return UserTypeAnonymous
}

// AnalyticalRecord is a CleanTransaction enriched with resolved labels and
// calendar breakdowns. It is derived on every read and never stored.
type AnalyticalRecord struct {
	CleanTransaction

	UserType UserType

	Year    int
	Month   int
	Day     int
	Hour    int
	Weekday string

	Category Label
	Brand    Label
}
