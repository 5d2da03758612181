package types

import (
	"sort"
	"strings"
	"time"
)

// Collection names in the document store.
const (
	ColUsers         = "users"
	ColCircles       = "circles"
	ColAccounts      = "accounts"
	ColTransactions  = "transactions"
	ColNotifications = "notifications"
)

// AccessFull is the permission level granted to a matched invitee.
const AccessFull = 4

// Notification results. A notification starts with no result; the client
// writes Accepted or Rejected, the backend writes AlreadyInvited.
const (
	ResultAccepted       = "accepted"
	ResultRejected       = "rejected"
	ResultAlreadyInvited = "Already invited"
)

// InviteTTL is how long a pending notification stays eligible for matching
// before external garbage collection may remove it.
const InviteTTL = 14 * 24 * time.Hour

// UserDescriptor is the denormalized identity snapshot embedded in
// notifications and circles.
type UserDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Email       string `json:"email"`
}

// Account owns transactions and accumulates derived fields from them.
// Balance and Tags are maintained by the aggregator, never written directly
// by clients.
type Account struct {
	ID      string             `json:"id"`
	Users   []string           `json:"users"`
	Access  map[string]int     `json:"access,omitempty"`
	Color   string             `json:"color,omitempty"`
	Balance map[string]float64 `json:"balance,omitempty"`
	Tags    []string           `json:"tags,omitempty"`
}

// Transaction belongs to at most one account. Color, Users and Access are
// denormalized from the account at creation time and kept in sync by the
// cascade planner.
type Transaction struct {
	ID       string         `json:"id"`
	Account  string         `json:"account,omitempty"`
	Amount   float64        `json:"amount"`
	Fee      float64        `json:"fee,omitempty"`
	Currency string         `json:"currency"`
	Tags     []string       `json:"tags,omitempty"`
	Color    string         `json:"color,omitempty"`
	Users    []string       `json:"users,omitempty"`
	Access   map[string]int `json:"access,omitempty"`
}

// Net is the amount this transaction contributes to its account balance.
func (t Transaction) Net() float64 { return t.Amount - t.Fee }

// Notification is an invitation document. Target is the resource path the
// invite grants access to, either a circle path or another document path.
type Notification struct {
	ID      string         `json:"id"`
	From    UserDescriptor `json:"from"`
	To      UserDescriptor `json:"to,omitempty"`
	User    string         `json:"user,omitempty"`
	Contact string         `json:"contact,omitempty"`
	Target  string         `json:"target,omitempty"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message,omitempty"`
	Users   []string       `json:"users,omitempty"`
	Access  map[string]int `json:"access,omitempty"`
	Result  string         `json:"result,omitempty"`
	Delete  time.Time      `json:"delete,omitempty"`
}

// Circle is the persistent two-party group created when an invite is
// accepted. Members holds each participant's descriptor keyed by the other
// participant's id, so either side can render its counterpart.
type Circle struct {
	ID      string                    `json:"id"`
	Users   []string                  `json:"users"`
	Members map[string]UserDescriptor `json:"members,omitempty"`
	Created time.Time                 `json:"created"`
}

// User is the stored profile created on signup. Token is the push token
// registered by the client, empty until one is.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Token       string    `json:"token,omitempty"`
	Created     time.Time `json:"created"`
}

// CircleID derives the circle document id for a set of participants:
// sorted ids joined with "-". Both accept directions and concurrent
// accepts for the same pair land on the same id.
func CircleID(users []string) string {
	sorted := make([]string, len(users))
	copy(sorted, users)
	sort.Strings(sorted)
	return strings.Join(sorted, "-")
}

// IsCirclePath reports whether a notification target refers to a circle
// document rather than some other shared resource.
func IsCirclePath(target string) bool {
	return strings.HasPrefix(target, ColCircles+"/")
}

// NormalizeEmail lowercases and trims an email for matching; invite
// contacts and user emails are always compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
