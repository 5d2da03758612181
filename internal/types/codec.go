package types

import (
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
)

// Decoding from raw store documents. Documents are schemaless maps; every
// field read here tolerates absence, but a present-but-wrong-typed numeric
// is a hard validation error rather than a silent zero.

func AccountFromDoc(id string, doc map[string]any) Account {
	return Account{
		ID:      id,
		Users:   docStrings(doc, "users"),
		Access:  docAccess(doc, "access"),
		Color:   docString(doc, "color"),
		Balance: docBalance(doc, "balance"),
		Tags:    docStrings(doc, "tags"),
	}
}

func TransactionFromDoc(id string, doc map[string]any) (Transaction, error) {
	amount, ok, err := docNumber(doc, "amount")
	if err != nil {
		return Transaction{}, err
	}
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: amount: %w", id, pkgerrors.ErrMalformedAmount)
	}
	fee, _, err := docNumber(doc, "fee")
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:       id,
		Account:  docString(doc, "account"),
		Amount:   amount,
		Fee:      fee,
		Currency: docString(doc, "currency"),
		Tags:     docStrings(doc, "tags"),
		Color:    docString(doc, "color"),
		Users:    docStrings(doc, "users"),
		Access:   docAccess(doc, "access"),
	}, nil
}

func NotificationFromDoc(id string, doc map[string]any) Notification {
	return Notification{
		ID:      id,
		From:    docDescriptor(doc, "from"),
		To:      docDescriptor(doc, "to"),
		User:    docString(doc, "user"),
		Contact: docString(doc, "contact"),
		Target:  docString(doc, "target"),
		Title:   docString(doc, "title"),
		Message: docString(doc, "message"),
		Users:   docStrings(doc, "users"),
		Access:  docAccess(doc, "access"),
		Result:  docString(doc, "result"),
		Delete:  docTime(doc, "delete"),
	}
}

func UserFromDoc(id string, doc map[string]any) User {
	return User{
		ID:          id,
		Email:       docString(doc, "email"),
		DisplayName: docString(doc, "displayName"),
		PhotoURL:    docString(doc, "photoURL"),
		Token:       docString(doc, "token"),
		Created:     docTime(doc, "created"),
	}
}

func CircleFromDoc(id string, doc map[string]any) Circle {
	c := Circle{
		ID:      id,
		Users:   docStrings(doc, "users"),
		Created: docTime(doc, "created"),
	}
	for _, uid := range c.Users {
		if _, ok := doc[uid]; !ok {
			continue
		}
		if c.Members == nil {
			c.Members = make(map[string]UserDescriptor, len(c.Users))
		}
		c.Members[uid] = docDescriptor(doc, uid)
	}
	return c
}

// Doc builds the stored form of a user profile.
func (u User) Doc() map[string]any {
	return map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"displayName": u.DisplayName,
		"photoURL":    u.PhotoURL,
		"created":     u.Created,
		"type":        ColUsers,
	}
}

// Doc builds the stored form of a circle. Each participant's counterpart
// descriptor sits under the participant's own id key.
func (c Circle) Doc() map[string]any {
	doc := map[string]any{
		"id":      c.ID,
		"users":   c.Users,
		"created": c.Created,
		"type":    ColCircles,
	}
	for uid, desc := range c.Members {
		doc[uid] = desc.Doc()
	}
	return doc
}

func (d UserDescriptor) Doc() map[string]any {
	return map[string]any{
		"id":          d.ID,
		"displayName": d.DisplayName,
		"photoURL":    d.PhotoURL,
		"email":       d.Email,
	}
}

func docString(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func docStrings(doc map[string]any, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// docNumber reads a numeric field. Returns ok=false when the field is
// absent; a present non-numeric value is an ErrMalformedAmount.
func docNumber(doc map[string]any, key string) (float64, bool, error) {
	v, present := doc[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s=%q: %w", key, n.String(), pkgerrors.ErrMalformedAmount)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s (%T): %w", key, v, pkgerrors.ErrMalformedAmount)
	}
}

func docBalance(doc map[string]any, key string) map[string]float64 {
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for currency, v := range raw {
		if f, ok := numValue(v); ok {
			out[currency] = f
		}
	}
	return out
}

func docAccess(doc map[string]any, key string) map[string]int {
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(raw))
	for uid, v := range raw {
		if f, ok := numValue(v); ok {
			out[uid] = int(f)
		}
	}
	return out
}

func numValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func docDescriptor(doc map[string]any, key string) UserDescriptor {
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return UserDescriptor{}
	}
	return UserDescriptor{
		ID:          docString(raw, "id"),
		DisplayName: docString(raw, "displayName"),
		PhotoURL:    docString(raw, "photoURL"),
		Email:       docString(raw, "email"),
	}
}

func docTime(doc map[string]any, key string) time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
