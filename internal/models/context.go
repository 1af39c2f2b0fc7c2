package models

import (
	"fmt"
	"strconv"
)

// ContextType names the external domain a room is attached to.
type ContextType string

const (
	ContextGeneral          ContextType = "general"
	ContextMentoringInquiry ContextType = "mentoring_inquiry"
	ContextFarmlandInquiry  ContextType = "farmland_inquiry"
	ContextJobInquiry       ContextType = "job_inquiry"
	ContextNone             ContextType = "none"
)

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextGeneral, ContextMentoringInquiry, ContextFarmlandInquiry, ContextJobInquiry, ContextNone:
		return true
	}
	return false
}

// RequiresRef reports whether rooms of this type must point at a listing.
func (t ContextType) RequiresRef() bool {
	switch t {
	case ContextMentoringInquiry, ContextFarmlandInquiry, ContextJobInquiry:
		return true
	}
	return false
}

// MessageKind tags a stored or broadcast message.
type MessageKind string

const (
	KindChat   MessageKind = "chat"
	KindJoin   MessageKind = "join"
	KindLeave  MessageKind = "leave"
	KindSystem MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindChat, KindJoin, KindLeave, KindSystem:
		return true
	}
	return false
}

// PairKey is the order-independent key of two user ids.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// ContextKey combines the context type and the optional reference id.
func ContextKey(t ContextType, refID *int64) string {
	if refID == nil {
		return string(t) + ":-"
	}
	return string(t) + ":" + strconv.FormatInt(*refID, 10)
}
