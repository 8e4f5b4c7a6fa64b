package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event categories.
const (
	CategoryJig      = "jig"
	CategorySettings = "settings"
	CategoryDomain   = "domain"
	CategorySession  = "session"
)

// Event weights, most to least significant.
const (
	WeightMajor = "major"
	WeightMinor = "minor"
	WeightInfo  = "info"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	User       string
	JigID      int64 // 0 when the event is not about one fixture
	Summary    string
	Category   string
	Weight     string
	Payload    json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newEvent(eventType, user string, jigID int64, category, weight, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  eventType,
		OccurredAt: time.Now(),
		User:       user,
		JigID:      jigID,
		Summary:    summary,
		Category:   category,
		Weight:     weight,
		Payload:    mustJSON(payload),
	}
}

// ── Fixture events ───────────────────────────────────────────────────────────

// JigWrittenPayload carries the stored values of a created or edited fixture.
type JigWrittenPayload struct {
	JigID  int64          `json:"jig_id"`
	Name   string         `json:"name"`
	No     string         `json:"no"`
	Values map[string]any `json:"values"`
}

func NewJigCreated(user string, p JigWrittenPayload) DomainEvent {
	return newEvent("jig_created", user, p.JigID, CategoryJig, WeightMinor,
		fmt.Sprintf("Jig %d (%s) created", p.JigID, p.Name), p)
}

func NewJigUpdated(user string, p JigWrittenPayload) DomainEvent {
	return newEvent("jig_updated", user, p.JigID, CategoryJig, WeightMinor,
		fmt.Sprintf("Jig %d (%s) edited", p.JigID, p.Name), p)
}

// JigDeletedPayload carries event-specific data for JigDeleted.
type JigDeletedPayload struct {
	JigID int64  `json:"jig_id"`
	Name  string `json:"name"`
}

func NewJigDeleted(user string, p JigDeletedPayload) DomainEvent {
	return newEvent("jig_deleted", user, p.JigID, CategoryJig, WeightMajor,
		fmt.Sprintf("Jig %d (%s) deleted", p.JigID, p.Name), p)
}

// JigStatusPayload carries a use-status transition.
type JigStatusPayload struct {
	JigID          int64  `json:"jig_id"`
	Name           string `json:"name"`
	From           string `json:"from"`
	To             string `json:"to"`
	Usedcount      int64  `json:"used_count"`
	CheckUsedcount int64  `json:"check_used_count"`
}

func NewJigCheckedOut(user string, p JigStatusPayload) DomainEvent {
	return newEvent("jig_checked_out", user, p.JigID, CategoryJig, WeightInfo,
		fmt.Sprintf("Jig %d (%s) checked out", p.JigID, p.Name), p)
}

func NewJigReturned(user string, p JigStatusPayload) DomainEvent {
	return newEvent("jig_returned", user, p.JigID, CategoryJig, WeightInfo,
		fmt.Sprintf("Jig %d (%s) returned, used %d times", p.JigID, p.Name, p.Usedcount), p)
}

// ── Configuration events ─────────────────────────────────────────────────────

// SettingsChangedPayload carries the saved threshold configuration.
type SettingsChangedPayload struct {
	CriticalColor       string `json:"critical_color"`
	WarningColor        string `json:"warning_color"`
	CalibrationLeadDays int    `json:"calibration_lead_days"`
	UsageCritical       int    `json:"usage_critical"`
	UsageWarning        int    `json:"usage_warning"`
	CycleCritical       int    `json:"cycle_critical"`
	CycleWarning        int    `json:"cycle_warning"`
}

func NewSettingsChanged(user string, p SettingsChangedPayload) DomainEvent {
	return newEvent("settings_changed", user, 0, CategorySettings, WeightMinor,
		"Threshold settings saved", p)
}

// DomainReplacedPayload carries the new ordered values of a domain.
type DomainReplacedPayload struct {
	Domain string   `json:"domain"`
	Values []string `json:"values"`
	Reset  bool     `json:"reset"`
}

func NewDomainReplaced(user string, p DomainReplacedPayload) DomainEvent {
	verb := "replaced"
	if p.Reset {
		verb = "reset to defaults"
	}
	return newEvent("domain_replaced", user, 0, CategoryDomain, WeightMajor,
		fmt.Sprintf("Domain %s %s (%d values)", p.Domain, verb, len(p.Values)), p)
}

// ── Session events ───────────────────────────────────────────────────────────

// OperatorPayload carries a login.
type OperatorPayload struct {
	User  string `json:"user"`
	Guest bool   `json:"guest"`
}

func NewOperatorLoggedIn(p OperatorPayload) DomainEvent {
	return newEvent("operator_logged_in", p.User, 0, CategorySession, WeightInfo,
		fmt.Sprintf("%s logged in", p.User), p)
}
