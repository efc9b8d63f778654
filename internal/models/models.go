// Package models defines the core data structures for odowatch.
//
// It includes the per-vehicle odometer records, the per-user session, and the
// reply types shared between the conversation engine, the stores, and the
// transport layer.
package models

// VehicleName identifies one of the fixed tracked vehicles.
type VehicleName string

const (
	// VehicleJimny is the first tracked vehicle and the default selection.
	VehicleJimny VehicleName = "ジムニー"
	// VehicleLapin is the second tracked vehicle.
	VehicleLapin VehicleName = "ラパン"
)

// KnownVehicles returns the fixed set of tracked vehicle identities, in menu order.
func KnownVehicles() []VehicleName {
	return []VehicleName{VehicleJimny, VehicleLapin}
}

// DefaultVehicle returns the vehicle selected for a brand-new session.
func DefaultVehicle() VehicleName {
	return VehicleJimny
}

// IsKnownVehicle reports whether name exactly matches a tracked vehicle identity.
func IsKnownVehicle(name string) bool {
	for _, v := range KnownVehicles() {
		if string(v) == name {
			return true
		}
	}
	return false
}

// VehicleRecord holds one vehicle's odometer tracking fields.
// A zero value means the field has not been set yet.
type VehicleRecord struct {
	StartKm int `json:"start_km"` // odometer reading when tracking began
	MaxKm   int `json:"max_km"`   // insurance distance allowance
	LastKm  int `json:"last_km"`  // most recent reported reading
}

// RunKm returns the distance traveled since tracking began.
func (r VehicleRecord) RunKm() int {
	return r.LastKm - r.StartKm
}

// UpperLimitKm returns the odometer reading at which the allowance is exhausted.
func (r VehicleRecord) UpperLimitKm() int {
	return r.StartKm + r.MaxKm
}

// RemainingKm returns the allowance left before the cap is exceeded.
// It goes negative once the cap has been passed.
func (r VehicleRecord) RemainingKm() int {
	return r.MaxKm - r.RunKm()
}

// ConversationState tags where a user is in the tracking dialogue. Each state
// determines which fields the next numeric message sets.
type ConversationState string

const (
	// StateNone means no prompt is outstanding; numeric input falls through to
	// the default reading handler.
	StateNone ConversationState = ""
	// StateAwaitingStartKm expects the start odometer after a vehicle was
	// selected; the reading also seeds the last-known odometer.
	StateAwaitingStartKm ConversationState = "awaiting_start_km"
	// StateAwaitingStartKmForLimit expects the start odometer during explicit
	// cap setup; only the start field is written.
	StateAwaitingStartKmForLimit ConversationState = "awaiting_start_km_for_limit"
	// StateAwaitingMaxKm expects the insurance allowance.
	StateAwaitingMaxKm ConversationState = "awaiting_max_km"
	// StateUpdatingMaxKm expects a replacement allowance for an existing record.
	StateUpdatingMaxKm ConversationState = "updating_max_km"
	// StateAwaitingCurrentKm expects a fresh odometer reading.
	StateAwaitingCurrentKm ConversationState = "awaiting_current_km"
)

// UserSession is one user's full conversation and tracking state.
type UserSession struct {
	SelectedVehicle VehicleName                    `json:"selected_vehicle"`
	Vehicles        map[VehicleName]*VehicleRecord `json:"vehicles"`
	State           ConversationState              `json:"state,omitempty"`
}

// NewUserSession returns a session seeded with a zero record for every known
// vehicle and the default vehicle selected.
func NewUserSession() *UserSession {
	s := &UserSession{
		SelectedVehicle: DefaultVehicle(),
		Vehicles:        make(map[VehicleName]*VehicleRecord, len(KnownVehicles())),
		State:           StateNone,
	}
	s.EnsureVehicles()
	return s
}

// EnsureVehicles fills in any missing vehicle entries with zero records so the
// session always carries every known identity. Sessions deserialized from
// older snapshots may be missing entries.
func (s *UserSession) EnsureVehicles() {
	if s.Vehicles == nil {
		s.Vehicles = make(map[VehicleName]*VehicleRecord, len(KnownVehicles()))
	}
	for _, v := range KnownVehicles() {
		if s.Vehicles[v] == nil {
			s.Vehicles[v] = &VehicleRecord{}
		}
	}
	if !IsKnownVehicle(string(s.SelectedVehicle)) {
		s.SelectedVehicle = DefaultVehicle()
	}
}

// Selected returns the record for the currently selected vehicle.
func (s *UserSession) Selected() *VehicleRecord {
	s.EnsureVehicles()
	return s.Vehicles[s.SelectedVehicle]
}

// MenuAction is one tappable choice in a menu reply. Tapping it sends Text
// back as a regular message.
type MenuAction struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Menu is a button/choice reply template.
type Menu struct {
	AltText string       `json:"alt_text"` // fallback for clients without template support
	Text    string       `json:"text"`
	Actions []MenuAction `json:"actions"`
}

// Reply is the single outbound message produced for one inbound message.
// When Menu is non-nil the reply is rendered as a buttons template, otherwise
// as plain text.
type Reply struct {
	Text string `json:"text,omitempty"`
	Menu *Menu  `json:"menu,omitempty"`
}
