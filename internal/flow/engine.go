// Package flow implements the conversation engine that drives the odometer
// tracking dialogue.
//
// The engine is a pure function over (session, inbound text): it mutates the
// session in place, produces exactly one outbound reply, and names the vehicle
// records that changed so the caller's store can persist exactly those
// mutations. It performs no I/O and cannot fail; any text outside the
// recognized grammar falls through to the help reply.
package flow

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/kfujino/odowatch/internal/models"
)

// Result is the outcome of processing one inbound message.
type Result struct {
	// Reply is the single outbound message for the triggering event.
	Reply models.Reply
	// Changed lists the vehicle records mutated by this message. Empty means
	// nothing needs persisting.
	Changed []models.VehicleName
}

// Engine interprets inbound messages against a user session.
type Engine struct{}

// NewEngine creates a conversation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Process evaluates one trimmed inbound message against the session.
// Transitions are checked in priority order: menu keywords, vehicle names,
// explicit command keywords, numeric readings, reset, then the catch-all help
// branch. The session is mutated in place and also returned through Changed
// bookkeeping for the caller's persistence pass.
func (e *Engine) Process(session *models.UserSession, text string) Result {
	session.EnsureVehicles()
	text = strings.TrimSpace(text)

	switch {
	case isMenuKeyword(text):
		slog.Debug("flow: menu requested", "state", session.State)
		return Result{Reply: menuReply()}

	case models.IsKnownVehicle(text):
		return e.selectVehicle(session, models.VehicleName(text))

	case text == keywordSetLimit:
		session.State = models.StateAwaitingStartKmForLimit
		return Result{Reply: textReply(msgAskStartKm)}

	case text == keywordUpdateMax:
		session.State = models.StateUpdatingMaxKm
		return Result{Reply: textReply(msgAskNewMaxKm)}

	case text == keywordCurrent:
		session.State = models.StateAwaitingCurrentKm
		return Result{Reply: textReply(msgAskCurrentKm)}

	case isDigits(text):
		km, err := strconv.Atoi(text)
		if err != nil {
			// Digit string too large to represent; treat as unrecognized.
			slog.Debug("flow: numeric message out of range", "length", len(text))
			return Result{Reply: textReply(msgHelp)}
		}
		return e.processReading(session, km)

	case text == keywordReset:
		return e.reset(session)

	default:
		slog.Debug("flow: unrecognized message", "length", len(text), "state", session.State)
		return Result{Reply: textReply(msgHelp)}
	}
}

// selectVehicle switches the session to the named vehicle and either reports
// the full status or prompts for whichever field is still unset.
func (e *Engine) selectVehicle(session *models.UserSession, name models.VehicleName) Result {
	session.SelectedVehicle = name
	rec := session.Vehicles[name]

	switch {
	case rec.StartKm == 0:
		session.State = models.StateAwaitingStartKm
		slog.Debug("flow: vehicle selected, start odometer unset", "vehicle", name)
		return Result{Reply: textReply(msgSelectedAskStart(name))}
	case rec.MaxKm == 0:
		session.State = models.StateAwaitingMaxKm
		slog.Debug("flow: vehicle selected, allowance unset", "vehicle", name)
		return Result{Reply: textReply(msgSelectedAskMax(name))}
	default:
		session.State = models.StateNone
		tier := TierFor(rec.RemainingKm())
		slog.Debug("flow: vehicle selected, reporting status", "vehicle", name, "remaining_km", rec.RemainingKm(), "tier", int(tier))
		return Result{Reply: textReply(msgSelected(name) + "\n" + statusMessage(rec) + tier.Text())}
	}
}

// processReading applies a numeric message according to the outstanding state.
func (e *Engine) processReading(session *models.UserSession, km int) Result {
	name := session.SelectedVehicle
	rec := session.Vehicles[name]

	switch session.State {
	case models.StateAwaitingStartKm:
		// Start of tracking: the reading is both the start and the latest
		// known odometer value.
		rec.StartKm = km
		rec.LastKm = km
		session.State = models.StateAwaitingMaxKm
		return Result{Reply: textReply(msgStartSetAskMax(name, km)), Changed: []models.VehicleName{name}}

	case models.StateAwaitingStartKmForLimit:
		rec.StartKm = km
		session.State = models.StateAwaitingMaxKm
		return Result{Reply: textReply(msgStartSetAskMax(name, km)), Changed: []models.VehicleName{name}}

	case models.StateAwaitingMaxKm:
		rec.MaxKm = km
		session.State = models.StateNone
		msg := msgMaxSet(name, km)
		if rec.StartKm != 0 {
			msg += "\n\n" + statusMessage(rec)
		}
		return Result{Reply: textReply(msg), Changed: []models.VehicleName{name}}

	case models.StateUpdatingMaxKm:
		rec.MaxKm = km
		session.State = models.StateNone
		msg := msgMaxUpdated(name, km)
		if rec.StartKm != 0 {
			msg += "\n\n" + statusMessage(rec)
		}
		return Result{Reply: textReply(msg), Changed: []models.VehicleName{name}}

	default:
		// StateNone and StateAwaitingCurrentKm share the default handling:
		// a bare number is the start odometer until one is set, afterwards a
		// fresh current reading.
		if rec.StartKm == 0 {
			rec.StartKm = km
			if rec.MaxKm == 0 {
				session.State = models.StateAwaitingMaxKm
				return Result{Reply: textReply(msgStartSetAskMax(name, km)), Changed: []models.VehicleName{name}}
			}
			session.State = models.StateNone
			return Result{Reply: textReply(msgStartSet(name, km)), Changed: []models.VehicleName{name}}
		}

		rec.LastKm = km
		session.State = models.StateNone
		tier := TierFor(rec.RemainingKm())
		slog.Debug("flow: reading recorded", "vehicle", name, "last_km", km, "run_km", rec.RunKm(), "remaining_km", rec.RemainingKm(), "tier", int(tier))
		return Result{Reply: textReply(readingMessage(name, rec) + tier.Text()), Changed: []models.VehicleName{name}}
	}
}

// reset zeroes the currently selected vehicle's record in place. Other
// vehicles and the vehicle selection are untouched.
func (e *Engine) reset(session *models.UserSession) Result {
	name := session.SelectedVehicle
	session.Vehicles[name] = &models.VehicleRecord{}
	session.State = models.StateNone
	slog.Debug("flow: record reset", "vehicle", name)
	return Result{Reply: textReply(msgReset(name)), Changed: []models.VehicleName{name}}
}

func isMenuKeyword(text string) bool {
	lower := strings.ToLower(text)
	return lower == strings.ToLower(keywordStart) || lower == strings.ToLower(keywordMenu)
}

// isDigits reports whether text is a non-empty decimal digit string.
func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
