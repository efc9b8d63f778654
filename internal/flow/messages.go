package flow

import (
	"fmt"
	"strings"

	"github.com/kfujino/odowatch/internal/models"
)

// Recognized command keywords. Vehicle names are matched exactly against
// models.KnownVehicles; everything here is matched after trimming, and the
// menu keywords additionally case-insensitively.
const (
	keywordStart     = "スタート"
	keywordMenu      = "メニュー"
	keywordSetLimit  = "距離上限設定"
	keywordUpdateMax = "保険の上限距離を更新"
	keywordCurrent   = "現在の走行距離"
	keywordReset     = "リセット"
)

const procedureURL = "https://www.sonysonpo.co.jp/share/doc/change/cchg005.html"

const (
	msgMenuPrompt   = "以下のオプションから選択してください。"
	msgAskStartKm   = "開始メーターの走行距離を教えてください。"
	msgAskNewMaxKm  = "新しい保険の上限距離を教えてください。"
	msgAskCurrentKm = "現在の走行距離を教えてください。"
	msgHelp         = "メーター数値を送るか、『ジムニー』『ラパン』『距離上限設定』『現在の走行距離』『保険の上限距離を更新』などを送信してください。"
)

// WarningTier classifies how close a vehicle is to its insurance distance cap.
type WarningTier int

const (
	// TierNone means more than 500km of allowance remains.
	TierNone WarningTier = iota
	// TierCaution means 500km or less remains.
	TierCaution
	// TierCritical means 200km or less remains.
	TierCritical
	// TierExceeded means the allowance has been used up or overrun.
	TierExceeded
)

// TierFor returns the unique warning tier for a remaining allowance.
// Boundaries are inclusive on the low side of each band: ≤0 exceeded,
// ≤200 critical, ≤500 caution.
func TierFor(remainingKm int) WarningTier {
	switch {
	case remainingKm <= 0:
		return TierExceeded
	case remainingKm <= 200:
		return TierCritical
	case remainingKm <= 500:
		return TierCaution
	default:
		return TierNone
	}
}

// Text returns the alert text appended to status replies for this tier.
// TierNone yields an empty string.
func (t WarningTier) Text() string {
	switch t {
	case TierExceeded:
		return "\n🚨 上限距離を超過しました！ソニー損保（0120-101-789）に連絡してください。\n手続きページ: " + procedureURL
	case TierCritical:
		return "\n🚨 保険の上限距離まであとわずか（200km以下）です！\n手続きページ: " + procedureURL
	case TierCaution:
		return "\n⚠️ 保険の上限距離まで500km以下です。ご注意ください。"
	default:
		return ""
	}
}

func menuReply() models.Reply {
	actions := make([]models.MenuAction, 0, len(models.KnownVehicles())+1)
	for _, v := range models.KnownVehicles() {
		actions = append(actions, models.MenuAction{
			Label: fmt.Sprintf("%sの管理", v),
			Text:  string(v),
		})
	}
	actions = append(actions, models.MenuAction{Label: keywordReset, Text: keywordReset})
	return models.Reply{Menu: &models.Menu{
		AltText: keywordMenu,
		Text:    msgMenuPrompt,
		Actions: actions,
	}}
}

func textReply(text string) models.Reply {
	return models.Reply{Text: text}
}

func msgSelectedAskStart(name models.VehicleName) string {
	return fmt.Sprintf("%s を選択しました。走行距離管理を開始できます。開始メーターの走行距離を教えてください。", name)
}

func msgSelectedAskMax(name models.VehicleName) string {
	return fmt.Sprintf("%s を選択しました。保険の上限距離を教えてください。", name)
}

func msgStartSetAskMax(name models.VehicleName, km int) string {
	return fmt.Sprintf("%s の開始メーターを %dkm に設定しました。次に保険の上限距離を教えてください。", name, km)
}

func msgStartSet(name models.VehicleName, km int) string {
	return fmt.Sprintf("%s の開始メーターを %dkm に設定しました。", name, km)
}

func msgMaxSet(name models.VehicleName, km int) string {
	return fmt.Sprintf("%s の保険上限距離を %dkm に設定しました。", name, km)
}

func msgMaxUpdated(name models.VehicleName, km int) string {
	return fmt.Sprintf("%s の保険上限距離を %dkm に更新しました。", name, km)
}

func msgReset(name models.VehicleName) string {
	return fmt.Sprintf("%s のデータをリセットしました。", name)
}

func msgSelected(name models.VehicleName) string {
	return fmt.Sprintf("%s を選択しました。", name)
}

// statusMessage renders the full computed status for a configured record.
func statusMessage(rec *models.VehicleRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "開始メーター: %dkm\n", rec.StartKm)
	fmt.Fprintf(&b, "保険の上限距離: %dkm\n", rec.MaxKm)
	fmt.Fprintf(&b, "保険対象終了メーター: %dkm\n", rec.UpperLimitKm())
	fmt.Fprintf(&b, "現在の距離: %dkm\n", rec.LastKm)
	fmt.Fprintf(&b, "上限まで残り: %dkm", rec.RemainingKm())
	return b.String()
}

// readingMessage renders the short run/remaining report after a new reading.
func readingMessage(name models.VehicleName, rec *models.VehicleRecord) string {
	return fmt.Sprintf("%s - 現在の走行距離: %dkm\n残り: %dkm", name, rec.RunKm(), rec.RemainingKm())
}
