package flow

import (
	"strings"
	"testing"

	"github.com/kfujino/odowatch/internal/models"
)

func TestNewUserReadingSeedsStartAndAsksForCap(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()

	res := e.Process(s, "30000")

	rec := s.Vehicles[models.VehicleJimny]
	if rec.StartKm != 30000 {
		t.Errorf("StartKm = %d, want 30000", rec.StartKm)
	}
	if s.State != models.StateAwaitingMaxKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingMaxKm)
	}
	if !strings.Contains(res.Reply.Text, "開始メーターを 30000km に設定しました") {
		t.Errorf("reply missing start confirmation; got %q", res.Reply.Text)
	}
	if !strings.Contains(res.Reply.Text, "保険の上限距離") {
		t.Errorf("reply missing cap prompt; got %q", res.Reply.Text)
	}
	if len(res.Changed) != 1 || res.Changed[0] != models.VehicleJimny {
		t.Errorf("Changed = %v, want [%s]", res.Changed, models.VehicleJimny)
	}
}

func TestTrackingScenario(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()

	e.Process(s, "30000")
	res := e.Process(s, "5000")

	rec := s.Vehicles[models.VehicleJimny]
	if rec.MaxKm != 5000 {
		t.Fatalf("MaxKm = %d, want 5000", rec.MaxKm)
	}
	if s.State != models.StateNone {
		t.Fatalf("state = %q, want none", s.State)
	}
	if !strings.Contains(res.Reply.Text, "保険上限距離を 5000km に設定しました") {
		t.Errorf("reply missing cap confirmation; got %q", res.Reply.Text)
	}

	// Fresh reading well inside the allowance: no warning tier.
	res = e.Process(s, "30300")
	if rec.LastKm != 30300 {
		t.Errorf("LastKm = %d, want 30300", rec.LastKm)
	}
	if rec.RunKm() != 300 || rec.RemainingKm() != 4700 {
		t.Errorf("run/remaining = %d/%d, want 300/4700", rec.RunKm(), rec.RemainingKm())
	}
	if !strings.Contains(res.Reply.Text, "現在の走行距離: 300km") || !strings.Contains(res.Reply.Text, "残り: 4700km") {
		t.Errorf("reply missing run/remaining report; got %q", res.Reply.Text)
	}
	if strings.Contains(res.Reply.Text, "🚨") || strings.Contains(res.Reply.Text, "⚠️") {
		t.Errorf("reply should carry no warning tier; got %q", res.Reply.Text)
	}

	// 100km left: critical tier, not exceeded, not caution.
	res = e.Process(s, "34900")
	if rec.RunKm() != 4900 || rec.RemainingKm() != 100 {
		t.Errorf("run/remaining = %d/%d, want 4900/100", rec.RunKm(), rec.RemainingKm())
	}
	if !strings.Contains(res.Reply.Text, "200km以下") {
		t.Errorf("reply missing critical alert; got %q", res.Reply.Text)
	}
	if !strings.Contains(res.Reply.Text, procedureURL) {
		t.Errorf("reply missing procedure link; got %q", res.Reply.Text)
	}
	if strings.Contains(res.Reply.Text, "超過") || strings.Contains(res.Reply.Text, "500km以下") {
		t.Errorf("reply carries wrong tier; got %q", res.Reply.Text)
	}
}

func TestResetZeroesOnlySelectedVehicle(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 30000, MaxKm: 5000, LastKm: 34900}
	s.Vehicles[models.VehicleLapin] = &models.VehicleRecord{StartKm: 1000, MaxKm: 2000, LastKm: 1500}

	res := e.Process(s, "リセット")

	if got := *s.Vehicles[models.VehicleJimny]; got != (models.VehicleRecord{}) {
		t.Errorf("selected record not zeroed: %+v", got)
	}
	if got := *s.Vehicles[models.VehicleLapin]; got != (models.VehicleRecord{StartKm: 1000, MaxKm: 2000, LastKm: 1500}) {
		t.Errorf("other record mutated: %+v", got)
	}
	if s.SelectedVehicle != models.VehicleJimny {
		t.Errorf("selection changed to %s", s.SelectedVehicle)
	}
	if s.State != models.StateNone {
		t.Errorf("state = %q, want none", s.State)
	}
	if !strings.Contains(res.Reply.Text, "リセットしました") {
		t.Errorf("reply missing reset confirmation; got %q", res.Reply.Text)
	}
	if len(res.Changed) != 1 || res.Changed[0] != models.VehicleJimny {
		t.Errorf("Changed = %v, want [%s]", res.Changed, models.VehicleJimny)
	}

	// Re-selecting the reset vehicle starts over with the start prompt.
	res = e.Process(s, string(models.VehicleJimny))
	if s.State != models.StateAwaitingStartKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingStartKm)
	}
	if !strings.Contains(res.Reply.Text, "開始メーター") {
		t.Errorf("reply missing start prompt; got %q", res.Reply.Text)
	}
}

func TestVehicleSelectionEmptyRecordNeverReportsStatus(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()

	res := e.Process(s, string(models.VehicleLapin))

	if s.SelectedVehicle != models.VehicleLapin {
		t.Errorf("selection = %s, want %s", s.SelectedVehicle, models.VehicleLapin)
	}
	if s.State != models.StateAwaitingStartKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingStartKm)
	}
	if strings.Contains(res.Reply.Text, "上限まで残り") {
		t.Errorf("empty record must not produce a status report; got %q", res.Reply.Text)
	}
	if len(res.Changed) != 0 {
		t.Errorf("selection must not declare mutations; got %v", res.Changed)
	}
}

func TestVehicleSelectionWithStartSetAsksForCap(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleLapin].StartKm = 12000

	e.Process(s, string(models.VehicleLapin))

	if s.State != models.StateAwaitingMaxKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingMaxKm)
	}
}

func TestVehicleSelectionFullRecordReportsStatus(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 30000, MaxKm: 5000, LastKm: 30300}

	res := e.Process(s, string(models.VehicleJimny))

	if s.State != models.StateNone {
		t.Errorf("state = %q, want none", s.State)
	}
	for _, want := range []string{
		"開始メーター: 30000km",
		"保険の上限距離: 5000km",
		"保険対象終了メーター: 35000km",
		"現在の距離: 30300km",
		"上限まで残り: 4700km",
	} {
		if !strings.Contains(res.Reply.Text, want) {
			t.Errorf("status reply missing %q; got %q", want, res.Reply.Text)
		}
	}
}

func TestVehicleSelectionStatusCarriesExceededTier(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 10000, MaxKm: 5000, LastKm: 15200}

	res := e.Process(s, string(models.VehicleJimny))

	if !strings.Contains(res.Reply.Text, "超過しました") {
		t.Errorf("status reply missing exceeded alert; got %q", res.Reply.Text)
	}
	if !strings.Contains(res.Reply.Text, "上限まで残り: -200km") {
		t.Errorf("negative remaining should flow through unvalidated; got %q", res.Reply.Text)
	}
}

func TestRepeatReadingIsIdempotent(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 1000, MaxKm: 500}

	first := e.Process(s, "1200")
	second := e.Process(s, "1200")

	if first.Reply.Text != second.Reply.Text {
		t.Errorf("replies differ:\n%q\n%q", first.Reply.Text, second.Reply.Text)
	}
	if s.Vehicles[models.VehicleJimny].LastKm != 1200 {
		t.Errorf("LastKm = %d, want 1200", s.Vehicles[models.VehicleJimny].LastKm)
	}
}

func TestMenuKeywordsEmitMenuWithoutMutation(t *testing.T) {
	e := NewEngine()
	for _, keyword := range []string{"メニュー", "スタート"} {
		s := models.NewUserSession()
		s.State = models.StateAwaitingMaxKm

		res := e.Process(s, keyword)

		if res.Reply.Menu == nil {
			t.Fatalf("%s: expected a menu reply", keyword)
		}
		if len(res.Reply.Menu.Actions) != 3 {
			t.Errorf("%s: actions = %d, want 3", keyword, len(res.Reply.Menu.Actions))
		}
		if res.Reply.Menu.Actions[0].Text != string(models.VehicleJimny) {
			t.Errorf("%s: first action sends %q", keyword, res.Reply.Menu.Actions[0].Text)
		}
		if s.State != models.StateAwaitingMaxKm {
			t.Errorf("%s: menu must not change state; got %q", keyword, s.State)
		}
		if len(res.Changed) != 0 {
			t.Errorf("%s: menu must not declare mutations; got %v", keyword, res.Changed)
		}
	}
}

func TestSetLimitFlowSetsStartOnly(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()

	e.Process(s, "距離上限設定")
	if s.State != models.StateAwaitingStartKmForLimit {
		t.Fatalf("state = %q, want %q", s.State, models.StateAwaitingStartKmForLimit)
	}

	e.Process(s, "8000")
	rec := s.Vehicles[models.VehicleJimny]
	if rec.StartKm != 8000 {
		t.Errorf("StartKm = %d, want 8000", rec.StartKm)
	}
	if rec.LastKm != 0 {
		t.Errorf("limit-setting path must not seed LastKm; got %d", rec.LastKm)
	}
	if s.State != models.StateAwaitingMaxKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingMaxKm)
	}
}

func TestSelectionStartFlowSeedsLastKm(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()

	e.Process(s, string(models.VehicleLapin))
	e.Process(s, "9000")

	rec := s.Vehicles[models.VehicleLapin]
	if rec.StartKm != 9000 || rec.LastKm != 9000 {
		t.Errorf("start/last = %d/%d, want 9000/9000", rec.StartKm, rec.LastKm)
	}
	if s.State != models.StateAwaitingMaxKm {
		t.Errorf("state = %q, want %q", s.State, models.StateAwaitingMaxKm)
	}
}

func TestUpdateMaxFlowLeavesStartUntouched(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 30000, MaxKm: 5000, LastKm: 31000}

	e.Process(s, "保険の上限距離を更新")
	if s.State != models.StateUpdatingMaxKm {
		t.Fatalf("state = %q, want %q", s.State, models.StateUpdatingMaxKm)
	}

	res := e.Process(s, "6000")
	rec := s.Vehicles[models.VehicleJimny]
	if rec.MaxKm != 6000 {
		t.Errorf("MaxKm = %d, want 6000", rec.MaxKm)
	}
	if rec.StartKm != 30000 || rec.LastKm != 31000 {
		t.Errorf("start/last mutated: %d/%d", rec.StartKm, rec.LastKm)
	}
	if !strings.Contains(res.Reply.Text, "更新しました") {
		t.Errorf("reply missing update confirmation; got %q", res.Reply.Text)
	}
}

func TestCurrentKeywordThenReading(t *testing.T) {
	e := NewEngine()
	s := models.NewUserSession()
	s.Vehicles[models.VehicleJimny] = &models.VehicleRecord{StartKm: 30000, MaxKm: 5000}

	e.Process(s, "現在の走行距離")
	if s.State != models.StateAwaitingCurrentKm {
		t.Fatalf("state = %q, want %q", s.State, models.StateAwaitingCurrentKm)
	}

	e.Process(s, "32000")
	if s.Vehicles[models.VehicleJimny].LastKm != 32000 {
		t.Errorf("LastKm = %d, want 32000", s.Vehicles[models.VehicleJimny].LastKm)
	}
	if s.State != models.StateNone {
		t.Errorf("state = %q, want none", s.State)
	}
}

func TestUnrecognizedTextYieldsHelp(t *testing.T) {
	e := NewEngine()
	for _, text := range []string{"こんにちは", "", "12km", "999999999999999999999999"} {
		s := models.NewUserSession()
		res := e.Process(s, text)
		if res.Reply.Text != msgHelp {
			t.Errorf("%q: reply = %q, want help message", text, res.Reply.Text)
		}
		if len(res.Changed) != 0 {
			t.Errorf("%q: help branch must not declare mutations", text)
		}
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		remaining int
		want      WarningTier
	}{
		{-1000, TierExceeded},
		{-1, TierExceeded},
		{0, TierExceeded},
		{1, TierCritical},
		{100, TierCritical},
		{200, TierCritical},
		{201, TierCaution},
		{500, TierCaution},
		{501, TierNone},
		{4700, TierNone},
	}
	for _, c := range cases {
		if got := TierFor(c.remaining); got != c.want {
			t.Errorf("TierFor(%d) = %d, want %d", c.remaining, got, c.want)
		}
	}
	if TierNone.Text() != "" {
		t.Errorf("TierNone must add no text; got %q", TierNone.Text())
	}
}
