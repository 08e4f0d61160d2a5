package model

import (
	"testing"
	"time"
)

func TestParticipationState(t *testing.T) {
	now := time.Now().UTC()

	p := &EventParticipation{}
	if p.State() != StateRegistered {
		t.Errorf("State() = %q, хотели %q", p.State(), StateRegistered)
	}

	p.StartedAt = &now
	if p.State() != StateActive {
		t.Errorf("State() = %q, хотели %q", p.State(), StateActive)
	}

	p.FinishedAt = &now
	if p.State() != StateCompleted {
		t.Errorf("State() = %q, хотели %q", p.State(), StateCompleted)
	}
}

func TestAtCapacity(t *testing.T) {
	limit := 2

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"без лимита", Event{EnrolledCount: 100}, false},
		{"ниже лимита", Event{MaxParticipants: &limit, EnrolledCount: 1}, false},
		{"на лимите", Event{MaxParticipants: &limit, EnrolledCount: 2}, true},
		{"выше лимита", Event{MaxParticipants: &limit, EnrolledCount: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.AtCapacity(); got != tt.want {
				t.Errorf("AtCapacity() = %v, хотели %v", got, tt.want)
			}
		})
	}
}

func TestDeriveActive(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	pastEnd := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	// Окно идёт сейчас
	e := Event{StartAt: &past, EndAt: &future}
	e.DeriveActive(now)
	if !e.Active {
		t.Error("Событие в текущем окне должно быть активным")
	}

	// Окно в прошлом
	e2 := Event{StartAt: &past, EndAt: &pastEnd, Active: true}
	e2.DeriveActive(now)
	if e2.Active {
		t.Error("Событие с окном в прошлом не должно быть активным")
	}

	// Без окна флаг управляется вручную и не меняется
	e3 := Event{Active: true}
	e3.DeriveActive(now)
	if !e3.Active {
		t.Error("DeriveActive без окна не должен менять флаг")
	}
}

func TestEventTimeHelpers(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	pastEnd := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	futureEnd := now.Add(2 * time.Hour)

	upcoming := Event{StartAt: &future, EndAt: &futureEnd}
	if !upcoming.IsUpcoming(now) || upcoming.IsOngoing(now) || upcoming.IsPast(now) {
		t.Error("Будущее событие классифицировано неверно")
	}

	ongoing := Event{StartAt: &past, EndAt: &future}
	if ongoing.IsUpcoming(now) || !ongoing.IsOngoing(now) || ongoing.IsPast(now) {
		t.Error("Идущее событие классифицировано неверно")
	}

	finished := Event{StartAt: &past, EndAt: &pastEnd}
	if finished.IsUpcoming(now) || finished.IsOngoing(now) || !finished.IsPast(now) {
		t.Error("Прошедшее событие классифицировано неверно")
	}
}

func TestKnownEventType(t *testing.T) {
	for _, valid := range []string{EventTypeTrail, EventTypeRace, EventTypeCasual} {
		if !KnownEventType(valid) {
			t.Errorf("KnownEventType(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "sprint", "TRAIL"} {
		if KnownEventType(invalid) {
			t.Errorf("KnownEventType(%q) = true", invalid)
		}
	}
}
