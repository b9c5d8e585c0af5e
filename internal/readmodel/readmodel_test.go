package readmodel

import (
	"testing"
	"time"

	"github.com/officialjesprec/Health-Queue-sub000/internal/models"
)

func ticket(id, status, stage string, offset time.Duration) models.Ticket {
	return models.Ticket{
		TicketID:   id,
		HospitalID: "h1",
		Department: "cardiology",
		Date:       "2025-06-02",
		Status:     status,
		Stage:      stage,
		CreatedAt:  time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{models.StatusPending, "Pending Approval"},
		{models.StatusWaiting, "Waiting"},
		{models.StatusUpcoming, "Upcoming"},
		{models.StatusInProgress, "In Progress"},
		{models.StatusDelayed, "Delayed"},
		{models.StatusCompleted, "Completed"},
		{models.StatusRejected, "Rejected"},
		{"bogus", "Unknown"},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.status); got != tt.want {
			t.Errorf("StatusLabel(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestStagesProgression(t *testing.T) {
	tests := []struct {
		name  string
		stage string
		want  map[string]string
	}{
		{
			name:  "at check-in everything ahead is pending",
			stage: models.StageCheckIn,
			want: map[string]string{
				models.StageCheckIn:  StageCurrent,
				models.StageTriage:   StagePending,
				models.StageBilling:  StagePending,
				models.StageDoctor:   StagePending,
				models.StagePharmacy: StagePending,
			},
		},
		{
			name:  "mid-journey splits done and pending",
			stage: models.StageDoctor,
			want: map[string]string{
				models.StageCheckIn:  StageDone,
				models.StageTriage:   StageDone,
				models.StageBilling:  StageDone,
				models.StageDoctor:   StageCurrent,
				models.StagePharmacy: StagePending,
			},
		},
		{
			name:  "completed marks every stage done",
			stage: models.StageCompleted,
			want: map[string]string{
				models.StageCheckIn:  StageDone,
				models.StageTriage:   StageDone,
				models.StageBilling:  StageDone,
				models.StageDoctor:   StageDone,
				models.StagePharmacy: StageDone,
			},
		},
		{
			name:  "unknown stage reads all pending",
			stage: "radiology",
			want: map[string]string{
				models.StageCheckIn:  StagePending,
				models.StageTriage:   StagePending,
				models.StageBilling:  StagePending,
				models.StageDoctor:   StagePending,
				models.StagePharmacy: StagePending,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := Stages(tt.stage)
			if len(views) != len(tt.want) {
				t.Fatalf("got %d stage views, want %d", len(views), len(tt.want))
			}
			for _, view := range views {
				if view.Name == models.StageCompleted {
					t.Fatalf("terminal stage leaked into the journey view")
				}
				if tt.want[view.Name] != view.State {
					t.Errorf("stage %s = %s, want %s", view.Name, view.State, tt.want[view.Name])
				}
			}
		})
	}
}

func TestBuildQueuedTicket(t *testing.T) {
	ahead := ticket("t1", models.StatusWaiting, models.StageCheckIn, 0)
	own := ticket("t2", models.StatusWaiting, models.StageTriage, time.Minute)
	snapshot := []models.Ticket{ahead, own}

	view := Build(own, snapshot, 15)
	if !view.Queued {
		t.Fatal("waiting ticket not marked queued")
	}
	if view.Position != 2 {
		t.Fatalf("position = %d, want 2", view.Position)
	}
	if view.EstimatedWaitMinutes != 30 {
		t.Fatalf("wait = %d, want 30", view.EstimatedWaitMinutes)
	}
	if view.StatusLabel != "Waiting" {
		t.Fatalf("label = %s, want Waiting", view.StatusLabel)
	}
}

func TestBuildTerminalTicketHasNoPlacement(t *testing.T) {
	done := ticket("t1", models.StatusCompleted, models.StageCompleted, 0)
	view := Build(done, []models.Ticket{done}, 15)
	if view.Queued {
		t.Fatal("completed ticket marked queued")
	}
	if view.Position != 0 || view.EstimatedWaitMinutes != 0 {
		t.Fatalf("placement = (%d, %d), want zero", view.Position, view.EstimatedWaitMinutes)
	}
}

func TestBuildPatientSpansPartitions(t *testing.T) {
	cardio := ticket("t1", models.StatusWaiting, models.StageCheckIn, 0)
	ortho := ticket("t2", models.StatusPending, models.StageCheckIn, time.Minute)
	ortho.Department = "orthopedics"
	cardio.PatientID = "p1"
	ortho.PatientID = "p1"

	snapshot := []models.Ticket{cardio, ortho}
	view := BuildPatient("p1", []models.Ticket{cardio, ortho}, snapshot, 15)
	if view.PatientID != "p1" {
		t.Fatalf("patient id = %s", view.PatientID)
	}
	if len(view.Tickets) != 2 {
		t.Fatalf("ticket count = %d, want 2", len(view.Tickets))
	}
	if !view.Tickets[0].Queued || view.Tickets[0].Position != 1 {
		t.Fatalf("cardiology placement = %+v", view.Tickets[0])
	}
	// Each ticket ranks within its own partition, so both sit at the head.
	if !view.Tickets[1].Queued || view.Tickets[1].Position != 1 {
		t.Fatalf("orthopedics placement = %+v", view.Tickets[1])
	}
}
