package emergency

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

var now = time.Date(2026, 10, 14, 22, 10, 0, 0, time.UTC)

func newEmergency() *model.Emergency {
	return New(Request{
		UserID:      uuid.New(),
		ServiceType: model.ServiceUrgency,
		Location:    model.Location{Address: "Av. Arequipa 1234, Lima"},
	}, now)
}

func onScene(t *testing.T) *model.Emergency {
	t.Helper()

	e, err := Assign(newEmergency(), "AMB-07", now)
	require.NoError(t, err)
	e, err = Advance(e, model.EmergencyEnRoute, "", now)
	require.NoError(t, err)
	e, err = Advance(e, model.EmergencyOnScene, "", now)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	e := newEmergency()
	assert.Equal(t, model.EmergencyRequested, e.Status)
	assert.Equal(t, model.KindMedical, e.Kind)
	require.Len(t, e.History, 1)
	assert.Nil(t, e.MedicalRecord)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from model.EmergencyStatus
		to   model.EmergencyStatus
		ok   bool
	}{
		{model.EmergencyRequested, model.EmergencyAssigned, true},
		{model.EmergencyRequested, model.EmergencyCompleted, false},
		{model.EmergencyRequested, model.EmergencyOnScene, false},
		{model.EmergencyAssigned, model.EmergencyRequested, false},
		{model.EmergencyEnRoute, model.EmergencyCancelled, true},
		{model.EmergencyOnScene, model.EmergencyCancelled, false},
		{model.EmergencyOnScene, model.EmergencyCompleted, true},
		{model.EmergencyTransferring, model.EmergencyCompleted, true},
		{model.EmergencyCompleted, model.EmergencyRequested, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAdvance_RejectsInvalidJump(t *testing.T) {
	e := newEmergency()

	_, err := Advance(e, model.EmergencyOnScene, "", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Advance(e, model.EmergencyCompleted, "", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Advance(e, "teleported", "", now)
	assert.ErrorIs(t, err, ErrUnknownStatus)

	assert.Equal(t, model.EmergencyRequested, e.Status)
}

func TestAssign(t *testing.T) {
	_, err := Assign(newEmergency(), " ", now)
	assert.ErrorIs(t, err, ErrUnitRequired)

	e, err := Assign(newEmergency(), "AMB-07", now)
	require.NoError(t, err)
	assert.Equal(t, "AMB-07", e.AssignedUnit)
	assert.Equal(t, model.EmergencyAssigned, e.Status)
	assert.Len(t, e.History, 2)
}

func TestSetEstimatedArrival(t *testing.T) {
	e := newEmergency()

	_, err := SetEstimatedArrival(e, 0, now)
	assert.ErrorIs(t, err, ErrInvalidETA)

	next, err := SetEstimatedArrival(e, 12, now)
	require.NoError(t, err)
	require.NotNil(t, next.EstimatedArrivalMins)
	assert.Equal(t, 12, *next.EstimatedArrivalMins)
	assert.Nil(t, e.EstimatedArrivalMins)

	cancelled, err := Advance(e, model.EmergencyCancelled, "caller hung up", now)
	require.NoError(t, err)
	_, err = SetEstimatedArrival(cancelled, 5, now)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestComplete(t *testing.T) {
	_, _, err := Complete(newEmergency(), model.MedicalRecord{Diagnosis: "x", AttendedBy: "Dr. Rojas"}, now)
	assert.ErrorIs(t, err, ErrInvalidTransition, "record only on terminal status reachable from on_scene")

	e := onScene(t)

	_, _, err = Complete(e, model.MedicalRecord{AttendedBy: "Dr. Rojas"}, now)
	assert.ErrorIs(t, err, ErrRecordIncomplete)

	_, _, err = Complete(e, model.MedicalRecord{Diagnosis: "x", AttendedBy: "Dr. Rojas", ActualServiceType: "bogus"}, now)
	assert.ErrorIs(t, err, ErrUnknownServiceType)

	done, reclassified, err := Complete(e, model.MedicalRecord{Diagnosis: "crisis hipertensiva", AttendedBy: "Dr. Rojas"}, now)
	require.NoError(t, err)
	assert.False(t, reclassified)
	assert.Equal(t, model.EmergencyCompleted, done.Status)
	require.NotNil(t, done.MedicalRecord)
	assert.Equal(t, model.ServiceUrgency, done.MedicalRecord.ActualServiceType)
	assert.Nil(t, e.MedicalRecord)

	_, _, err = Complete(done, model.MedicalRecord{Diagnosis: "x", AttendedBy: "y"}, now)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestComplete_Reclassified(t *testing.T) {
	e := onScene(t)

	done, reclassified, err := Complete(e, model.MedicalRecord{
		Diagnosis:         "fractura expuesta",
		AttendedBy:        "Dr. Rojas",
		ActualServiceType: model.ServiceEmergency,
	}, now)
	require.NoError(t, err)
	assert.True(t, reclassified)
	assert.True(t, done.MedicalRecord.Reclassified)
	assert.Equal(t, model.ServiceUrgency, done.ServiceType)

	_, _, err = Complete(onScene(t), model.MedicalRecord{
		Diagnosis:         "x",
		AttendedBy:        "y",
		ActualServiceType: "massage",
	}, now)
	assert.Error(t, err)
}
