package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO appointment_events").
		WithArgs(pgxmock.AnyArg(), TypeAppointmentBooked, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	payload := AppointmentBookedV1{
		EventID:       uuid.NewString(),
		AppointmentID: 12,
		DoctorID:      4,
		Date:          "2026-09-07",
		Time:          "09:00",
	}
	_, err = Append(context.Background(), mock, TypeAppointmentBooked, payload)
	require.NoError(t, err)

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "type", "payload", "created_at"}).
		AddRow(id, TypeAppointmentBooked, []byte(`{"appointment_id":12}`), now)
	mock.ExpectQuery("SELECT id, type, payload, created_at").
		WithArgs(int32(10)).
		WillReturnRows(rows)

	entries, err := Recent(context.Background(), mock, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, TypeAppointmentBooked, entries[0].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRejectsUnmarshalablePayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = Append(context.Background(), mock, TypeAppointmentBooked, make(chan int))
	assert.Error(t, err)
}
