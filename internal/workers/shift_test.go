package workers

import (
	"testing"
	"time"

	"doka-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(min, sec int) time.Time {
	return t0.Add(time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

func TestShiftLifecycle(t *testing.T) {
	s := StartShift(7, t0)
	assert.True(t, s.IsOpen())

	require.NoError(t, Pause(&s, at(60, 30)))
	assert.ErrorIs(t, Pause(&s, at(61, 0)), ErrAlreadyPaused)
	require.NoError(t, Resume(&s, at(75, 59)))
	assert.ErrorIs(t, Resume(&s, at(76, 0)), ErrNotPaused)

	require.NoError(t, End(&s, at(240, 45)))
	assert.False(t, s.IsOpen())
	// 240 elapsed minus floor(15m29s)
	assert.Equal(t, 225, s.TotalWorkTime)

	assert.ErrorIs(t, Pause(&s, at(241, 0)), ErrNoActiveShift)
	assert.ErrorIs(t, End(&s, at(241, 0)), ErrNoActiveShift)
}

func TestEndClosesOpenPause(t *testing.T) {
	s := StartShift(7, t0)
	require.NoError(t, Pause(&s, at(30, 0)))
	require.NoError(t, End(&s, at(50, 0)))

	require.NotNil(t, s.Pauses[0].End)
	assert.Equal(t, at(50, 0), *s.Pauses[0].End)
	assert.Equal(t, 30, s.TotalWorkTime)
}

func TestWorkMinutes(t *testing.T) {
	end := at(10, 0)
	cases := []struct {
		name  string
		shift models.WorkerShift
		now   time.Time
		want  int
	}{
		{"open shift runs to now", models.WorkerShift{StartTime: t0}, at(42, 59), 42},
		{"open pause runs to now", models.WorkerShift{StartTime: t0, Pauses: []models.ShiftPause{{Start: at(10, 0)}}}, at(25, 0), 10},
		{"closed shift ignores now", models.WorkerShift{StartTime: t0, EndTime: &end}, at(500, 0), 10},
		{"never negative", models.WorkerShift{StartTime: t0, EndTime: &end, Pauses: []models.ShiftPause{{Start: t0, End: &end}, {Start: t0, End: &end}}}, end, 0},
		{"clock skew", models.WorkerShift{StartTime: at(5, 0)}, t0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkMinutes(tc.shift, tc.now))
		})
	}
}
