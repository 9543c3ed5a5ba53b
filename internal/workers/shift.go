// Package workers manages worker accounts and their shift clock.
package workers

import (
	"errors"
	"time"

	"doka-backend/internal/models"
)

var (
	ErrShiftOpen     = errors.New("worker already has an open shift")
	ErrNoActiveShift = errors.New("worker has no open shift")
	ErrAlreadyPaused = errors.New("shift is already paused")
	ErrNotPaused     = errors.New("shift is not paused")
)

func StartShift(workerID uint, now time.Time) models.WorkerShift {
	return models.WorkerShift{WorkerID: workerID, StartTime: now, Pauses: []models.ShiftPause{}}
}

func Pause(s *models.WorkerShift, now time.Time) error {
	if !s.IsOpen() {
		return ErrNoActiveShift
	}
	if s.IsPaused() {
		return ErrAlreadyPaused
	}
	s.Pauses = append(s.Pauses, models.ShiftPause{Start: now})
	return nil
}

func Resume(s *models.WorkerShift, now time.Time) error {
	if !s.IsOpen() {
		return ErrNoActiveShift
	}
	if !s.IsPaused() {
		return ErrNotPaused
	}
	s.Pauses[len(s.Pauses)-1].End = &now
	return nil
}

// End closes a pause still running at now, then stamps the end time and the
// worked minutes.
func End(s *models.WorkerShift, now time.Time) error {
	if !s.IsOpen() {
		return ErrNoActiveShift
	}
	if s.IsPaused() {
		s.Pauses[len(s.Pauses)-1].End = &now
	}
	s.EndTime = &now
	s.TotalWorkTime = WorkMinutes(*s, now)
	return nil
}

// WorkMinutes is whole elapsed minutes minus the whole minutes of each pause,
// never below zero. Open shifts and pauses run until now.
func WorkMinutes(s models.WorkerShift, now time.Time) int {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	total := wholeMinutes(end.Sub(s.StartTime))
	for _, p := range s.Pauses {
		pend := now
		if p.End != nil {
			pend = *p.End
		}
		total -= wholeMinutes(pend.Sub(p.Start))
	}
	return max(total, 0)
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
