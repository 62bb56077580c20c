package memory

import (
	"context"
	"sync"

	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

type dayKey struct {
	subjectID string
	date      string
}

type AttendanceStore struct {
	mu   sync.RWMutex
	data map[dayKey]store.AttendanceRecord
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{
		data: make(map[dayKey]store.AttendanceRecord),
	}
}

func (s *AttendanceStore) Today(_ context.Context, subjectID, date string) (*store.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[dayKey{subjectID, date}]
	if !ok {
		return nil, nil
	}
	if rec.CheckOut != nil {
		co := *rec.CheckOut
		rec.CheckOut = &co
	}
	return &rec, nil
}

func (s *AttendanceStore) InsertCheckIn(_ context.Context, subjectID, date string, m store.Mark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := dayKey{subjectID, date}
	if _, exists := s.data[k]; exists {
		return false, nil
	}
	m.At = m.At.UTC()
	s.data[k] = store.AttendanceRecord{SubjectID: subjectID, Date: date, CheckIn: m}
	return true, nil
}

func (s *AttendanceStore) SetCheckOut(_ context.Context, subjectID, date string, m store.Mark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := dayKey{subjectID, date}
	rec, exists := s.data[k]
	if !exists || rec.CheckOut != nil {
		return false, nil
	}
	m.At = m.At.UTC()
	rec.CheckOut = &m
	s.data[k] = rec
	return true, nil
}
