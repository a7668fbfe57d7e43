package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcrelay/internal/correlation/models"
	"vcrelay/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	now   time.Time
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemory(15*time.Minute, WithClock(func() time.Time { return s.now }))
}

func (s *MemoryStoreSuite) TestGetPut() {
	s.Run("returns stored record when found", func() {
		err := s.store.Put(context.Background(), "abc123", models.Pending("abc123"))
		s.Require().NoError(err)

		record, err := s.store.Get(context.Background(), "abc123")
		s.Require().NoError(err)
		s.Equal(models.StatusRequestCreated, record.Status)
		s.Equal("Waiting for QR code to be scanned", record.Message)
		s.Equal("abc123", record.Token)
	})

	s.Run("returns ErrNotFound for unknown token", func() {
		_, err := s.store.Get(context.Background(), "zzz")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("get returns a copy", func() {
		s.Require().NoError(s.store.Put(context.Background(), "t1", models.Pending("t1")))

		record, err := s.store.Get(context.Background(), "t1")
		s.Require().NoError(err)
		record.Status = models.StatusIssuanceError

		again, err := s.store.Get(context.Background(), "t1")
		s.Require().NoError(err)
		s.Equal(models.StatusRequestCreated, again.Status)
	})
}

func (s *MemoryStoreSuite) TestUpdate() {
	s.Run("applies mutation atomically", func() {
		s.Require().NoError(s.store.Put(context.Background(), "t1", models.Pending("t1")))

		err := s.store.Update(context.Background(), "t1", func(r *models.Record) error {
			r.Status = models.StatusIssuanceSuccessful
			r.Message = "Credential successfully issued"
			return nil
		})
		s.Require().NoError(err)

		record, err := s.store.Get(context.Background(), "t1")
		s.Require().NoError(err)
		s.Equal(models.StatusIssuanceSuccessful, record.Status)
	})

	s.Run("update on unknown token returns ErrNotFound", func() {
		err := s.store.Update(context.Background(), "missing", func(r *models.Record) error {
			r.Status = models.StatusIssuanceSuccessful
			return nil
		})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("mutation error leaves record untouched", func() {
		s.Require().NoError(s.store.Put(context.Background(), "t2", models.Pending("t2")))

		boom := context.DeadlineExceeded
		err := s.store.Update(context.Background(), "t2", func(r *models.Record) error {
			r.Status = models.StatusIssuanceError
			return boom
		})
		s.Require().ErrorIs(err, boom)

		record, err := s.store.Get(context.Background(), "t2")
		s.Require().NoError(err)
		s.Equal(models.StatusRequestCreated, record.Status)
	})
}

func (s *MemoryStoreSuite) TestExpiry() {
	s.Run("expired entries read as unknown", func() {
		s.Require().NoError(s.store.Put(context.Background(), "t1", models.Pending("t1")))

		s.now = s.now.Add(15 * time.Minute)
		_, err := s.store.Get(context.Background(), "t1")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("writes refresh the TTL", func() {
		s.Require().NoError(s.store.Put(context.Background(), "t1", models.Pending("t1")))

		s.now = s.now.Add(10 * time.Minute)
		err := s.store.Update(context.Background(), "t1", func(r *models.Record) error {
			r.Status = models.StatusRequestRetrieved
			return nil
		})
		s.Require().NoError(err)

		s.now = s.now.Add(10 * time.Minute)
		record, err := s.store.Get(context.Background(), "t1")
		s.Require().NoError(err)
		s.Equal(models.StatusRequestRetrieved, record.Status)
	})
}

func (s *MemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Put(context.Background(), "t1", models.Pending("t1")))
	s.Require().NoError(s.store.Delete(context.Background(), "t1"))

	_, err := s.store.Get(context.Background(), "t1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Delete(context.Background(), "t1"))
}
