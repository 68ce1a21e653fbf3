package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

type RecordSuite struct {
	suite.Suite
	validID         id.RecordID
	validLabel      string
	validOwner      id.OwnerID
	validHandle     id.Handle
	validCiphertext []byte
	now             time.Time
}

func TestRecordSuite(t *testing.T) {
	suite.Run(t, new(RecordSuite))
}

func (s *RecordSuite) SetupTest() {
	s.validID = id.RecordID("site-alpha")
	s.validLabel = "Weather station, north ridge"
	s.validOwner = id.OwnerID("owner-7f3a")
	s.validHandle = id.Handle("a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8")
	s.validCiphertext = []byte{0x01, 0x02, 0x03, 0x04}
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RecordSuite) newValid() *models.Record {
	rec, err := models.NewRecord(s.validID, s.validLabel, s.validOwner, s.validHandle, s.validCiphertext, 59_911_491, s.now)
	s.Require().NoError(err)
	return rec
}

func (s *RecordSuite) TestConstructionInvariants() {
	s.Run("rejects empty record id", func() {
		_, err := models.NewRecord("", s.validLabel, s.validOwner, s.validHandle, s.validCiphertext, 0, s.now)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvariantViolation))
		s.Contains(err.Error(), "record id")
	})

	s.Run("rejects empty label", func() {
		_, err := models.NewRecord(s.validID, "", s.validOwner, s.validHandle, s.validCiphertext, 0, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "label")
	})

	s.Run("rejects overlong label", func() {
		_, err := models.NewRecord(s.validID, strings.Repeat("x", 129), s.validOwner, s.validHandle, s.validCiphertext, 0, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "128")
	})

	s.Run("rejects empty owner", func() {
		_, err := models.NewRecord(s.validID, s.validLabel, "", s.validHandle, s.validCiphertext, 0, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "owner")
	})

	s.Run("rejects empty handle", func() {
		_, err := models.NewRecord(s.validID, s.validLabel, s.validOwner, "", s.validCiphertext, 0, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "handle")
	})

	s.Run("rejects empty ciphertext", func() {
		_, err := models.NewRecord(s.validID, s.validLabel, s.validOwner, s.validHandle, nil, 0, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "ciphertext")
	})

	s.Run("accepts valid inputs", func() {
		rec := s.newValid()
		s.Equal(s.validID, rec.ID)
		s.Equal(s.validOwner, rec.Owner)
		s.Equal(s.validHandle, rec.CiphertextHandle)
		s.Equal(int64(59_911_491), rec.PublicCoord)
		s.Equal(s.now, rec.CreatedAt)
		s.False(rec.Revealed)
		s.Nil(rec.RevealedValue)
		s.Nil(rec.RevealedAt)
		s.Equal(models.StatusRegistered, rec.Status())
	})

	s.Run("accepts label at exactly 128 characters", func() {
		_, err := models.NewRecord(s.validID, strings.Repeat("x", 128), s.validOwner, s.validHandle, s.validCiphertext, 0, s.now)
		s.Require().NoError(err)
	})
}

func (s *RecordSuite) TestRevealTransition() {
	s.Run("reveal sets terminal state", func() {
		rec := s.newValid()
		revealedAt := s.now.Add(time.Hour)

		s.Require().NoError(rec.Reveal(10_757_933, revealedAt))

		s.True(rec.Revealed)
		s.Require().NotNil(rec.RevealedValue)
		s.Equal(int64(10_757_933), *rec.RevealedValue)
		s.Require().NotNil(rec.RevealedAt)
		s.Equal(revealedAt, *rec.RevealedAt)
		s.Equal(models.StatusRevealed, rec.Status())
	})

	s.Run("second reveal is rejected and state unchanged", func() {
		rec := s.newValid()
		s.Require().NoError(rec.Reveal(100, s.now))

		err := rec.Reveal(200, s.now.Add(time.Minute))
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvariantViolation))
		s.Equal(int64(100), *rec.RevealedValue)
	})

	s.Run("reveal accepts negative and zero values", func() {
		rec := s.newValid()
		s.Require().NoError(rec.CanReveal())
		rec.ApplyReveal(-33_868_820, s.now)
		s.Equal(int64(-33_868_820), *rec.RevealedValue)

		other := s.newValid()
		s.Require().NoError(other.Reveal(0, s.now))
		s.True(other.Revealed)
		s.Equal(int64(0), *other.RevealedValue)
	})
}

func (s *RecordSuite) TestClone() {
	s.Run("clone is independent of original", func() {
		rec := s.newValid()
		s.Require().NoError(rec.Reveal(42, s.now))

		cp := rec.Clone()
		cp.Ciphertext[0] = 0xFF
		*cp.RevealedValue = 99

		s.Equal(byte(0x01), rec.Ciphertext[0])
		s.Equal(int64(42), *rec.RevealedValue)
	})
}
