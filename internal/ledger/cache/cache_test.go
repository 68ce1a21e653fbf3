package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryCacheSuite struct {
	suite.Suite
	ctx context.Context
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *MemoryCacheSuite) TestMissBeforeFirstSet() {
	c := NewMemory(time.Minute)

	payload, hit, err := c.Get(s.ctx)
	s.Require().NoError(err)
	s.False(hit)
	s.Nil(payload)
}

func (s *MemoryCacheSuite) TestSetThenGet() {
	c := NewMemory(time.Minute)

	err := c.Set(s.ctx, []byte(`{"records":[]}`))
	s.Require().NoError(err)

	payload, hit, err := c.Get(s.ctx)
	s.Require().NoError(err)
	s.True(hit)
	s.Equal([]byte(`{"records":[]}`), payload)
}

func (s *MemoryCacheSuite) TestCallerCannotMutateStoredPayload() {
	c := NewMemory(time.Minute)

	original := []byte(`{"count":1}`)
	err := c.Set(s.ctx, original)
	s.Require().NoError(err)

	original[2] = 'X'

	payload, hit, err := c.Get(s.ctx)
	s.Require().NoError(err)
	s.True(hit)
	s.Equal([]byte(`{"count":1}`), payload)
}

func (s *MemoryCacheSuite) TestExpiry() {
	c := NewMemory(20 * time.Millisecond)

	err := c.Set(s.ctx, []byte(`stale`))
	s.Require().NoError(err)

	time.Sleep(50 * time.Millisecond)

	_, hit, err := c.Get(s.ctx)
	s.Require().NoError(err)
	s.False(hit, "expired entry should read as a miss")
}

func (s *MemoryCacheSuite) TestInvalidate() {
	c := NewMemory(time.Minute)

	err := c.Set(s.ctx, []byte(`fresh`))
	s.Require().NoError(err)

	err = c.Invalidate(s.ctx)
	s.Require().NoError(err)

	_, hit, err := c.Get(s.ctx)
	s.Require().NoError(err)
	s.False(hit)
}
