package codec

import (
	"testing"
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type CodecSuite struct {
	suite.Suite
}

func (s *CodecSuite) TestDeterministic(t provider.T) {
	v := map[string]int{"b": 2, "a": 1, "c": 3}

	first, err := Marshal(v)
	require.NoError(t, err)
	second, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func (s *CodecSuite) TestTicketPreservesTime(t provider.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	in := model.Ticket{ID: "T-1", Title: "Login page", Status: model.TicketInProgress, CreatedAt: created}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out model.Ticket
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Status, out.Status)
	assert.True(t, created.Equal(out.CreatedAt))
}

func TestCodecSuite(t *testing.T) {
	suite.RunSuite(t, new(CodecSuite))
}
