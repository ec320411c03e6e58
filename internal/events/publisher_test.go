package events

import (
	"testing"

	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type PublisherTestSuite struct {
	suite.Suite
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (suite *PublisherTestSuite) TestPublisherFunc() {
	var received []types.Event

	publisher := PublisherFunc(func(event types.Event) {
		received = append(received, event)
	})

	publisher.Publish(types.NewEvent(types.EventOrderFilled, map[string]string{"id": "o-1"}))
	publisher.Publish(types.NewEvent(types.EventAccountUpdated, nil))

	suite.Require().Len(received, 2)
	suite.Equal(types.EventOrderFilled, received[0].Type)
	suite.Equal(types.EventAccountUpdated, received[1].Type)
}

func (suite *PublisherTestSuite) TestNopPublisher() {
	suite.NotPanics(func() {
		NewNopPublisher().Publish(types.NewEvent(types.EventSignalSkipped, nil))
	})
}
