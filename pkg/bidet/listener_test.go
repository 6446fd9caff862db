package bidet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// ListenerSuite exercises notification capture against the fake transport.
type ListenerSuite struct {
	suite.Suite

	conn     *fakeConnection
	char     *fakeCharacteristic
	listener *Listener
}

func TestListenerSuite(t *testing.T) {
	suite.Run(t, new(ListenerSuite))
}

func (s *ListenerSuite) SetupTest() {
	s.char = &fakeCharacteristic{
		uuid: "ffe1",
		caps: device.CapWriteNoResponse | device.CapNotify,
	}
	s.conn = &fakeConnection{
		connected: true,
		services: []*fakeService{
			{uuid: "ffe0", chars: []*fakeCharacteristic{s.char}},
		},
	}
	s.listener = NewListener(testLogger())
}

func (s *ListenerSuite) TearDownTest() {
	s.listener.Close()
}

func (s *ListenerSuite) TestKeepsLastPayload() {
	// TEST SCENARIO: only the most recent notification is retained.
	s.Require().NoError(s.listener.Attach(s.conn))

	_, ok := s.listener.LastPayload()
	s.False(ok)

	s.char.notify([]byte{0x01, 0x02})
	s.char.notify([]byte{0x03, 0x04, 0x05})

	payload, ok := s.listener.LastPayload()
	s.Require().True(ok)
	s.Equal([]byte{0x03, 0x04, 0x05}, payload)
}

func (s *ListenerSuite) TestLastPayloadIsACopy() {
	s.Require().NoError(s.listener.Attach(s.conn))
	s.char.notify([]byte{0xaa, 0xbb})

	first, ok := s.listener.LastPayload()
	s.Require().True(ok)
	first[0] = 0x00

	second, ok := s.listener.LastPayload()
	s.Require().True(ok)
	s.Equal([]byte{0xaa, 0xbb}, second)
}

func (s *ListenerSuite) TestStreamsEvents() {
	s.Require().NoError(s.listener.Attach(s.conn))
	s.char.notify([]byte{0x55, 0xaa})

	event := <-s.listener.Events()
	s.Equal("ffe1", event.UUID)
	s.Equal([]byte{0x55, 0xaa}, event.Payload)
	s.False(event.ReceivedAt.IsZero())
}

func (s *ListenerSuite) TestAttachWithoutNotifySupport() {
	s.char.caps = device.CapWriteNoResponse

	var notFound *device.NotFoundError
	err := s.listener.Attach(s.conn)
	s.Require().Error(err)
	s.ErrorAs(err, &notFound)
}

func (s *ListenerSuite) TestAttachSubscribeFailure() {
	s.char.subscribeErr = errors.New("subscribe rejected")
	s.ErrorIs(s.listener.Attach(s.conn), s.char.subscribeErr)
}
