package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"hello":"world"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})
	p := NewProducer(mock)
	defer p.Close()

	require.NoError(t, p.SendMessage("topic", "key", `{"hello":"world"}`))
}

func TestSendMessageFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducer(mock)
	defer p.Close()

	require.ErrorIs(t, p.SendMessage("topic", "key", "v"), sarama.ErrOutOfBrokers)
}
