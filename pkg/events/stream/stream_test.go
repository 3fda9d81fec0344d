package stream_test

import (
	"context"
	"log"
	"testing"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/events/stream"
)

func TestHub(t *testing.T) {
	ack := func(requestId string) domain.RequestAck {
		return domain.RequestAck{RequestId: requestId, State: domain.Success}
	}

	t.Run("it delivers a published ack to every subscriber", func(t *testing.T) {
		hub := stream.NewHub(log.Default())

		chA, cancelA := hub.Subscribe()
		defer cancelA()
		chB, cancelB := hub.Subscribe()
		defer cancelB()

		if err := hub.Publish(context.Background(), ack("req-42")); err != nil {
			t.Fatal(err)
		}

		for name, ch := range map[string]<-chan domain.RequestAck{
			"A": chA, "B": chB,
		} {
			select {
			case got := <-ch:
				if got.RequestId != "req-42" {
					t.Errorf("subscriber %s: unexpected ack: %s", name, got.RequestId)
				}
			default:
				t.Errorf("subscriber %s received nothing", name)
			}
		}
	})

	t.Run("it does not deliver to a cancelled subscriber", func(t *testing.T) {
		hub := stream.NewHub(log.Default())

		ch, cancel := hub.Subscribe()
		cancel()

		if err := hub.Publish(context.Background(), ack("req-1")); err != nil {
			t.Fatal(err)
		}

		select {
		case got := <-ch:
			t.Errorf("cancelled subscriber received ack: %+v", got)
		default:
		}
	})

	t.Run("it drops acks for a lagging subscriber instead of blocking", func(t *testing.T) {
		hub := stream.NewHub(log.Default())

		ch, cancel := hub.Subscribe()
		defer cancel()

		// overrun the subscriber buffer. Publish must return anyway.
		for i := 0; i < 100; i++ {
			if err := hub.Publish(context.Background(), ack("req")); err != nil {
				t.Fatal(err)
			}
		}

		received := 0
	drain:
		for {
			select {
			case <-ch:
				received++
			default:
				break drain
			}
		}
		if received == 0 || 100 <= received {
			t.Errorf("expected some but not all acks to survive, got %d", received)
		}
	})
}
