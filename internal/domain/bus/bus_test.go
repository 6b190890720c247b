package bus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBusDelivery(t *testing.T) {
	Convey("Given a bus with several subscribers", t, func() {
		ctx := context.Background()
		b := bus.New(bus.WithActorID("actor-1"))
		var order []string

		b.Subscribe(model.KindRunStarted, func(_ context.Context, _ model.Event) error {
			order = append(order, "first")
			return nil
		})
		b.SubscribeAll(func(_ context.Context, _ model.Event) error {
			order = append(order, "wildcard")
			return nil
		})
		b.Subscribe(model.KindRunStarted, func(_ context.Context, _ model.Event) error {
			order = append(order, "third")
			return nil
		})
		b.Subscribe(model.KindCelebration, func(_ context.Context, _ model.Event) error {
			order = append(order, "other-kind")
			return nil
		})

		Convey("When an event is emitted", func() {
			e := b.Emit(ctx, model.RunStarted{RunRef: model.RunRef{RunID: "r1"}}, "test")

			Convey("Then matching handlers run in registration order", func() {
				So(order, ShouldResemble, []string{"first", "wildcard", "third"})
				So(e.ActorID, ShouldEqual, "actor-1")
				So(e.Source, ShouldEqual, "test")
			})
		})
	})
}

func TestBusIsolation(t *testing.T) {
	Convey("Given a bus whose subscribers fail", t, func() {
		ctx := context.Background()
		b := bus.New()
		reached := 0

		b.SubscribeAll(func(_ context.Context, _ model.Event) error {
			panic("boom")
		})
		b.SubscribeAll(func(_ context.Context, _ model.Event) error {
			return errors.New("handler error")
		})
		b.SubscribeAll(func(_ context.Context, _ model.Event) error {
			reached++
			return nil
		})

		Convey("When an event is published", func() {
			So(func() {
				b.Emit(ctx, model.Celebration{Score: 90}, "test")
			}, ShouldNotPanic)

			Convey("Then later subscribers still receive it", func() {
				So(reached, ShouldEqual, 1)
			})
		})
	})
}

func TestBusUnsubscribe(t *testing.T) {
	Convey("Given a subscribed handler", t, func() {
		ctx := context.Background()
		b := bus.New()
		calls := 0
		unsub := b.SubscribeAll(func(_ context.Context, _ model.Event) error {
			calls++
			return nil
		})

		Convey("When it unsubscribes twice", func() {
			unsub()
			unsub()
			b.Emit(ctx, model.Celebration{}, "test")

			Convey("Then it receives nothing and the bus is empty", func() {
				So(calls, ShouldEqual, 0)
				So(b.SubscriberCount(), ShouldEqual, 0)
			})
		})

		Convey("When a handler unsubscribes itself during delivery", func() {
			var self func()
			selfCalls := 0
			self = b.SubscribeAll(func(_ context.Context, _ model.Event) error {
				selfCalls++
				self()
				return nil
			})
			b.Emit(ctx, model.Celebration{}, "test")
			b.Emit(ctx, model.Celebration{}, "test")

			Convey("Then it is removed for the next event only", func() {
				So(selfCalls, ShouldEqual, 1)
				So(calls, ShouldEqual, 2)
			})
		})
	})
}

func TestBusHistory(t *testing.T) {
	Convey("Given a bus with a small history", t, func() {
		ctx := context.Background()
		b := bus.New(bus.WithHistorySize(3))

		Convey("When nothing has been published", func() {
			So(b.History(10), ShouldBeEmpty)
		})

		Convey("When more events than capacity are published", func() {
			for i := 0; i < 5; i++ {
				b.Emit(ctx, model.QuestionShown{QuestionIndex: i}, "test")
			}

			Convey("Then only the newest are kept, oldest first", func() {
				h := b.History(0)
				So(len(h), ShouldEqual, 3)
				So(h[0].Payload.(model.QuestionShown).QuestionIndex, ShouldEqual, 2)
				So(h[2].Payload.(model.QuestionShown).QuestionIndex, ShouldEqual, 4)
			})

			Convey("Then a limit returns the most recent entries", func() {
				h := b.History(2)
				So(len(h), ShouldEqual, 2)
				So(h[0].Payload.(model.QuestionShown).QuestionIndex, ShouldEqual, 3)
				So(h[1].Payload.(model.QuestionShown).QuestionIndex, ShouldEqual, 4)
			})
		})
	})
}
