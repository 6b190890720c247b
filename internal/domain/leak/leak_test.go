package leak_test

import (
	"context"
	"testing"

	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/leak"
	"github.com/okian/drillcore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Mistakes are classified by chosen and ideal action", t, func() {
		cases := []struct {
			chosen, ideal model.Action
			want          model.LeakCategory
		}{
			{model.ActionFold, model.ActionCall, model.LeakOverFolding},
			{model.ActionCall, model.ActionFold, model.LeakCallingStation},
			{model.ActionCheck, model.ActionBet, model.LeakPassivePlay},
			{model.ActionRaise, model.ActionFold, model.LeakOverAggression},
		}
		for _, c := range cases {
			got, ok := leak.Classify(c.chosen, c.ideal)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, c.want)
		}

		_, ok := leak.Classify(model.ActionBet, model.ActionRaise)
		So(ok, ShouldBeFalse)
		_, ok = leak.Classify(model.ActionCall, model.ActionCall)
		So(ok, ShouldBeFalse)

		for _, c := range model.LeakCategories() {
			So(leak.RemediationID(c), ShouldNotBeEmpty)
		}
	})
}

func TestAnalyzerThreshold(t *testing.T) {
	Convey("Given an analyzer on a bus", t, func() {
		ctx := context.Background()
		b := bus.New()
		a := leak.NewAnalyzer(b)
		a.Attach(b)

		var detected []model.LeakDetected
		b.Subscribe(model.KindLeakDetected, func(_ context.Context, e model.Event) error {
			detected = append(detected, e.Payload.(model.LeakDetected))
			return nil
		})

		Convey("When two over-folds are recorded", func() {
			a.Record(ctx, model.ActionFold, model.ActionCall)
			a.Record(ctx, model.ActionFold, model.ActionRaise)

			Convey("Then nothing is flagged yet", func() {
				So(detected, ShouldBeEmpty)
				So(len(a.Window()), ShouldEqual, 2)
			})

			Convey("And a third arrives", func() {
				det := a.Record(ctx, model.ActionFold, model.ActionBet)

				Convey("Then OVER_FOLDING is flagged once and pruned from the window", func() {
					So(det, ShouldNotBeNil)
					So(detected, ShouldHaveLength, 1)
					So(detected[0].Category, ShouldEqual, model.LeakOverFolding)
					So(detected[0].Count, ShouldEqual, 3)
					So(detected[0].RemediationID, ShouldEqual, "clinic-01")
					So(a.ActiveLeaks(), ShouldResemble, []model.LeakCategory{model.LeakOverFolding})
					So(a.Window(), ShouldBeEmpty)
				})

				Convey("Then further over-folds do not re-trigger while active", func() {
					for i := 0; i < 5; i++ {
						a.Record(ctx, model.ActionFold, model.ActionCall)
					}
					So(detected, ShouldHaveLength, 1)
				})

				Convey("Then a resolved category can trigger again", func() {
					So(a.Resolve(model.LeakOverFolding), ShouldBeTrue)
					So(a.Resolve(model.LeakOverFolding), ShouldBeFalse)
					for i := 0; i < 3; i++ {
						a.Record(ctx, model.ActionFold, model.ActionCall)
					}
					So(detected, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When unmapped pairs are recorded", func() {
			for i := 0; i < 5; i++ {
				So(a.Record(ctx, model.ActionBet, model.ActionRaise), ShouldBeNil)
			}

			So(a.Window(), ShouldBeEmpty)
			So(detected, ShouldBeEmpty)
		})

		Convey("When a wrong answer with actions is published", func() {
			for i := 0; i < 3; i++ {
				b.Emit(ctx, model.AnswerSubmitted{
					QuestionIndex: i,
					ChosenAction:  model.ActionCall,
					IdealAction:   model.ActionFold,
				}, "test")
			}

			Convey("Then the bus subscription feeds the analyzer", func() {
				So(detected, ShouldHaveLength, 1)
				So(detected[0].Category, ShouldEqual, model.LeakCallingStation)
			})
		})

		Convey("When correct answers are published", func() {
			for i := 0; i < 3; i++ {
				b.Emit(ctx, model.AnswerSubmitted{
					IsCorrect:    true,
					ChosenAction: model.ActionCall,
					IdealAction:  model.ActionFold,
				}, "test")
			}

			So(a.Window(), ShouldBeEmpty)
		})

		Convey("When reset", func() {
			for i := 0; i < 3; i++ {
				a.Record(ctx, model.ActionRaise, model.ActionFold)
			}
			a.Reset()

			So(a.ActiveLeaks(), ShouldBeEmpty)
			So(a.Window(), ShouldBeEmpty)
		})
	})
}

func TestAnalyzerWindow(t *testing.T) {
	Convey("Given a window of 4", t, func() {
		ctx := context.Background()
		a := leak.NewAnalyzer(nil, leak.WithWindow(4), leak.WithThreshold(3))

		Convey("When old mistakes fall out of the window", func() {
			a.Record(ctx, model.ActionCheck, model.ActionBet)
			a.Record(ctx, model.ActionCheck, model.ActionBet)
			for i := 0; i < 3; i++ {
				a.Record(ctx, model.ActionBet, model.ActionCheck)
			}

			Convey("Then only the last four are kept", func() {
				So(a.ActiveLeaks(), ShouldResemble, []model.LeakCategory{model.LeakOverAggression})
				So(len(a.Window()), ShouldEqual, 1)
			})

			Convey("Then an evicted category needs fresh mistakes", func() {
				So(a.Record(ctx, model.ActionCheck, model.ActionBet), ShouldBeNil)
			})
		})
	})
}
