package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/drillcore/internal/adapters/http/api"
	"github.com/okian/drillcore/internal/adapters/storage/memstore"
	service "github.com/okian/drillcore/internal/app"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/domain/run"
	"github.com/okian/drillcore/pkg/logger"
)

func questions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID: fmt.Sprintf("q%02d", i),
			Options: []model.Option{
				{ID: "a", Label: "Call", Action: model.ActionCall, Correct: true},
				{ID: "b", Label: "Fold", Action: model.ActionFold},
				{ID: "c", Label: "Raise", Action: model.ActionRaise},
				{ID: "d", Label: "Jam", Action: model.ActionAllIn},
			},
		}
	}
	return qs
}

func do(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](w *httptest.ResponseRecorder) T {
	var v T
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	return v
}

func TestServer(t *testing.T) {
	Convey("Given the API over a started session", t, func() {
		ctx := context.Background()
		store := memstore.New()
		s := service.New(
			service.WithStore(store),
			service.WithLogger(logger.Nop()),
			service.WithHealthInterval(time.Hour),
		)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()
		h := api.NewServer(s, api.WithLogger(logger.Nop()), api.WithMaxEvents(5)).Routes()

		Convey("Then healthz serves Prometheus metrics", func() {
			w := do(h, http.MethodGet, "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "drill_")
		})

		Convey("Then stats reports an idle online session", func() {
			w := do(h, http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			st := decodeBody[service.Stats](w)
			So(st.Started, ShouldBeTrue)
			So(st.Pipeline.Online, ShouldBeTrue)
			So(st.RunState, ShouldEqual, run.StateIdle)
		})

		Convey("When a run starts with too few questions", func() {
			w := do(h, http.MethodPost, "/runs", map[string]any{"game_id": "mtt_01", "questions": questions(3)})

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody[map[string]string](w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When a run starts without a game", func() {
			w := do(h, http.MethodPost, "/runs", map[string]any{"questions": questions(run.QuestionsPerRun)})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a run starts with an unknown mode", func() {
			w := do(h, http.MethodPost, "/runs", map[string]any{"game_id": "mtt_01", "mode": "ranked", "questions": questions(run.QuestionsPerRun)})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a full run is played through the API", func() {
			w := do(h, http.MethodPost, "/runs", map[string]any{
				"game_id": "mtt_01", "difficulty": 2, "questions": questions(run.QuestionsPerRun),
			})
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody[run.StartResult](w).Success, ShouldBeTrue)

			var summary run.RunSummary
			for i := 0; i < run.QuestionsPerRun; i++ {
				st := decodeBody[run.Snapshot](do(h, http.MethodGet, "/runs/state", nil))
				So(st.State, ShouldEqual, run.StateQuestionShown)

				a := do(h, http.MethodPost, "/runs/answer", map[string]string{"answer_id": "a"})
				So(a.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[run.AnswerResult](a).IsCorrect, ShouldBeTrue)

				n := do(h, http.MethodPost, "/runs/next", nil)
				So(n.Code, ShouldEqual, http.StatusOK)
				if i == run.QuestionsPerRun-1 {
					summary = decodeBody[run.RunSummary](n)
				}
			}

			Convey("Then the summary shows a perfect pass", func() {
				So(summary.Score, ShouldEqual, 100)
				So(summary.Passed, ShouldBeTrue)
				So(summary.LevelAdvanced, ShouldBeTrue)
			})

			Convey("Then answering again is a conflict", func() {
				w := do(h, http.MethodPost, "/runs/answer", map[string]string{"answer_id": "a"})
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then restart begins a fresh run", func() {
				w := do(h, http.MethodPost, "/runs/restart", nil)
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decodeBody[run.StartResult](w).RunID, ShouldNotEqual, summary.RunID)
			})

			Convey("Then the authoritative events reached the store", func() {
				kinds := map[model.Kind]int{}
				for _, r := range store.Records() {
					kinds[r.Kind]++
				}
				So(kinds[model.KindRunStarted], ShouldEqual, 1)
				So(kinds[model.KindAnswerSubmitted], ShouldEqual, run.QuestionsPerRun)
				So(kinds[model.KindRunCompleted], ShouldEqual, 1)
				So(kinds[model.KindLevelAdvanced], ShouldEqual, 1)
			})

			Convey("Then the event history is capped", func() {
				w := do(h, http.MethodGet, "/events?limit=500", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Events []json.RawMessage `json:"events"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &body)
				So(len(body.Events), ShouldEqual, 5)
			})
		})

		Convey("When the history limit is malformed", func() {
			w := do(h, http.MethodGet, "/events?limit=abc", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When there is no run", func() {
			So(do(h, http.MethodPost, "/runs/next", nil).Code, ShouldEqual, http.StatusConflict)
			So(do(h, http.MethodPost, "/runs/proceed-offline", nil).Code, ShouldEqual, http.StatusConflict)
			So(do(h, http.MethodPost, "/runs/restart", nil).Code, ShouldEqual, http.StatusConflict)
			So(decodeBody[map[string]bool](do(h, http.MethodPost, "/runs/abort", nil))["aborted"], ShouldBeFalse)
		})

		Convey("When the store is lost before a standard start", func() {
			store.SetAvailable(false)
			w := do(h, http.MethodPost, "/runs", map[string]any{"game_id": "mtt_01", "questions": questions(run.QuestionsPerRun)})
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody[run.StartResult](w).Offline, ShouldBeTrue)

			Convey("Then the trainee may proceed in practice", func() {
				p := do(h, http.MethodPost, "/runs/proceed-offline", nil)
				So(p.Code, ShouldEqual, http.StatusOK)
				st := decodeBody[run.Snapshot](p)
				So(st.Mode, ShouldEqual, model.ModePractice)
				So(st.State, ShouldEqual, run.StateQuestionShown)
			})

			Convey("Then a health check reports the outage", func() {
				w := do(h, http.MethodPost, "/pipeline/health", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[map[string]any](w)["online"], ShouldEqual, false)
			})
		})

		Convey("When the client forces offline and sends signals", func() {
			w := do(h, http.MethodPost, "/pipeline/offline", map[string]string{"reason": "airplane"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(s.GetStats(ctx).Pipeline.Online, ShouldBeFalse)

			So(do(h, http.MethodPost, "/pipeline/signal", map[string]string{"signal": "online"}).Code, ShouldEqual, http.StatusAccepted)
			So(do(h, http.MethodPost, "/pipeline/signal", map[string]string{"signal": "bogus"}).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When rotation is requested", func() {
			w := do(h, http.MethodGet, "/rotation", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			first := decodeBody[rotation.Selection](w)
			So(first.RotationID, ShouldStartWith, "rot_")
			So(first.Featured.GameID, ShouldNotBeEmpty)

			Convey("Then forcing a rotation yields a new selection", func() {
				w := do(h, http.MethodPost, "/rotation", nil)
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decodeBody[rotation.Selection](w).RotationID, ShouldNotEqual, first.RotationID)
			})

			Convey("Then user context drives leak games", func() {
				w := do(h, http.MethodPut, "/rotation/context", map[string]any{"leaks": []string{"OVER_FOLDING"}})
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					LeakGames []rotation.Item `json:"leak_games"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &body)
				So(len(body.LeakGames), ShouldEqual, 2)
				So(body.LeakGames[0].ID, ShouldEqual, "mtt_01")
			})

			Convey("Then unknown fields are rejected", func() {
				w := do(h, http.MethodPut, "/rotation/context", map[string]any{"skill": 1})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When leaks are listed and reset", func() {
			w := do(h, http.MethodGet, "/leaks", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"active":[]`)
			So(do(h, http.MethodDelete, "/leaks", nil).Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("When an unknown route is hit", func() {
			So(do(h, http.MethodGet, "/missing", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
