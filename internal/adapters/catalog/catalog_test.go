package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/drillcore/internal/adapters/catalog"
	"github.com/okian/drillcore/internal/domain/rotation"
)

const sample = `
items:
  - id: mtt_01
    name: Nash Push/Fold
    category: MTT
    focus: Short Stack
    difficulty: 1
    leaks: [OVER_FOLDING]
  - id: psy_01
    name: The Metronome
    category: PSYCHOLOGY
    focus: Timing
    difficulty: 2
`

func TestStatic(t *testing.T) {
	Convey("An empty static catalog falls back to the built-in list", t, func() {
		items, err := catalog.NewStatic(nil).Items(context.Background())
		So(err, ShouldBeNil)
		So(items, ShouldResemble, rotation.DefaultCatalog())
	})
}

func TestFile(t *testing.T) {
	Convey("Given a YAML catalog file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		So(os.WriteFile(path, []byte(sample), 0o600), ShouldBeNil)

		Convey("Then items are decoded", func() {
			items, err := catalog.NewFile(path).Items(ctx)
			So(err, ShouldBeNil)
			So(items, ShouldHaveLength, 2)
			So(items[0].Leaks, ShouldResemble, []string{"OVER_FOLDING"})
			So(items[1].Difficulty, ShouldEqual, 2)
		})

		Convey("When the file is missing", func() {
			_, err := catalog.NewFile(path + ".gone").Items(ctx)
			So(errors.Is(err, catalog.ErrUnreadable), ShouldBeTrue)
		})
	})

	Convey("Invalid documents are rejected", t, func() {
		_, err := catalog.Parse([]byte("items:\n  - id: a\n    name: A\n    category: X\n    difficulty: 9\n"), nil)
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)

		_, err = catalog.Parse([]byte("items:\n  - {id: a, name: A, category: X, difficulty: 1}\n  - {id: a, name: B, category: X, difficulty: 1}\n"), nil)
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)

		_, err = catalog.Parse([]byte(":::"), nil)
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)
	})
}
