package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/drillcore/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QuestionBudgetMS, convey.ShouldEqual, 15_000)
				convey.So(cfg.HealthCheckIntervalMS, convey.ShouldEqual, 30_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DRILL_ADDR", ":8080")
			_ = os.Setenv("DRILL_STORE_DRIVER", "memory")
			_ = os.Setenv("DRILL_PENDING_QUEUE_SIZE", "50")
			_ = os.Setenv("DRILL_SOFT_ACK_MISSING_SCHEMA", "false")
			_ = os.Setenv("DRILL_MASTERY_FLOOR", "65.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.PendingQueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.SoftAckMissingSchema, convey.ShouldBeFalse)
				convey.So(cfg.MasteryFloor, convey.ShouldEqual, 65.5)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# rotation tuning
addr: ":9090"
store_driver: postgres
postgres_dsn: "postgres://drill@localhost/drill"
leak_window: 10
leak_threshold: 2
recommended_count: 6
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DRILL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.PostgresDSN, convey.ShouldStartWith, "postgres://")
				convey.So(cfg.LeakWindow, convey.ShouldEqual, 10)
				convey.So(cfg.LeakThreshold, convey.ShouldEqual, 2)
				convey.So(cfg.RecommendedCount, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nleak_window: 12\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DRILL_CONFIG", tmpFile)
			_ = os.Setenv("DRILL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LeakWindow, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DRILL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DRILL_CONFIG", "/non/existent/drill.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()

		convey.Convey("When the store driver is unknown", func() {
			_ = os.Setenv("DRILL_STORE_DRIVER", "mongo")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When postgres is selected without a dsn", func() {
			_ = os.Setenv("DRILL_STORE_DRIVER", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the leak threshold exceeds the window", func() {
			cfg := config.New()
			cfg.LeakWindow = 2
			cfg.LeakThreshold = 3

			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the address is empty", func() {
			cfg := config.New()
			cfg.Addr = ""

			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When the pending queue size is zero", func() {
			_ = os.Setenv("DRILL_PENDING_QUEUE_SIZE", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"DRILL_CONFIG",
		"DRILL_ADDR",
		"DRILL_STORE_DRIVER",
		"DRILL_PENDING_QUEUE_SIZE",
		"DRILL_SOFT_ACK_MISSING_SCHEMA",
		"DRILL_MASTERY_FLOOR",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "drill-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
