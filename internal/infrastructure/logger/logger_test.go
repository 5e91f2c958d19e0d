package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"
)

// readRecords decodes the JSON lines written to the rotated file.
func readRecords(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func TestLogger(t *testing.T) {
	Convey("Given logger options", t, func() {
		Convey("When only stdout is configured", func() {
			logger, err := New(Options{Level: "info"})
			So(err, ShouldBeNil)

			Convey("It should log at info and above", func() {
				core := logger.Desugar().Core()
				So(core.Enabled(zapcore.DebugLevel), ShouldBeFalse)
				So(core.Enabled(zapcore.InfoLevel), ShouldBeTrue)
				So(func() { logger.Infow("Starting backup", "job_id", "j1") }, ShouldNotPanic)
				So(func() { logger.Close() }, ShouldNotPanic)
			})
		})

		Convey("When the level cannot be parsed", func() {
			logger, err := New(Options{Level: "chatty"})

			Convey("It should fall back to info", func() {
				So(err, ShouldBeNil)
				So(logger.Desugar().Core().Enabled(zapcore.DebugLevel), ShouldBeFalse)
				So(logger.Desugar().Core().Enabled(zapcore.InfoLevel), ShouldBeTrue)
			})
		})

		Convey("When the console format is json at warn level", func() {
			logger, err := New(Options{Level: "warn", Format: "json"})

			Convey("It should drop info records", func() {
				So(err, ShouldBeNil)
				So(logger.Desugar().Core().Enabled(zapcore.InfoLevel), ShouldBeFalse)
				So(logger.Desugar().Core().Enabled(zapcore.WarnLevel), ShouldBeTrue)
			})
		})

		Convey("When a log file is configured in a missing directory", func() {
			logFile := filepath.Join(t.TempDir(), "logs", "dbstash.log")
			logger, err := New(Options{Level: "debug", File: logFile})
			So(err, ShouldBeNil)

			logger.Debugw("Dumping database", "job_id", "j1", "stage", "dump")
			logger.Warnw("Dump tool reported diagnostics", "job_id", "j1", "stderr", "advisory")
			logger.Close()

			Convey("It should write structured JSON records", func() {
				records, err := readRecords(logFile)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)

				So(records[0]["level"], ShouldEqual, "DEBUG")
				So(records[0]["stage"], ShouldEqual, "dump")
				So(records[1]["level"], ShouldEqual, "WARN")
				So(records[1]["msg"], ShouldEqual, "Dump tool reported diagnostics")
				So(records[1]["stderr"], ShouldEqual, "advisory")
				So(records[1], ShouldContainKey, "timestamp")
			})
		})

		Convey("When the log directory cannot be created", func() {
			blocker := filepath.Join(t.TempDir(), "blocker")
			So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)

			logger, err := New(Options{Level: "info", File: filepath.Join(blocker, "nested", "dbstash.log")})

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create log directory")
				So(logger, ShouldBeNil)
			})
		})

		Convey("Nop should discard everything", func() {
			logger := Nop()
			So(logger.Desugar().Core().Enabled(zapcore.ErrorLevel), ShouldBeFalse)
			So(func() { logger.Errorw("ignored") }, ShouldNotPanic)
		})
	})
}
