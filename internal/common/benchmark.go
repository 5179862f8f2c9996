package common

import (
	"log/slog"
	"time"
)

type Benchmarker struct {
	start  time.Time
	label  string
	logger *slog.Logger
}

func RuntimeBenchmark[T any](logger *slog.Logger, label string, functionUnderTest func() (T, error)) (T, error) {
	start := time.Now()
	result, err := functionUnderTest()
	logger.Info("[BENCH]", "label", label, "elapsed", time.Since(start), "ok", err == nil)
	return result, err
}

func NewBenchmarker(logger *slog.Logger, label string) *Benchmarker {
	return &Benchmarker{start: time.Now(), label: label, logger: logger}
}

func (benchmarker *Benchmarker) Close() {
	benchmarker.logger.Info("[BENCH]", "label", benchmarker.label, "elapsed", time.Since(benchmarker.start))
}
