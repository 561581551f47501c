package job

import (
	"context"
	"time"

	"tickerpulse/internal/ml/training"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Trainer runs one full model training cycle.
type Trainer interface {
	RunTraining(ctx context.Context) ([]training.ModelTrainResult, error)
}

// TrainingJob retrains the direction models once per day at a fixed UTC hour.
type TrainingJob struct {
	trainer   Trainer
	trainHour int
	tracer    trace.Tracer
	log       zerolog.Logger
}

func NewTrainingJob(trainer Trainer, trainHourUTC int, tracer trace.Tracer, log zerolog.Logger) *TrainingJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 0
	}
	return &TrainingJob{trainer: trainer, trainHour: trainHourUTC, tracer: tracer, log: log}
}

func (j *TrainingJob) Start(ctx context.Context) {
	if j.trainer == nil {
		j.log.Info().Msg("training job disabled")
		<-ctx.Done()
		return
	}

	for {
		next := nextRunUTC(time.Now().UTC(), j.trainHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *TrainingJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "training-job.run-once")
	defer span.End()

	results, err := j.trainer.RunTraining(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("model training failed")
		return
	}
	for _, r := range results {
		j.log.Info().
			Str("model", r.ModelKey).
			Int("version", r.Version).
			Float64("auc", r.AUC).
			Bool("promoted", r.Promoted).
			Msg("model trained")
	}
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
