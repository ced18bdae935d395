package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one periodic engine invocation. Run receives the instant the tick fired;
// it is the only clock reading the run gets.
type Job struct {
	Name string
	Spec string // Standard 5-field cron expression
	Run  func(ctx context.Context, now time.Time) error
}

type JobScheduler struct {
	cronEngine *cron.Cron
	jobs       []Job
	timeout    time.Duration
	logger     *logrus.Entry
	clock      func() time.Time
}

// NewJobScheduler evaluates cron specs in loc. A tick that arrives while the
// previous run of the same job is still going is skipped.
func NewJobScheduler(jobs []Job, timeout time.Duration, loc *time.Location, logger *logrus.Entry) *JobScheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{entry: logger}
	return &JobScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
		clock:   time.Now,
	}
}

// Start registers every job and starts the cron loop. Nothing runs if any cron expression is invalid.
func (s *JobScheduler) Start() error {
	s.logger.Info("Starting job scheduler...")
	for _, job := range s.jobs {
		job := job
		if _, err := s.cronEngine.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("could not add %s cron job with spec %q: %w", job.Name, job.Spec, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.Name, "spec": job.Spec}).Info("Registered cron job")
	}
	s.cronEngine.Start()
	s.logger.Infof("Job scheduler started with %d jobs.", len(s.jobs))
	return nil
}

func (s *JobScheduler) runJob(job Job) {
	now := s.clock()
	log := s.logger.WithField("job", job.Name)
	log.Info("Cron job triggered")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := job.Run(ctx, now); err != nil {
		log.WithError(err).Error("Cron job failed")
		return
	}
	log.Info("Cron job completed")
}

func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop() // Stops new ticks, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
