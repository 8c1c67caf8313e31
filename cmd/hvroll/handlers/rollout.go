package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/hvroll/internal/config"
	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/rollout"
	"github.com/imamik/hvroll/internal/ui/tui"
)

const archiveTimeout = 2 * time.Minute

// ErrHostsFailed is returned when the rollout completed but some hosts
// failed, were skipped by an abort, or need manual attention.
var ErrHostsFailed = errors.New("rollout did not patch every host")

// RolloutOptions contains options for the rollout command.
type RolloutOptions struct {
	Common
	DryRun           bool
	Yes              bool
	FailureThreshold int
	// ThresholdSet is true when FailureThreshold was given explicitly and
	// should override the configuration file.
	ThresholdSet bool
	MetricsFile  string
	ReportFile   string
	ReportBucket string
}

// Rollout patches the in-service hosts of the selected datacenters.
//
// The report is rendered, and written or archived when asked, even when the
// rollout stopped early. Failures writing the outputs are logged and do not
// mask the rollout's own result.
func Rollout(ctx context.Context, opts RolloutOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if opts.ThresholdSet {
		cfg.Rollout.FailureThreshold = opts.FailureThreshold
	}
	if opts.ReportBucket != "" {
		cfg.Report.Bucket = opts.ReportBucket
	}
	log := logging.New("rollout")

	cp, err := connectEngine(ctx, cfg.Engine)
	if err != nil {
		return err
	}
	defer closeQuietly(cp, log)

	dialer, err := newDialer(cfg)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	deps := rollout.Deps{
		ControlPlane: cp,
		Dialer:       dialer,
		Prober:       newProber(cfg.Probe),
		Confirmer:    newConfirmer(opts.Yes),
		Metrics:      rollout.NewMetrics(registry),
		Observer:     tui.NewProgress(stdout),
		Logger:       log,
	}
	svc := rollout.NewService(deps, cfg.Options(), cfg.Rollout.PatchableOS)

	plan, excluded, err := svc.PlanFor(ctx, opts.Datacenters...)
	if err != nil {
		return err
	}
	if err := tui.RenderPlan(stdout, plan, excluded); err != nil {
		return err
	}
	if opts.DryRun {
		log.Info("[DRY RUN] no host was touched")
		return nil
	}
	if len(plan) == 0 {
		log.Info("nothing to patch")
		return nil
	}

	report, runErr := svc.Run(ctx, plan, excluded)
	if report == nil {
		return runErr
	}
	if err := tui.RenderReport(stdout, report); err != nil {
		log.WithError(err).Warn("failed to render report")
	}
	publish(ctx, log, cfg, opts, report, registry)

	if runErr != nil {
		return fmt.Errorf("rollout stopped: %w", runErr)
	}
	if report.Failures > 0 || report.Aborted {
		return fmt.Errorf("%w: %d failed, aborted=%t", ErrHostsFailed, report.Failures, report.Aborted)
	}
	return nil
}

// publish writes the report and metrics wherever the operator asked.
func publish(ctx context.Context, log logging.Logger, cfg *config.Config, opts RolloutOptions, report *rollout.Report, registry *prometheus.Registry) {
	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			log.WithError(err).Warn("failed to write metrics file")
		}
	}

	if opts.ReportFile == "" && cfg.Report.Bucket == "" {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.WithError(err).Warn("failed to encode report")
		return
	}

	if opts.ReportFile != "" {
		if err := writeFile(opts.ReportFile, data, 0o600); err != nil {
			log.WithError(err).Warn("failed to write report file")
		} else {
			log.Infof("report written to %s", opts.ReportFile)
		}
	}

	if cfg.Report.Bucket != "" {
		// The report matters most when the rollout was interrupted.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		archiver, err := newArchiver(ctx, cfg.Report)
		if err != nil {
			log.WithError(err).Warn("failed to create report archiver")
			return
		}
		key, err := archiver.ArchiveReport(ctx, cfg.Report.Bucket, cfg.Report.Prefix, report.Finished, data)
		if err != nil {
			log.WithError(err).Warn("failed to archive report")
			return
		}
		log.Infof("report archived to s3://%s/%s", cfg.Report.Bucket, key)
	}
}
