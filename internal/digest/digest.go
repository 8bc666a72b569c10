// Package digest produces the periodic top-issues review: it fetches the
// ticket sheet, ranks recurring issues over a trailing window, stores the
// result and posts it to Slack.
package digest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"issueboard/internal/analysis"
	"issueboard/internal/config"
	"issueboard/internal/domain"
	"issueboard/internal/integrations/llm"
	slackint "issueboard/internal/integrations/slack"
	"issueboard/internal/storage/sqlite"
)

// RecordSource is satisfied by *fusion.Client.
type RecordSource interface {
	FetchAllRecords(ctx context.Context) ([]domain.RawRecord, error)
}

type Summarizer func(ctx context.Context, cfg config.Config, report domain.Report) (string, llm.Usage, error)

type Deps struct {
	Config    config.Config
	Source    RecordSource
	DB        *sql.DB
	Slack     *slackint.Poster
	Summarize Summarizer // defaults to llm.SummarizeTopIssues
}

type Result struct {
	SnapshotID int64
	FilePath   string
	Narrative  string
	Report     domain.Report
}

// Window returns the trailing range of lookbackDays calendar days ending
// with now's day, in loc. The end is the last millisecond of that day.
func Window(now time.Time, lookbackDays int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(lookbackDays - 1))
	end := today.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}

// Run builds one digest for the window ending at now.
func Run(ctx context.Context, deps Deps, now time.Time, trigger string) (Result, error) {
	cfg := deps.Config
	if deps.Source == nil {
		return Result{}, errors.New("digest: no record source")
	}

	start, end := Window(now, cfg.DigestLookbackDays, cfg.Location)
	records, err := deps.Source.FetchAllRecords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch records: %w", err)
	}

	report := analysis.AnalyzeTopIssues(records, analysis.Query{
		StartDate:   &start,
		EndDate:     &end,
		ProductLine: cfg.ProductLine(),
		MinCount:    cfg.DefaultMinCount,
		Location:    cfg.Location,
	})
	log.WithFields(log.Fields{
		"records":  len(records),
		"in_scope": report.TotalTicketsInScope,
		"issues":   len(report.TopIssues),
		"trigger":  trigger,
	}).Info("digest analyzed")

	result := Result{Report: report}

	summarize := deps.Summarize
	if summarize == nil {
		summarize = llm.SummarizeTopIssues
	}
	narrative, usage, err := summarize(ctx, cfg, report)
	switch {
	case errors.Is(err, llm.ErrDisabled):
	case err != nil:
		log.WithError(err).Warn("digest narrative failed, continuing without it")
	default:
		result.Narrative = narrative
		log.Infof("digest narrative tokens=%d", usage.TotalTokens())
	}

	title := fmt.Sprintf("Top issues %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	content := RenderMarkdown(report, title, result.Narrative)

	outputDir := cfg.ReportOutputDir
	if outputDir == "" {
		outputDir = "./reports"
	}
	path, err := WriteReportFile(content, outputDir, now.In(start.Location()))
	if err != nil {
		return result, fmt.Errorf("write report file: %w", err)
	}
	result.FilePath = path

	if deps.DB != nil {
		reportJSON, err := json.Marshal(report)
		if err != nil {
			return result, fmt.Errorf("encode report: %w", err)
		}
		id, err := sqlite.InsertSnapshot(deps.DB, sqlite.Snapshot{
			GeneratedAt:  now,
			Trigger:      trigger,
			StartDate:    start.Format("2006-01-02"),
			EndDate:      end.Format("2006-01-02"),
			ProductLine:  report.Filters.ProductLine,
			MinCount:     report.Filters.MinCount,
			TotalInScope: report.TotalTicketsInScope,
			IssueCount:   len(report.TopIssues),
			Narrative:    result.Narrative,
			Report:       reportJSON,
		})
		if err != nil {
			return result, fmt.Errorf("store snapshot: %w", err)
		}
		result.SnapshotID = id
	}

	if deps.Slack.Enabled() {
		if _, err := deps.Slack.PostDigest(content); err != nil {
			return result, err
		}
		comment := fmt.Sprintf("%d tickets in scope, %d recurring issues", report.TotalTicketsInScope, len(report.TopIssues))
		if err := deps.Slack.UploadReport(path, title, comment); err != nil {
			log.WithError(err).Warn("digest file upload failed")
		}
	}

	log.WithFields(log.Fields{"file": path, "snapshot": result.SnapshotID}).Info("digest complete")
	return result, nil
}

func WriteReportFile(content, outputDir string, reportDate time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("top_issues_%s.md", reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}
