package digest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"issueboard/internal/config"
	"issueboard/internal/domain"
	"issueboard/internal/integrations/llm"
	slackint "issueboard/internal/integrations/slack"
	"issueboard/internal/storage/sqlite"
)

type staticSource struct {
	records []domain.RawRecord
	err     error
}

func (s staticSource) FetchAllRecords(ctx context.Context) ([]domain.RawRecord, error) {
	return s.records, s.err
}

type recordingSlack struct {
	texts   []string
	uploads []string
}

func (r *recordingSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	r.texts = append(r.texts, channelID)
	return channelID, "1.0", nil
}

func (r *recordingSlack) UploadFileV2(params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	r.uploads = append(r.uploads, params.Filename)
	return &slack.FileSummary{ID: "F1"}, nil
}

func ticket(id, date, product, text string) domain.RawRecord {
	return domain.RawRecord{
		RecordID: id,
		Fields: domain.Fields{
			domain.F("日期", domain.String(date)),
			domain.F("产品线", domain.String(product)),
			domain.F("所属端", domain.String("iOS")),
			domain.F("问题描述", domain.String(text)),
		},
	}
}

func testDeps(t *testing.T, records []domain.RawRecord) Deps {
	t.Helper()
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	online := "online"
	return Deps{
		Config: config.Config{
			DefaultProductLine: &online,
			DefaultMinCount:    2,
			DigestLookbackDays: 7,
			ReportOutputDir:    t.TempDir(),
			Location:           time.UTC,
		},
		Source: staticSource{records: records},
		DB:     db,
		Summarize: func(ctx context.Context, cfg config.Config, report domain.Report) (string, llm.Usage, error) {
			return "", llm.Usage{}, llm.ErrDisabled
		},
	}
}

func TestWindow(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 3, 7, 1, 30, 0, 0, time.UTC) // 09:30 in CST

	start, end := Window(now, 7, loc)
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 3, 7, 23, 59, 59, int(999*time.Millisecond), loc); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}

	start, end = Window(now, 0, nil)
	if start.Format("2006-01-02") != "2024-03-07" || end.Format("2006-01-02") != "2024-03-07" {
		t.Fatalf("single-day window = %v .. %v", start, end)
	}
}

func TestRunStoresWritesAndPosts(t *testing.T) {
	records := []domain.RawRecord{
		ticket("r1", "2024-03-05", "online", "登录失败 收不到验证码"),
		ticket("r2", "2024-03-06", "online", "登录失败 收不到验证码 重试无效"),
		ticket("r3", "2024-03-06", "offline", "登录失败 收不到验证码"),
		ticket("r4", "2024-02-01", "online", "登录失败 收不到验证码"),
		ticket("r5", "2024-03-06", "online", "直播卡顿"),
	}
	deps := testDeps(t, records)
	fake := &recordingSlack{}
	deps.Slack = slackint.NewPosterWithAPI(fake, "C1")
	deps.Summarize = func(ctx context.Context, cfg config.Config, report domain.Report) (string, llm.Usage, error) {
		return "登录验证码问题集中出现。", llm.Usage{InputTokens: 10, OutputTokens: 5}, nil
	}

	now := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	result, err := Run(context.Background(), deps, now, sqlite.TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Report.TotalTicketsInScope != 3 {
		t.Fatalf("in scope = %d, want 3", result.Report.TotalTicketsInScope)
	}
	if len(result.Report.TopIssues) != 1 || result.Report.TopIssues[0].Count != 2 {
		t.Fatalf("unexpected issues: %+v", result.Report.TopIssues)
	}

	if filepath.Base(result.FilePath) != "top_issues_20240307.md" {
		t.Fatalf("unexpected file path: %s", result.FilePath)
	}
	content, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	if !strings.Contains(string(content), "登录验证码问题集中出现。") {
		t.Fatalf("narrative missing from file:\n%s", content)
	}

	snap, err := sqlite.GetSnapshot(deps.DB, result.SnapshotID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Trigger != sqlite.TriggerManual || snap.StartDate != "2024-03-01" || snap.EndDate != "2024-03-07" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	var stored domain.Report
	if err := json.Unmarshal(snap.Report, &stored); err != nil {
		t.Fatalf("decode stored report: %v", err)
	}
	if stored.TotalTicketsInScope != 3 || snap.IssueCount != 1 {
		t.Fatalf("stored totals mismatch: %+v", snap)
	}

	if len(fake.texts) != 1 || len(fake.uploads) != 1 {
		t.Fatalf("expected one post and one upload, got %d/%d", len(fake.texts), len(fake.uploads))
	}
}

func TestRunNarrativeFailureIsNotFatal(t *testing.T) {
	deps := testDeps(t, []domain.RawRecord{
		ticket("r1", "2024-03-05", "online", "闪退"),
		ticket("r2", "2024-03-05", "online", "闪退"),
	})
	deps.Summarize = func(ctx context.Context, cfg config.Config, report domain.Report) (string, llm.Usage, error) {
		return "", llm.Usage{}, errors.New("rate limited")
	}

	result, err := Run(context.Background(), deps, time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC), sqlite.TriggerSchedule)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Narrative != "" || result.SnapshotID == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunFetchError(t *testing.T) {
	deps := testDeps(t, nil)
	deps.Source = staticSource{err: errors.New("upstream down")}

	_, err := Run(context.Background(), deps, time.Now(), sqlite.TriggerSchedule)
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected fetch error, got %v", err)
	}
	snaps, _ := sqlite.ListSnapshots(deps.DB, 10)
	if len(snaps) != 0 {
		t.Fatalf("no snapshot should be stored on fetch failure")
	}
}

func TestStartSchedulerDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Empty and invalid schedules return immediately without starting a loop.
	StartScheduler(ctx, Deps{Config: config.Config{}})
	StartScheduler(ctx, Deps{Config: config.Config{DigestSchedule: "whenever"}})
}
