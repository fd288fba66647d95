package gradingService_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"KneeGrader/internal/api/grading"
	gradingRepository "KneeGrader/internal/api/grading/repository"
	gradingService "KneeGrader/internal/api/grading/service"
	"KneeGrader/internal/entity"
	"KneeGrader/pkg/jointspace"
	"KneeGrader/pkg/redis"
	"KneeGrader/pkg/response"
	"KneeGrader/pkg/storage"
	"KneeGrader/pkg/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type fakeAnalyzer struct {
	shapes []jointspace.Shape
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(buf []byte) ([]jointspace.Shape, error) {
	f.calls++
	return f.shapes, f.err
}

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, jsoniter.Unmarshal(v, dest)
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = b
	return nil
}

func (m *memoryCache) Close() error { return nil }

type memoryAnalyses struct {
	rows      map[string]entity.Analysis
	failWrite bool
}

func (m *memoryAnalyses) CreateAnalysis(c context.Context, a entity.Analysis) error {
	if m.failWrite {
		return errors.New("connection refused")
	}
	m.rows[a.ID] = a
	return nil
}

func (m *memoryAnalyses) GetAnalysisByID(c context.Context, id string) (entity.Analysis, error) {
	a, ok := m.rows[id]
	if !ok {
		return entity.Analysis{}, grading.ErrAnalysisNotFound
	}
	return a, nil
}

func (m *memoryAnalyses) ListRecentAnalyses(c context.Context, limit int) ([]entity.Analysis, error) {
	out := make([]entity.Analysis, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, a)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryRepository struct {
	analyses *memoryAnalyses
}

func (m *memoryRepository) NewClient(tx bool) (gradingRepository.Client, error) {
	noop := func() error { return nil }
	return gradingRepository.Client{Analysis: m.analyses, Commit: noop, Rollback: noop}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	dir      string
	analyzer *fakeAnalyzer
	cache    *memoryCache
	repo     *memoryRepository
	svc      gradingService.IGradingService
}

func newFixture(t *testing.T, withCache, withRepo bool) *fixture {
	t.Helper()

	f := &fixture{
		dir: t.TempDir(),
		analyzer: &fakeAnalyzer{shapes: []jointspace.Shape{
			{Area: 80, Width: 4},
			{Area: 600, Width: 15},
		}},
	}

	st, err := storage.NewLocal(f.dir)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	var (
		repo  gradingRepository.Repository
		cache redis.IRedis
	)
	if withCache {
		f.cache = newMemoryCache()
		cache = f.cache
	}
	if withRepo {
		f.repo = &memoryRepository{analyses: &memoryAnalyses{rows: map[string]entity.Analysis{}}}
		repo = f.repo
	}

	f.svc = gradingService.NewGradingService(quietLogger(), f.analyzer, st, repo, cache, utils.New(0), time.Hour)
	return f
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGrade_TwoRectangles(t *testing.T) {
	f := newFixture(t, false, false)

	res, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "left knee.png", Data: []byte("img")})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	if res.JointSpaceWidths != (jointspace.Widths{15, 4}) {
		t.Fatalf("want [15 4], got %v", res.JointSpaceWidths)
	}
	if res.Classification != jointspace.GradeSevere {
		t.Fatalf("want %q, got %q", jointspace.GradeSevere, res.Classification)
	}
	if res.InsufficientStructure || res.Cached || res.AnalysisID != "" {
		t.Fatalf("unexpected flags %+v", res)
	}

	files := f.storedFiles(t)
	if len(files) != 1 || !strings.HasSuffix(files[0], "-left_knee.png") {
		t.Fatalf("want one stored upload named <id>-left_knee.png, got %v", files)
	}
	data, err := os.ReadFile(filepath.Join(f.dir, files[0]))
	if err != nil || string(data) != "img" {
		t.Fatalf("stored bytes mismatch: %q %v", data, err)
	}
}

func TestGrade_SameNameDoesNotOverwrite(t *testing.T) {
	f := newFixture(t, false, false)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "knee.png", Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("grade %d: %v", i, err)
		}
	}

	if files := f.storedFiles(t); len(files) != 3 {
		t.Fatalf("want 3 distinct stored files, got %v", files)
	}
}

func TestGrade_InsufficientContours(t *testing.T) {
	f := newFixture(t, false, false)
	f.analyzer.shapes = []jointspace.Shape{{Area: 10, Width: 30}}

	res, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "blank.png", Data: []byte("x")})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.JointSpaceWidths != (jointspace.Widths{0, 0}) || !res.InsufficientStructure {
		t.Fatalf("want sentinel, got %+v", res)
	}
	if res.Classification != jointspace.GradeSevere {
		t.Fatalf("sentinel grades as %q, got %q", jointspace.GradeSevere, res.Classification)
	}
}

func TestGrade_DecodeFailure(t *testing.T) {
	f := newFixture(t, false, false)
	f.analyzer.err = fmt.Errorf("%w: unsupported or corrupt image data", jointspace.ErrDecode)

	_, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "notes.txt", Data: []byte("hello")})
	if err == nil {
		t.Fatal("want error")
	}

	var respErr *response.Error
	if !errors.As(err, &respErr) || respErr.Code != 422 {
		t.Fatalf("want 422 response error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Processing failed: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, jointspace.ErrDecode) {
		t.Fatal("decode error kind lost")
	}
}

func TestGrade_CacheHitSkipsPipeline(t *testing.T) {
	f := newFixture(t, true, false)
	upload := grading.Upload{Filename: "knee.png", Data: []byte("same bytes")}

	first, err := f.svc.Grade(context.Background(), upload)
	if err != nil {
		t.Fatalf("first grade: %v", err)
	}
	second, err := f.svc.Grade(context.Background(), upload)
	if err != nil {
		t.Fatalf("second grade: %v", err)
	}

	if f.analyzer.calls != 1 {
		t.Fatalf("analyzer ran %d times, want 1", f.analyzer.calls)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.JointSpaceWidths != first.JointSpaceWidths || second.Classification != first.Classification {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestGrade_CacheHitRecordsEachUpload(t *testing.T) {
	f := newFixture(t, true, true)
	data := []byte("same bytes")

	first, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "knee.png", Data: data})
	if err != nil {
		t.Fatalf("first grade: %v", err)
	}
	second, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "other.png", Data: data})
	if err != nil {
		t.Fatalf("second grade: %v", err)
	}

	if !second.Cached || f.analyzer.calls != 1 {
		t.Fatalf("want second upload served from cache, cached=%v calls=%d", second.Cached, f.analyzer.calls)
	}
	if first.AnalysisID == "" || second.AnalysisID == "" || first.AnalysisID == second.AnalysisID {
		t.Fatalf("want two distinct analysis ids, got %q and %q", first.AnalysisID, second.AnalysisID)
	}
	if n := len(f.repo.analyses.rows); n != 2 {
		t.Fatalf("want 2 recorded analyses, got %d", n)
	}

	got, err := f.svc.GetAnalysis(context.Background(), second.AnalysisID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalName != "other.png" || !strings.HasPrefix(filepath.Base(got.FileKey), second.AnalysisID+"-") {
		t.Fatalf("cached upload recorded with wrong file: %+v", got)
	}
	if got.WidthA != 15 || got.WidthB != 4 || got.Classification != string(jointspace.GradeSevere) {
		t.Fatalf("cached upload recorded with wrong result: %+v", got)
	}
}

func TestGrade_RecordsAnalysis(t *testing.T) {
	f := newFixture(t, false, true)

	res, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "knee.png", Data: []byte("img")})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.AnalysisID == "" {
		t.Fatal("want analysis id when history is configured")
	}

	got, err := f.svc.GetAnalysis(context.Background(), res.AnalysisID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WidthA != 15 || got.WidthB != 4 || got.Classification != string(jointspace.GradeSevere) {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.OriginalName != "knee.png" || len(got.SHA256) != 64 {
		t.Fatalf("unexpected record %+v", got)
	}

	list, err := f.svc.ListAnalyses(context.Background(), 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
}

func TestGrade_RecordFailureDoesNotFailUpload(t *testing.T) {
	f := newFixture(t, false, true)
	f.repo.analyses.failWrite = true

	res, err := f.svc.Grade(context.Background(), grading.Upload{Filename: "knee.png", Data: []byte("img")})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.AnalysisID != "" {
		t.Fatalf("want no analysis id when recording fails, got %q", res.AnalysisID)
	}
}

type expiringStorage struct{}

func (expiringStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	<-ctx.Done()
	return "", fmt.Errorf("upload %s: %w", name, ctx.Err())
}

type brokenStorage struct{}

func (brokenStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	return "", errors.New("bucket not found")
}

func TestGrade_StorageFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{}

	t.Run("deadline passes through", func(t *testing.T) {
		svc := gradingService.NewGradingService(quietLogger(), analyzer, expiringStorage{}, nil, nil, utils.New(0), time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := svc.Grade(ctx, grading.Upload{Filename: "knee.png", Data: []byte("img")})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want deadline exceeded, got %v", err)
		}
	})

	t.Run("cancellation passes through", func(t *testing.T) {
		svc := gradingService.NewGradingService(quietLogger(), analyzer, expiringStorage{}, nil, nil, utils.New(0), time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Grade(ctx, grading.Upload{Filename: "knee.png", Data: []byte("img")})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want canceled, got %v", err)
		}
	})

	t.Run("other errors are store failures", func(t *testing.T) {
		svc := gradingService.NewGradingService(quietLogger(), analyzer, brokenStorage{}, nil, nil, utils.New(0), time.Hour)

		_, err := svc.Grade(context.Background(), grading.Upload{Filename: "knee.png", Data: []byte("img")})
		if !errors.Is(err, grading.ErrStoreUpload) {
			t.Fatalf("want ErrStoreUpload, got %v", err)
		}
	})

	if analyzer.calls != 0 {
		t.Fatalf("analyzer must not run after a failed store, ran %d times", analyzer.calls)
	}
}

func TestHistory(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, false, false)
		if _, err := f.svc.GetAnalysis(context.Background(), "x"); !errors.Is(err, grading.ErrHistoryUnavailable) {
			t.Fatalf("want ErrHistoryUnavailable, got %v", err)
		}
		if _, err := f.svc.ListAnalyses(context.Background(), 5); !errors.Is(err, grading.ErrHistoryUnavailable) {
			t.Fatalf("want ErrHistoryUnavailable, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t, false, true)
		if _, err := f.svc.GetAnalysis(context.Background(), "01J000000000000000000000"); !errors.Is(err, grading.ErrAnalysisNotFound) {
			t.Fatalf("want ErrAnalysisNotFound, got %v", err)
		}
	})
}
