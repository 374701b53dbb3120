package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/search"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

// searchScheduler mirrors the ingest service's optional search hook. The
// interface stays nil when sync is disabled; a nil *search.Syncer would
// still pass the service's nil check.
type searchScheduler interface {
	ScheduleCourseAdd(course models.CourseWithSections) error
	ScheduleCourseRemove(id string) error
	ScheduleTimetableRemove(id int) error
}

// corrections is the input for a reconciliation run. Section rows are
// addressed by id and carry the corrected slot encodings.
type corrections struct {
	CourseCode string `json:"courseCode"`
	Sections   []struct {
		ID       string   `json:"id"`
		RoomTime []string `json:"roomTime"`
	} `json:"sections"`
}

func main() {
	var (
		file      = flag.String("file", "", "path to the dataset json (or corrections json with -reconcile)")
		overwrite = flag.Bool("overwrite", false, "replace an already ingested cohort")
		reconcile = flag.Bool("reconcile", false, "treat -file as a corrections file and repair timetables")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("missing -file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	raw, err := os.ReadFile(*file)
	if err != nil {
		logr.Sugar().Fatalw("failed to read input file", "file", *file, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	if *reconcile {
		runReconcile(ctx, raw, courseRepo, sectionRepo, timetableRepo, db, metricsSvc, logr.Sugar())
		return
	}

	var dataset models.Dataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		logr.Sugar().Fatalw("failed to parse dataset", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, skipping cache invalidation", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	guard := repository.NewIngestGuard(db, cfg.Ingest.AdvisoryLockKey)

	var syncer *search.Syncer
	var scheduler searchScheduler
	if cfg.Search.Enabled {
		client := search.NewClient(cfg.Search.BaseURL, cfg.Search.Timeout, logr)
		syncer = search.NewSyncer(client, search.SyncerConfig{
			Workers: cfg.Search.Workers,
			Retries: cfg.Search.Retries,
			Logger:  logr,
		})
		syncer.Start(ctx)
		scheduler = syncer
	}

	ingestSvc := service.NewIngestService(
		courseRepo,
		sectionRepo,
		timetableRepo,
		guard,
		db,
		cacheRepo,
		scheduler,
		nil,
		logr,
		service.IngestConfig{OverwriteDelay: cfg.Ingest.OverwriteDelay},
	)

	start := time.Now()
	summary, err := ingestSvc.Ingest(ctx, dataset, *overwrite)
	metricsSvc.RecordIngestRun(err == nil, time.Since(start))
	syncer.Drain()
	if err != nil {
		logr.Sugar().Fatalw("ingestion failed", "error", err)
	}

	archiveDataset(raw, summary, logr.Sugar())
	printJSON(summary)
}

// archiveDataset keeps an on-disk copy of every ingested dataset so an
// overwritten cohort can be re-ingested later. Failure to archive never
// fails the run.
func archiveDataset(raw []byte, summary *models.IngestSummary, logr *zap.SugaredLogger) {
	if summary.NoOp {
		return
	}
	store, err := storage.NewLocalStorage("./data/ingested")
	if err != nil {
		logr.Warnw("failed to open dataset archive", "error", err)
		return
	}
	name := fmt.Sprintf("%d-%d-%d.json", summary.Cohort.AcadYear, summary.Cohort.Semester, time.Now().Unix())
	if _, err := store.Save(name, raw); err != nil {
		logr.Warnw("failed to archive dataset", "file", name, "error", err)
	}
}

func runReconcile(
	ctx context.Context,
	raw []byte,
	courseRepo *repository.CourseRepository,
	sectionRepo *repository.SectionRepository,
	timetableRepo *repository.TimetableRepository,
	db *sqlx.DB,
	metricsSvc *service.MetricsService,
	logr *zap.SugaredLogger,
) {
	var input corrections
	if err := json.Unmarshal(raw, &input); err != nil {
		logr.Fatalw("failed to parse corrections", "error", err)
	}
	// Exam-window corrections carry no section entries; the refreshed course
	// row alone drives the repair.
	if input.CourseCode == "" {
		logr.Fatalw("corrections need a courseCode")
	}

	course, err := courseRepo.GetCurrentByCode(ctx, input.CourseCode)
	if err != nil {
		logr.Fatalw("failed to load course", "courseCode", input.CourseCode, "error", err)
	}

	sections := make([]models.Section, 0, len(input.Sections))
	for _, entry := range input.Sections {
		sections = append(sections, models.Section{
			ID:       entry.ID,
			CourseID: course.ID,
			RoomTime: entry.RoomTime,
		})
	}

	reconcileSvc := service.NewReconcileService(sectionRepo, timetableRepo, db, nil)
	summary, err := reconcileSvc.Reconcile(ctx, *course, sections)
	if err != nil {
		logr.Fatalw("reconciliation failed", "error", err)
	}
	metricsSvc.RecordReconciliation(summary.TimetablesRepaired, summary.SectionsEvicted)

	printJSON(summary)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to render summary: %v", err)
	}
	fmt.Println(string(out))
}
