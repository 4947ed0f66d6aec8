package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"avoidance-core/internal/config"
	"avoidance-core/internal/encounter"
	"avoidance-core/internal/eventbus"
	"avoidance-core/internal/minio"
	"avoidance-core/internal/schema"
	"avoidance-core/services/avoidhelm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the helm against the message bus",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	cfg := avoidhelm.Config{
		VehicleID:    getEnv("VEHICLE_NAME", ""),
		KafkaBrokers: getEnvBrokers("KAFKA_BROKERS", []string{"redpanda:9092"}),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		CyclePeriod:  getEnvDuration("CYCLE_PERIOD", 250*time.Millisecond),
		GroupID:      getEnv("KAFKA_GROUP_ID", ""),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	validator, err := schema.NewTemplateValidator()
	if err != nil {
		return fmt.Errorf("template schema: %w", err)
	}

	var objects *minio.Client
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		objects, err = minio.NewClient(minio.Config{
			Endpoint:        endpoint,
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			Region:          getEnv("MINIO_REGION", ""),
		})
		if err != nil {
			return err
		}
	}

	// A local file wins over the object store and is watched for edits.
	var (
		loader config.Loader
		file   *config.FileLoader
	)
	configBucket := getEnv("MINIO_CONFIG_BUCKET", "avoidhelm-config")
	switch path := os.Getenv("BEHAVIOR_CONFIG"); {
	case path != "":
		file = &config.FileLoader{Path: path, Validator: validator}
		loader = file
	case objects != nil:
		loader = config.NewStore(ctx, objects, configBucket, validator, getEnvDuration("CONFIG_REFRESH", time.Minute), logger)
	default:
		return fmt.Errorf("set BEHAVIOR_CONFIG or MINIO_ENDPOINT to load behavior templates")
	}
	ts, err := loader.Load(ctx, cfg.VehicleID)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	recorder, closeRecorder, err := newRecorder(ctx, objects, logger)
	if err != nil {
		return err
	}
	defer closeRecorder()

	bus := eventbus.NewEventBus(cfg.KafkaBrokers, logger)
	defer bus.Close()

	svc, err := avoidhelm.NewService(cfg, ts, bus, recorder, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	if file != nil {
		g.Go(func() error { return file.Watch(ctx, ts.Vehicle, svc.Reload, logger) })
	} else {
		g.Go(func() error {
			pollTemplates(ctx, loader, ts, getEnvDuration("CONFIG_REFRESH", time.Minute), svc.Reload, logger)
			return nil
		})
	}
	err = g.Wait()
	logger.Info("avoidhelm stopped")
	return err
}

// newRecorder archives encounters to MinIO and Neo4j when they are configured.
func newRecorder(ctx context.Context, objects *minio.Client, logger *slog.Logger) (encounter.Recorder, func(), error) {
	var (
		recs    encounter.Multi
		closers []func()
	)
	if objects != nil {
		bucket := getEnv("MINIO_ENCOUNTER_BUCKET", "avoidhelm-encounters")
		if err := objects.EnsureBucket(ctx, bucket); err != nil {
			return nil, nil, err
		}
		recs = append(recs, encounter.NewArchive(objects, bucket))
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		graph, err := encounter.NewGraph(ctx, uri, getEnv("NEO4J_USER", "neo4j"), getEnv("NEO4J_PASSWORD", ""))
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, graph)
		closers = append(closers, func() {
			if err := graph.Close(context.Background()); err != nil {
				logger.Warn("neo4j close", "error", err)
			}
		})
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(recs) == 0 {
		logger.Info("encounter archive disabled")
		return encounter.Discard{}, closeAll, nil
	}
	return recs, closeAll, nil
}

// pollTemplates reloads templates from the store and hands on every new
// version. The store caches, so an unchanged document comes back as the same
// value.
func pollTemplates(ctx context.Context, loader config.Loader, current *config.Templates, every time.Duration, onChange func(*config.Templates), logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts, err := loader.Load(ctx, current.Vehicle)
			if err != nil {
				logger.Warn("template refresh failed", "error", err)
				continue
			}
			if ts != current {
				current = ts
				onChange(ts)
			}
		}
	}
}
