// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/poiesic/atlas"
	"github.com/poiesic/atlas/answer"
	"github.com/poiesic/atlas/config"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/metrics"
	"github.com/poiesic/atlas/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	// .env is optional; environment wins over the config file either way.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "atlas",
		Usage: "Hybrid spatiotemporal retrieval and grounded answering engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Ask a question and stream a grounded answer",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags:     append(queryFlags(), answerFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid query and list ranked results",
				ArgsUsage: "<query text>",
				Action:    searchCommand,
				Flags:     queryFlags(),
			},
			{
				Name:   "ingest",
				Usage:  "Ingest entities from an NDJSON file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to NDJSON file, one entity per line",
						Required: true,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete entities by id",
				ArgsUsage: "<id> [<id>...]",
				Action:    deleteCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored entities with new embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entities to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entities",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "lat",
			Usage: "Latitude of the spatial filter center",
		},
		&cli.Float64Flag{
			Name:  "lon",
			Usage: "Longitude of the spatial filter center",
		},
		&cli.Float64Flag{
			Name:  "radius",
			Usage: "Spatial filter radius in kilometers",
		},
		&cli.Int64Flag{
			Name:  "from",
			Usage: "Start of the time window (timeline coordinate)",
		},
		&cli.Int64Flag{
			Name:  "to",
			Usage: "End of the time window (timeline coordinate)",
		},
		&cli.StringFlag{
			Name:  "category",
			Usage: "Restrict results to one metadata category",
		},
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of results to return",
			Value:   5,
		},
	}
}

func answerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-sources",
			Usage: "Suppress the source listing before the answer",
		},
	}
}

// openEngine builds the engine from the config file, flag overrides, and
// environment.
func openEngine(c *cli.Context) (*atlas.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Store.Path
	if c.String("db") != "" {
		dbPath = c.String("db")
	}

	weights, err := cfg.Weights()
	if err != nil {
		return nil, err
	}

	opts := []atlas.EngineOption{
		atlas.WithAIConfig(cfg.AIConfig()),
		atlas.WithWeights(weights),
	}
	if cfg.Search.BranchTimeoutSecs > 0 {
		opts = append(opts, atlas.WithBranchTimeout(time.Duration(cfg.Search.BranchTimeoutSecs)*time.Second))
	}
	if cfg.Answer.TokenBudget > 0 {
		opts = append(opts, atlas.WithTokenBudget(cfg.Answer.TokenBudget))
	}
	if cfg.Answer.IdleTimeoutSecs > 0 {
		opts = append(opts, atlas.WithIdleTimeout(time.Duration(cfg.Answer.IdleTimeoutSecs)*time.Second))
	}
	if cfg.Metrics.Addr != "" {
		recorder := metrics.NewPrometheus()
		recorder.Serve(cfg.Metrics.Addr)
		opts = append(opts, atlas.WithMetrics(recorder))
	}

	return atlas.Open(dbPath, opts...)
}

// buildQuery assembles a core.Query from command flags and arguments.
func buildQuery(c *cli.Context) (*core.Query, error) {
	text := strings.Join(c.Args().Slice(), " ")
	if text == "" {
		return nil, fmt.Errorf("query text is required")
	}

	query := &core.Query{
		Text:     text,
		Category: c.String("category"),
		TopK:     c.Int("top-k"),
	}

	if c.IsSet("lat") || c.IsSet("lon") || c.IsSet("radius") {
		if !c.IsSet("lat") || !c.IsSet("lon") || !c.IsSet("radius") {
			return nil, fmt.Errorf("spatial filter requires lat, lon, and radius together")
		}
		query.GeoFilter = &core.GeoFilter{
			Center:       core.GeoPoint{Lat: c.Float64("lat"), Lon: c.Float64("lon")},
			RadiusMeters: c.Float64("radius") * 1000,
		}
	}

	if c.IsSet("from") || c.IsSet("to") {
		window := core.TimeRange{Start: core.TimeMin, End: core.TimeMax}
		if c.IsSet("from") {
			window.Start = c.Int64("from")
		}
		if c.IsSet("to") {
			window.End = c.Int64("to")
		}
		query.TimeFilter = &window
	}

	return query, nil
}

func askCommand(c *cli.Context) error {
	query, err := buildQuery(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ch, err := engine.Answer(context.Background(), query)
	if err != nil {
		return err
	}

	heading := color.New(color.FgCyan, color.Bold)
	source := color.New(color.FgYellow)
	cited := color.New(color.FgGreen)

	for chunk := range ch {
		switch {
		case chunk.Err != nil:
			return chunk.Err
		case len(chunk.Sources) > 0 && !c.Bool("no-sources"):
			heading.Fprintln(os.Stderr, "Sources:")
			for i, attribution := range chunk.Sources {
				source.Fprintf(os.Stderr, "  [%d] %s\n", i+1, describeAttribution(attribution))
			}
			fmt.Fprintln(os.Stderr)
		case chunk.Final:
			fmt.Println()
			if len(chunk.Attribution) > 0 {
				cited.Fprintln(os.Stderr, "\nCited:")
				for _, attribution := range chunk.Attribution {
					cited.Fprintf(os.Stderr, "  - %s\n", describeAttribution(attribution))
				}
			}
		default:
			fmt.Print(chunk.Text)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query, err := buildQuery(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Search(context.Background(), query)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d hits\n", len(results))
	title := color.New(color.FgYellow)
	for i, hit := range results {
		entity, err := engine.EntityRepository().GetEntity(context.Background(), hit.Id)
		if err != nil {
			return err
		}
		title.Printf("%d: %s (%d)\n", i+1, entity.Title, entity.Id)
		fmt.Printf("   combined %.3f (semantic %.3f, spatial %.3f, temporal %.3f)\n",
			hit.CombinedScore, hit.SemanticScore, hit.SpatialScore, hit.TemporalScore)
	}
	return nil
}

// ingestEntity is the NDJSON wire form of one entity.
type ingestEntity struct {
	Id       uint64            `json:"id,omitempty"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Ring     [][2]float64      `json:"ring,omitempty"`
	EraStart *int64            `json:"era_start,omitempty"`
	EraEnd   *int64            `json:"era_end,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (ie *ingestEntity) toEntity() *core.GeoEntity {
	entity := &core.GeoEntity{
		Id:       core.ID(ie.Id),
		Title:    ie.Title,
		Text:     ie.Text,
		Metadata: ie.Metadata,
	}

	switch {
	case len(ie.Ring) > 0:
		ring := make([]core.GeoPoint, len(ie.Ring))
		for i, p := range ie.Ring {
			ring[i] = core.GeoPoint{Lat: p[0], Lon: p[1]}
		}
		entity.Geometry = &core.Geometry{Kind: core.GeometryPolygon, Ring: ring}
	case ie.Lat != nil && ie.Lon != nil:
		entity.Geometry = &core.Geometry{
			Kind:  core.GeometryPoint,
			Point: core.GeoPoint{Lat: *ie.Lat, Lon: *ie.Lon},
		}
	}

	if ie.EraStart != nil || ie.EraEnd != nil {
		era := core.TimeRange{Start: core.TimeMin, End: core.TimeMax}
		if ie.EraStart != nil {
			era.Start = *ie.EraStart
		}
		if ie.EraEnd != nil {
			era.End = *ie.EraEnd
		}
		entity.Era = &era
	}

	return entity
}

func ingestCommand(c *cli.Context) error {
	file, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	var entities []*core.GeoEntity
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ie ingestEntity
		if err := json.Unmarshal([]byte(text), &ie); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		entities = append(entities, ie.toEntity())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("no entities in %s", c.String("file"))
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	started := time.Now()
	if err := engine.Ingest(context.Background(), entities...); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingested %d entities in %v\n", len(entities), time.Since(started).Round(time.Millisecond))
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one id is required")
	}

	ids := make([]core.ID, c.NArg())
	for i, arg := range c.Args().Slice() {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids[i] = core.ID(id)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Delete(context.Background(), ids...); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Deleted %d entities\n", len(ids))
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Reembed(context.Background(), reembedConfig, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

// describeAttribution renders one source line for the terminal.
func describeAttribution(a answer.Attribution) string {
	var sb strings.Builder
	sb.WriteString(a.Title)
	details := make([]string, 0, 2)
	if a.Location != "" {
		details = append(details, a.Location)
	}
	if a.Period != "" {
		details = append(details, a.Period)
	}
	if len(details) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(details, "; "))
	}
	return sb.String()
}

func setupLogger(c *cli.Context) error {
	// The flag wins when given; otherwise the config file and the
	// ATLAS_LOG_LEVEL environment variable decide.
	levelStr := c.String("log-level")
	if !c.IsSet("log-level") {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		levelStr = cfg.Logging.Level
	}
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
