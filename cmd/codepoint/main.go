package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codepoint-impute/internal/codelist"
	"github.com/codepoint-impute/internal/codepoint"
	"github.com/codepoint-impute/internal/config"
	"github.com/codepoint-impute/internal/db"
	"github.com/codepoint-impute/internal/etl"
	"github.com/codepoint-impute/internal/impute"
	"github.com/codepoint-impute/internal/metrics"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:   "codepoint",
		Short: "Code-Point Open admin code cleaning and imputation",
		Long:  `Normalises country codes, maps area names to official codes and imputes missing district/ward codes in OS Code-Point Open`,
	}

	rootCmd.AddCommand(createImputeCmd())
	rootCmd.AddCommand(createCodelistCmd())
	rootCmd.AddCommand(createLoadPGCmd())
	rootCmd.AddCommand(createPingCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func createImputeCmd() *cobra.Command {
	settings := config.LoadSettings()
	var showChanges int

	cmd := &cobra.Command{
		Use:   "impute",
		Short: "Run the full cleaning and imputation pipeline",
		Long: `Load the postcode points, expand S/E/W country codes, replace area names with codelist codes,
fill missing district and ward codes from the nearest known postcode and write the result`,
		Run: func(cmd *cobra.Command, args []string) {
			start := time.Now()

			wardPolicy, err := impute.ParseWardPolicy(settings.WardPolicy)
			if err != nil {
				log.Fatalf("Invalid ward policy: %v", err)
			}

			// Load inputs
			dataset, err := codepoint.ReadParquet(settings.Debug, settings.InputPath)
			if err != nil {
				log.Fatalf("Failed to load postcode points: %v", err)
			}

			lookup, lookupStats, err := codelist.Load(settings.Debug, settings.CodelistPath)
			if err != nil {
				log.Fatalf("Failed to load codelist: %v", err)
			}

			run := metrics.NewRun()
			run.RowsTotal.Set(float64(len(dataset.Points)))
			run.LookupNames.Set(float64(len(lookup)))

			// Build pipeline: countries, codes, then imputation
			imputeStage := &etl.ImputeStage{
				Imputer: impute.NewImputer(impute.Options{
					MaxDistance: settings.MaxDistance,
					WardPolicy:  wardPolicy,
					Debug:       settings.Debug,
				}),
			}
			pipeline := etl.NewPipeline(settings.Debug,
				etl.CountryStage{},
				etl.CodeStage{Lookup: lookup},
				imputeStage,
			)
			pipeline.Observe(run)

			results, err := pipeline.Run(cmd.Context(), dataset.Points)
			if err != nil {
				log.Fatalf("Pipeline failed: %v", err)
			}
			run.ObserveImpute(imputeStage.Report)

			// Write output with the input's GeoParquet metadata
			out := &codepoint.Dataset{Points: etl.Final(results), GeoMetadata: dataset.GeoMetadata}
			if err := codepoint.WriteParquet(settings.Debug, settings.OutputPath, out); err != nil {
				log.Fatalf("Failed to write output: %v", err)
			}

			run.MarkSuccess()
			if settings.MetricsFile != "" {
				if err := run.WriteTextfile(settings.MetricsFile); err != nil {
					log.Printf("Failed to write metrics file: %v", err)
				}
			}

			// Print results
			fmt.Printf("\n=== Code-Point Imputation Results ===\n")
			fmt.Printf("Input: %s\n", settings.InputPath)
			fmt.Printf("Output: %s\n", settings.OutputPath)
			fmt.Printf("Rows: %d in, %d out\n", len(dataset.Points), len(out.Points))
			fmt.Printf("Codelist names: %d (%d overwritten)\n", len(lookup), lookupStats.Overwritten)
			for _, r := range results {
				fmt.Printf("Stage %-18s %8d changes  %v\n", r.Stage, len(r.Changes), r.Duration.Round(time.Millisecond))
				for i, c := range r.Changes {
					if i >= showChanges {
						break
					}
					fmt.Printf("    %s\n", c)
				}
			}
			if rep := imputeStage.Report; rep != nil {
				fmt.Printf("Known: %d\n", rep.Known)
				fmt.Printf("Missing: %d\n", rep.Missing)
				fmt.Printf("Imputed: %d\n", rep.Imputed)
				fmt.Printf("Unresolved: %d\n", rep.Unresolved)
			}
			fmt.Printf("Total time: %v\n", time.Since(start).Round(time.Millisecond))
		},
	}

	cmd.Flags().StringVar(&settings.InputPath, "input", settings.InputPath, "Code-Point Open GeoParquet file")
	cmd.Flags().StringVar(&settings.CodelistPath, "codelist", settings.CodelistPath, "OS codelist workbook")
	cmd.Flags().StringVar(&settings.OutputPath, "output", settings.OutputPath, "Output GeoParquet file")
	cmd.Flags().Float64Var(&settings.MaxDistance, "max-distance", settings.MaxDistance, "Maximum neighbour distance in metres (0 = unlimited)")
	cmd.Flags().StringVar(&settings.WardPolicy, "ward-policy", settings.WardPolicy, "Ward merge policy: independent or paired")
	cmd.Flags().StringVar(&settings.MetricsFile, "metrics-file", settings.MetricsFile, "Write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&settings.Debug, "debug", settings.Debug, "Enable debug output")
	cmd.Flags().IntVar(&showChanges, "show-changes", 0, "Print the first N changes of each stage")

	return cmd
}

func createCodelistCmd() *cobra.Command {
	settings := config.LoadSettings()

	cmd := &cobra.Command{
		Use:   "codelist [name...]",
		Short: "Inspect the area name lookup built from the codelist workbook",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			lookup, stats, err := codelist.Load(settings.Debug, settings.CodelistPath)
			if err != nil {
				log.Fatalf("Failed to load codelist: %v", err)
			}

			fmt.Printf("\n=== Codelist Lookup ===\n")
			fmt.Println("Sheet | Entries")
			fmt.Println("------|--------")
			for _, sheet := range codelist.SheetNames {
				fmt.Printf("%-5s | %7d\n", sheet, stats.PerSheet[sheet])
			}
			fmt.Printf("Total entries: %d\n", stats.Entries)
			fmt.Printf("Distinct names: %d\n", len(lookup))
			fmt.Printf("Overwritten names: %d\n", stats.Overwritten)

			for _, name := range args {
				if code, ok := lookup.Code(name); ok {
					fmt.Printf("%s -> %s\n", name, code)
				} else {
					fmt.Printf("%s -> (not found)\n", name)
				}
			}
		},
	}

	cmd.Flags().StringVar(&settings.CodelistPath, "codelist", settings.CodelistPath, "OS codelist workbook")
	cmd.Flags().BoolVar(&settings.Debug, "debug", settings.Debug, "Enable debug output")

	return cmd
}

func createLoadPGCmd() *cobra.Command {
	var table string
	var localDebug bool

	cmd := &cobra.Command{
		Use:   "load-pg [parquet]",
		Short: "Load an imputed GeoParquet file into PostGIS",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := config.LoadSettings().OutputPath
			if len(args) == 1 {
				path = args[0]
			}

			dataset, err := codepoint.ReadParquet(localDebug, path)
			if err != nil {
				log.Fatalf("Failed to load postcode points: %v", err)
			}

			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()

			loader := etl.NewOSDataLoader(conn.DB)
			loaded, err := loader.LoadCodePoints(localDebug, table, dataset.Points)
			if err != nil {
				log.Fatalf("Failed to load points: %v", err)
			}

			missing, err := loader.CountMissingDistricts(table)
			if err != nil {
				log.Printf("Error counting missing districts: %v", err)
			}

			fmt.Printf("Loaded %d postcode points into %s (%d without district)\n", loaded, table, missing)
		},
	}

	cmd.Flags().StringVar(&table, "table", config.GetEnv("CODEPOINT_PG_TABLE", config.DefaultPointTable), "Target table")
	cmd.Flags().BoolVar(&localDebug, "debug", config.GetEnvBool("CODEPOINT_DEBUG", false), "Enable debug output")

	return cmd
}

func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()

			fmt.Println("Database connection successful!")

			var version string
			if err := conn.DB.QueryRow("SELECT PostGIS_Version()").Scan(&version); err != nil {
				log.Printf("PostGIS not available: %v", err)
			} else {
				fmt.Printf("PostGIS version: %s\n", version)
			}

			var tables []string
			rows, err := conn.DB.Query(`SELECT table_name FROM information_schema.tables WHERE table_name LIKE 'codepoint%'`)
			if err != nil {
				log.Printf("Error listing tables: %v", err)
				return
			}
			defer rows.Close()
			for rows.Next() {
				var name string
				if err := rows.Scan(&name); err == nil {
					tables = append(tables, name)
				}
			}
			sort.Strings(tables)
			fmt.Printf("Code-Point tables: %v\n", tables)
		},
	}
}
