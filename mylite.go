package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/maxpert/mylite/admin"
	"github.com/maxpert/mylite/cfg"
	"github.com/maxpert/mylite/engine"
	"github.com/maxpert/mylite/protocol/query"
	"github.com/maxpert/mylite/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging. Results go to stdout, so console logs go to stderr.
	var writer io.Writer = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stderr
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	if cfg.Config.Prometheus.Enabled {
		telemetry.InitMetrics()
	}

	eng, err := engine.Open(engine.OptionsFromConfig(cfg.Config))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
		return
	}
	defer eng.Close()

	if cfg.Config.Prometheus.Enabled {
		collector := telemetry.NewMetricsCollector(eng, 30*time.Second)
		collector.Start()
		defer collector.Stop()
	}

	if cfg.HTTPEnabled() {
		srv := startHTTPServer(eng)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	script, err := readScript(*cfg.FileFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read script")
		return
	}

	statements, err := query.SplitScript(script)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to split script into statements")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := run(ctx, eng, statements, os.Stdout)

	if cfg.HTTPEnabled() {
		log.Info().Msg("Script finished, serving HTTP endpoints until interrupted")
		<-ctx.Done()
	}

	if failed > 0 {
		log.Error().Int("failed", failed).Int("statements", len(statements)).Msg("Script finished with errors")
		eng.Close()
		os.Exit(1)
	}
}

// run executes statements in order, printing each result to out. It
// returns the number of statements that failed.
func run(ctx context.Context, eng *engine.Engine, statements []string, out io.Writer) int {
	failed := 0
	for _, stmt := range statements {
		if ctx.Err() != nil {
			log.Warn().Msg("Interrupted, stopping script")
			break
		}

		res := eng.QueryContext(ctx, stmt)
		if res.IsError {
			failed++
			for _, e := range res.Errors {
				log.Error().Str("func", e.Func).Str("sql", stmt).Msg(e.Message)
			}
			continue
		}
		printResult(out, res)
	}
	return failed
}

func printResult(out io.Writer, res *engine.Result) {
	if res.ResultSet == nil {
		if res.Kind.IsMutation() {
			fmt.Fprintf(out, "Query OK, %d rows affected", res.AffectedRows)
			if res.LastInsertID > 0 {
				fmt.Fprintf(out, ", last insert id %d", res.LastInsertID)
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, "Query OK")
		}
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.ResultSet.ColumnNames(), "\t"))
	for _, row := range res.ResultSet.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(out, "%d rows in set\n", res.RowCount)
}

func readScript(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func startHTTPServer(eng *engine.Engine) *http.Server {
	var handlers *admin.AdminHandlers
	if cfg.Config.Admin.Enabled {
		handlers = admin.NewAdminHandlers(eng, cfg.Config.Database.Name)
	}

	addr := net.JoinHostPort(cfg.Config.Prometheus.Address, strconv.Itoa(cfg.Config.Prometheus.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           admin.NewRouter(handlers, telemetry.GetMetricsHandler(), cfg.Config.Admin.Secret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return srv
}
