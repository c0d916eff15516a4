package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// QueryBuckets for single statements against local SQLite
	QueryBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

	// RebuildBuckets for table-recreation sequences (copy of a whole table)
	RebuildBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

	// StatementCountBuckets for number of target statements per input statement
	StatementCountBuckets = []float64{1, 2, 3, 4, 5, 8, 12, 20}
)

// Query Processing Metrics
var (
	// QueriesTotal counts queries by kind (select, insert, alter, ...) and result
	QueriesTotal CounterVec = noopCounterVec{}

	// QueryDurationSeconds measures query latency by kind
	QueryDurationSeconds HistogramVec = noopHistogramVec{}

	// RowsAffected measures rows affected per write query
	RowsAffected Histogram = NoopStat{}

	// RowsReturned measures rows returned per read query
	RowsReturned Histogram = NoopStat{}

	// ClassificationFailuresTotal counts statements no pattern recognised
	ClassificationFailuresTotal Counter = NoopStat{}

	// OpenTransactions is 1 while an explicit BEGIN is pending
	OpenTransactions Gauge = NoopStat{}
)

// Rewrite Metrics
var (
	// RewritesTotal counts rewrites by kind and outcome (single, sequence, noop, failed)
	RewritesTotal CounterVec = noopCounterVec{}

	// RewriteStatements measures target statements produced per rewrite
	RewriteStatements Histogram = NoopStat{}

	// RewriteCacheTotal counts rewrite cache lookups by result (hit, miss)
	RewriteCacheTotal CounterVec = noopCounterVec{}

	// TableRebuildsTotal counts table-recreation sequences by result
	TableRebuildsTotal CounterVec = noopCounterVec{}

	// TableRebuildSeconds measures table-recreation duration
	TableRebuildSeconds Histogram = NoopStat{}
)

// Execution Metrics
var (
	// BusyRetriesTotal counts retries caused by busy/locked SQLite errors
	BusyRetriesTotal Counter = NoopStat{}

	// BusyGiveUpsTotal counts statements that exhausted the retry budget
	BusyGiveUpsTotal Counter = NoopStat{}

	// ParamScanExpansionsTotal counts literal scanner budget doublings
	ParamScanExpansionsTotal Counter = NoopStat{}

	// InsertSplitsTotal counts multi-row INSERTs split into single-row statements
	InsertSplitsTotal Counter = NoopStat{}

	// DatabaseTables tracks number of user tables
	DatabaseTables Gauge = NoopStat{}

	// DatabaseSizeBytes tracks page_count * page_size
	DatabaseSizeBytes Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	// Query Processing Metrics
	QueriesTotal = NewCounterVec(
		"queries_total",
		"Total queries by kind and result",
		[]string{"kind", "result"},
	)
	QueryDurationSeconds = NewHistogramVec(
		"query_duration_seconds",
		"Query duration in seconds",
		[]string{"kind"},
		QueryBuckets,
	)
	RowsAffected = NewHistogram(
		"rows_affected",
		"Number of rows affected per write query",
	)
	RowsReturned = NewHistogram(
		"rows_returned",
		"Number of rows returned per read query",
	)
	ClassificationFailuresTotal = NewCounter(
		"classification_failures_total",
		"Statements that matched no known statement pattern",
	)
	OpenTransactions = NewGauge(
		"open_transactions",
		"Explicit transactions currently open",
	)

	// Rewrite Metrics
	RewritesTotal = NewCounterVec(
		"rewrites_total",
		"Statement rewrites by kind and outcome",
		[]string{"kind", "outcome"},
	)
	RewriteStatements = NewHistogramWithBuckets(
		"rewrite_statements",
		"Target statements produced per rewritten statement",
		StatementCountBuckets,
	)
	RewriteCacheTotal = NewCounterVec(
		"rewrite_cache_total",
		"Statement rewrite cache lookups by result",
		[]string{"result"},
	)
	TableRebuildsTotal = NewCounterVec(
		"table_rebuilds_total",
		"Table-recreation sequences by result",
		[]string{"result"},
	)
	TableRebuildSeconds = NewHistogramWithBuckets(
		"table_rebuild_seconds",
		"Table-recreation duration in seconds",
		RebuildBuckets,
	)

	// Execution Metrics
	BusyRetriesTotal = NewCounter(
		"busy_retries_total",
		"Retries caused by busy or locked database errors",
	)
	BusyGiveUpsTotal = NewCounter(
		"busy_give_ups_total",
		"Statements that exhausted the busy retry budget",
	)
	ParamScanExpansionsTotal = NewCounter(
		"param_scan_expansions_total",
		"Literal scanner budget doublings",
	)
	InsertSplitsTotal = NewCounter(
		"insert_splits_total",
		"Multi-row INSERT statements split into single-row statements",
	)
	DatabaseTables = NewGauge(
		"database_tables",
		"Number of user tables in the database",
	)
	DatabaseSizeBytes = NewGauge(
		"database_size_bytes",
		"Database size in bytes",
	)
}
