package handlers

import (
	"sort"
	"strings"

	"github.com/maxpert/mylite/protocol"
	"github.com/rs/zerolog/log"
)

// ServerVersion is what VERSION() and @@version report.
const ServerVersion = "8.0.32-mylite"

// systemVariables are the values reported by SHOW VARIABLES. Names are lower case.
var systemVariables = map[string]string{
	"version":                  ServerVersion,
	"version_comment":          "mylite",
	"max_allowed_packet":       "67108864",
	"character_set_client":     "utf8mb4",
	"character_set_connection": "utf8mb4",
	"character_set_database":   "utf8mb4",
	"character_set_results":    "utf8mb4",
	"character_set_server":     "utf8mb4",
	"collation_connection":     "utf8mb4_general_ci",
	"collation_database":       "utf8mb4_general_ci",
	"collation_server":         "utf8mb4_general_ci",
	"autocommit":               "ON",
	"sql_mode":                 "",
	"time_zone":                "SYSTEM",
	"system_time_zone":         "UTC",
	"lower_case_table_names":   "0",
	"max_connections":          "1",
	"wait_timeout":             "28800",
	"interactive_timeout":      "28800",
	"net_write_timeout":        "60",
	"tx_isolation":             "SERIALIZABLE",
	"transaction_isolation":    "SERIALIZABLE",
	"read_only":                "OFF",
	"innodb_version":           "",
	"have_ssl":                 "DISABLED",
	"ft_min_word_len":          "4",
	"ft_max_word_len":          "84",
}

// HandleShowVariables answers SHOW [GLOBAL|SESSION] VARIABLES.
//
// Known variables matching the LIKE pattern are listed sorted by name. A
// pattern without % that matches nothing still yields one row carrying the
// requested name and an empty value. WHERE Variable_name = x behaves like
// LIKE 'x'.
func HandleShowVariables(like, whereColumn, whereValue string) (*protocol.ResultSet, error) {
	if strings.EqualFold(whereColumn, "Variable_name") && like == "" {
		like = whereValue
		whereColumn = ""
	}
	log.Debug().Str("filter", like).Msg("Handling SHOW VARIABLES")

	result := &protocol.ResultSet{
		Columns: protocol.TextColumns("Variable_name", "Value"),
		Rows:    make([][]interface{}, 0),
	}

	names := make([]string, 0, len(systemVariables))
	for name := range systemVariables {
		if likeMatch(like, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		result.Rows = append(result.Rows, []interface{}{name, systemVariables[name]})
	}

	if len(names) == 0 && like != "" && !hasPercent(like) {
		result.Rows = append(result.Rows, []interface{}{strings.ToLower(unescapeLike(like)), ""})
	}

	if whereColumn != "" {
		result.Rows = filterRows(result, whereColumn, whereValue)
	}
	return result, nil
}
