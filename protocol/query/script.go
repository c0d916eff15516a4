package query

import (
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	scriptParser     *sqlparser.Parser
	scriptParserErr  error
	scriptParserOnce sync.Once
)

// SplitScript splits a SQL script on top-level semicolons. Semicolons in
// string literals, quoted identifiers and comments do not split.
func SplitScript(script string) ([]string, error) {
	scriptParserOnce.Do(func() {
		scriptParser, scriptParserErr = sqlparser.New(sqlparser.Options{})
	})
	if scriptParserErr != nil {
		return nil, scriptParserErr
	}

	pieces, err := scriptParser.SplitStatementToPieces(script)
	if err != nil {
		return nil, err
	}

	out := pieces[:0]
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" && p != ";" {
			out = append(out, p)
		}
	}
	return out, nil
}
