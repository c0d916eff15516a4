package rules

import "testing"

type patternRule interface {
	Name() string
	ApplyPattern(sql string) (string, bool, error)
}

func TestPatternRules(t *testing.T) {
	tests := []struct {
		name        string
		rule        patternRule
		input       string
		expected    string
		wantApplied bool
	}{
		{"start transaction", &TransactionSyntaxRule{}, "START TRANSACTION READ ONLY", "BEGIN", true},
		{"begin work", &TransactionSyntaxRule{}, "begin work", "BEGIN", true},
		{"plain begin", &TransactionSyntaxRule{}, "BEGIN", "BEGIN", false},
		{"commit work", &TransactionSyntaxRule{}, "COMMIT WORK", "COMMIT", true},
		{"rollback and chain", &TransactionSyntaxRule{}, "ROLLBACK AND NO CHAIN", "ROLLBACK", true},
		{"rollback to savepoint untouched", &TransactionSyntaxRule{}, "ROLLBACK TO SAVEPOINT sp", "ROLLBACK TO SAVEPOINT sp", false},

		{"insert ignore", &InsertIgnoreRule{}, "INSERT IGNORE INTO t (a) VALUES (?)", "INSERT OR IGNORE INTO t (a) VALUES (?)", true},
		{"insert ignore without into", &InsertIgnoreRule{}, "insert ignore t VALUES (1)", "INSERT OR IGNORE INTO t VALUES (1)", true},
		{"insert low_priority ignore", &InsertIgnoreRule{}, "INSERT LOW_PRIORITY IGNORE INTO t VALUES (1)", "INSERT OR IGNORE INTO t VALUES (1)", true},
		{"plain insert", &InsertIgnoreRule{}, "INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (1)", false},

		{"replace into", &ReplaceIntoRule{}, "REPLACE INTO t VALUES (1)", "INSERT OR REPLACE INTO t VALUES (1)", true},
		{"replace delayed", &ReplaceIntoRule{}, "REPLACE DELAYED t VALUES (1)", "INSERT OR REPLACE INTO t VALUES (1)", true},
		{"replace function untouched", &ReplaceIntoRule{}, "SELECT REPLACE(a, 'x', 'y') FROM t", "SELECT REPLACE(a, 'x', 'y') FROM t", false},

		{"truncate table", &TruncateRule{}, "TRUNCATE TABLE `wp_posts`", "DELETE FROM `wp_posts`", true},
		{"truncate bare", &TruncateRule{}, "truncate logs;", "DELETE FROM logs", true},

		{"optimize", &OptimizeRule{}, "OPTIMIZE TABLE a, b", "VACUUM", true},

		{"force index", &IndexHintsRule{}, "SELECT * FROM t FORCE INDEX (idx_a) WHERE a = 1", "SELECT * FROM t WHERE a = 1", true},
		{"use key for join", &IndexHintsRule{}, "SELECT * FROM t USE KEY FOR JOIN (k) JOIN u", "SELECT * FROM t JOIN u", true},
		{"ignore index", &IndexHintsRule{}, "SELECT * FROM t IGNORE INDEX (a, b)", "SELECT * FROM t", true},

		{"calc found rows", &SelectModifiersRule{}, "SELECT SQL_CALC_FOUND_ROWS * FROM t", "SELECT * FROM t", true},
		{"no cache", &SelectModifiersRule{}, "SELECT SQL_NO_CACHE a FROM t", "SELECT a FROM t", true},
		{"leading straight join", &SelectModifiersRule{}, "SELECT STRAIGHT_JOIN a FROM t, u", "SELECT a FROM t, u", true},
		{"straight join between tables", &SelectModifiersRule{}, "SELECT * FROM t STRAIGHT_JOIN u ON t.a = u.a", "SELECT * FROM t JOIN u ON t.a = u.a", true},
		{"distinctrow", &SelectModifiersRule{}, "SELECT DISTINCTROW a FROM t", "SELECT DISTINCT a FROM t", true},
		{"no modifiers", &SelectModifiersRule{}, "SELECT a FROM t", "SELECT a FROM t", false},

		{"for update", &LockingRule{}, "SELECT * FROM t WHERE id = 1 FOR UPDATE", "SELECT * FROM t WHERE id = 1", true},
		{"for update nowait", &LockingRule{}, "SELECT * FROM t FOR UPDATE NOWAIT", "SELECT * FROM t", true},
		{"lock in share mode", &LockingRule{}, "SELECT * FROM t LOCK IN SHARE MODE", "SELECT * FROM t", true},
		{"subquery lock", &LockingRule{}, "SELECT a FROM (SELECT * FROM t FOR SHARE) x", "SELECT a FROM (SELECT * FROM t) x", true},

		{"limit offset", &LimitRule{}, "SELECT * FROM t LIMIT 10, 20", "SELECT * FROM t LIMIT 20 OFFSET 10", true},
		{"limit plain", &LimitRule{}, "SELECT * FROM t LIMIT 5", "SELECT * FROM t LIMIT 5", false},

		{"escaped quote", &EscapingRule{}, `CREATE TABLE t (a TEXT DEFAULT 'it\'s')`, `CREATE TABLE t (a TEXT DEFAULT 'it''s')`, true},
		{"escaped backslash", &EscapingRule{}, `ALTER TABLE t ADD a TEXT DEFAULT 'c:\\dir'`, `ALTER TABLE t ADD a TEXT DEFAULT 'c:\dir'`, true},
		{"backslash outside literal", &EscapingRule{}, `SELECT 1`, `SELECT 1`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, applied, err := tt.rule.ApplyPattern(tt.input)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.rule.Name(), err)
			}
			if applied != tt.wantApplied {
				t.Errorf("%s: applied = %v, want %v", tt.rule.Name(), applied, tt.wantApplied)
			}
			if result != tt.expected {
				t.Errorf("%s:\nInput:    %s\nExpected: %s\nGot:      %s", tt.rule.Name(), tt.input, tt.expected, result)
			}
		})
	}
}
