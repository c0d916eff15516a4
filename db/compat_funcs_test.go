package db

import (
	"database/sql"
	"testing"
)

func openCompatDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCompatFuncs(t *testing.T) {
	db := openCompatDB(t)

	tests := []struct {
		name     string
		query    string
		args     []interface{}
		expected string
	}{
		{"year", "SELECT YEAR(?)", []interface{}{"2024-12-11 14:30:00"}, "2024"},
		{"month", "SELECT MONTH(?)", []interface{}{"2024-02-29"}, "2"},
		{"day", "SELECT DAY(?)", []interface{}{"2024-02-29"}, "29"},
		{"hour", "SELECT HOUR(?)", []interface{}{"2024-02-29 07:08:09"}, "7"},
		{"date_format", "SELECT DATE_FORMAT(?, '%Y/%m/%d %H:%i:%s')", []interface{}{"2024-03-05 07:08:09"}, "2024/03/05 07:08:09"},
		{"date_format names", "SELECT DATE_FORMAT(?, '%W %M %e, %y %p')", []interface{}{"2024-03-05 17:08:09"}, "Tuesday March 5, 24 PM"},
		{"date_format literal percent", "SELECT DATE_FORMAT(?, '100%% %Q')", []interface{}{"2024-03-05"}, "100% Q"},
		{"datediff", "SELECT DATEDIFF(?, ?)", []interface{}{"2024-03-05 23:00:00", "2024-03-01"}, "4"},
		{"md5", "SELECT MD5(?)", []interface{}{"hello"}, "5d41402abc4b2a76b9719d911017c592"},
		{"sha1", "SELECT SHA1(?)", []interface{}{"abc"}, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"concat_ws skips null", "SELECT CONCAT_WS(',', 'a', NULL, 'b', 3)", nil, "a,b,3"},
		{"left", "SELECT LEFT('héllo', 2)", nil, "hé"},
		{"right", "SELECT RIGHT('hello', 3)", nil, "llo"},
		{"right longer than string", "SELECT RIGHT('hi', 5)", nil, "hi"},
		{"find_in_set", "SELECT FIND_IN_SET('b', 'a,b,c')", nil, "2"},
		{"find_in_set missing", "SELECT FIND_IN_SET('z', 'a,b,c')", nil, "0"},
		{"if true", "SELECT IF(1 > 0, 'yes', 'no')", nil, "yes"},
		{"if null", "SELECT IF(NULL, 'yes', 'no')", nil, "no"},
		{"isnull", "SELECT ISNULL(NULL)", nil, "1"},
		{"regexp", "SELECT 'Hello World' REGEXP '^hello'", nil, "1"},
		{"regexp no match", "SELECT 'Hello' REGEXP '^world'", nil, "0"},
		{"from_unixtime roundtrip", "SELECT FROM_UNIXTIME(UNIX_TIMESTAMP(?))", []interface{}{"2024-03-05 07:08:09"}, "2024-03-05 07:08:09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result sql.NullString
			if err := db.QueryRow(tt.query, tt.args...).Scan(&result); err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if !result.Valid {
				t.Fatalf("Expected %q, got NULL", tt.expected)
			}
			if result.String != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result.String)
			}
		})
	}
}

func TestCompatFuncs_ZeroDatesAreNull(t *testing.T) {
	db := openCompatDB(t)

	for _, q := range []string{
		"SELECT YEAR('0000-00-00 00:00:00')",
		"SELECT DATE_FORMAT('0000-00-00', '%Y')",
		"SELECT UNIX_TIMESTAMP('')",
		"SELECT MONTH(NULL)",
		"SELECT MD5(NULL)",
		"SELECT NULL REGEXP 'a'",
	} {
		var result sql.NullString
		if err := db.QueryRow(q).Scan(&result); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
		if result.Valid {
			t.Errorf("%s: expected NULL, got %q", q, result.String)
		}
	}
}

func TestCompatFuncs_NowShape(t *testing.T) {
	db := openCompatDB(t)

	var now, today string
	if err := db.QueryRow("SELECT NOW(), CURDATE()").Scan(&now, &today); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(now) != len(mysqlDateTimeLayout) || now[:10] != today {
		t.Errorf("NOW() = %q, CURDATE() = %q", now, today)
	}
}

func TestCompatFuncs_InvalidInput(t *testing.T) {
	db := openCompatDB(t)

	var result sql.NullString
	if err := db.QueryRow("SELECT YEAR('not a date')").Scan(&result); err == nil {
		t.Error("expected error for invalid date")
	}
	if err := db.QueryRow("SELECT 'a' REGEXP '('").Scan(&result); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestRandSeeded(t *testing.T) {
	a := randFloat(int64(42))
	b := randFloat(int64(42))
	if a != b {
		t.Errorf("RAND(42) not deterministic: %v != %v", a, b)
	}
	if v := randFloat(); v < 0 || v >= 1 {
		t.Errorf("RAND() = %v out of range", v)
	}
}
