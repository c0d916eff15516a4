package transform

import (
	"strings"
	"testing"
)

func TestMapColumnDefinition(t *testing.T) {
	tests := []struct {
		name   string
		column string
		input  string
		want   string
	}{
		{"auto increment int", "id", "int(11) unsigned NOT NULL AUTO_INCREMENT", "INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT"},
		{"auto increment with inline key", "id", "int primary key auto_increment", "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{"varchar with comment", "name", "varchar(255) NOT NULL DEFAULT 'x' COMMENT 'the name'", "TEXT NOT NULL DEFAULT 'x'"},
		{"timestamp defaults", "created", "timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP", "TEXT NOT NULL DEFAULT '0000-00-00 00:00:00'"},
		{"current_timestamp with parens", "created", "datetime DEFAULT current_timestamp()", "TEXT DEFAULT '0000-00-00 00:00:00'"},
		{"current date", "d", "date DEFAULT CURRENT_DATE", "TEXT DEFAULT '0000-00-00'"},
		{"current time", "t", "time DEFAULT CURRENT_TIME", "TEXT DEFAULT '00:00:00'"},
		{"enum", "status", "enum('a','b') NOT NULL DEFAULT 'a'", "TEXT CHECK (status IN ('a', 'b')) NOT NULL DEFAULT 'a'"},
		{"decimal unsigned zerofill", "price", "decimal(10,2) unsigned zerofill", "REAL"},
		{"tinyint bool", "b", "tinyint(1) DEFAULT 0", "INTEGER DEFAULT 0"},
		{"charset and collate", "c", "varchar(10) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin", "TEXT"},
		{"bigint", "x", "bigint", "INTEGER"},
		{"double precision", "x", "double precision", "REAL"},
		{"longblob", "data", "longblob", "BLOB"},
		{"varbinary", "data", "varbinary(16) NOT NULL", "BLOB NOT NULL"},
		{"json lower-case null", "j", "json null", "TEXT NULL"},
		{"set type", "tags", "set('x','y')", "TEXT"},
		{"keywords inside literal untouched", "note", "varchar(20) default 'unsigned now()'", "TEXT DEFAULT 'unsigned now()'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapColumnDefinition(tt.column, tt.input)
			if got != tt.want {
				t.Errorf("MapColumnDefinition(%q, %q) = %q, want %q", tt.column, tt.input, got, tt.want)
			}
		})
	}
}

func TestMapColumnDefinition_EveryTypeToken(t *testing.T) {
	for token, want := range mysqlToSQLiteTypes {
		t.Run(token, func(t *testing.T) {
			def := token
			if token == "set" {
				def += "('x')"
			}
			got := MapColumnDefinition("c", strings.ToUpper(def)+" NOT NULL")
			if got != want+" NOT NULL" {
				t.Errorf("MapColumnDefinition(%q) = %q, want %q", def, got, want+" NOT NULL")
			}
			if typ, ok := SQLiteType(token); !ok || typ != want {
				t.Errorf("SQLiteType(%q) = %q, %v", token, typ, ok)
			}
		})
	}
}

func TestMapCreateColumnDefinition_KeepsTemporalDefaults(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP", "TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP"},
		{"datetime default now()", "TEXT DEFAULT CURRENT_TIMESTAMP"},
		{"date default current_date", "TEXT DEFAULT CURRENT_DATE"},
	}

	for _, tt := range tests {
		got := MapCreateColumnDefinition("c", tt.input)
		if got != tt.want {
			t.Errorf("MapCreateColumnDefinition(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAddColumnDefinition(t *testing.T) {
	tests := []struct {
		column string
		input  string
		want   string
	}{
		{"age", "int NOT NULL", "INTEGER NOT NULL DEFAULT 0"},
		{"score", "double NOT NULL", "REAL NOT NULL DEFAULT 0"},
		{"nick", "varchar(10) NOT NULL", "TEXT NOT NULL DEFAULT ''"},
		{"nick", "varchar(10) NOT NULL DEFAULT 'x'", "TEXT NOT NULL DEFAULT 'x'"},
		{"nick", "varchar(10)", "TEXT"},
	}

	for _, tt := range tests {
		got := AddColumnDefinition(tt.column, tt.input)
		if got != tt.want {
			t.Errorf("AddColumnDefinition(%q, %q) = %q, want %q", tt.column, tt.input, got, tt.want)
		}
	}
}

func TestSQLiteType(t *testing.T) {
	tests := map[string]string{
		"BIGINT":            "INTEGER",
		"Double  Precision": "REAL",
		"mediumtext":        "TEXT",
		"year":              "TEXT",
		"tinyblob":          "BLOB",
	}
	for in, want := range tests {
		got, ok := SQLiteType(in)
		if !ok || got != want {
			t.Errorf("SQLiteType(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	if _, ok := SQLiteType("geometry"); ok {
		t.Error("geometry should not map")
	}
}
