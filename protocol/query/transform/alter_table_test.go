package transform

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitAlter(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantTable   string
		wantClauses []string
	}{
		{
			name:        "backticks and two clauses",
			input:       "ALTER TABLE `users` ADD COLUMN `age` INT, ADD INDEX idx_age (age)",
			wantTable:   "users",
			wantClauses: []string{"ADD COLUMN age INT", "ADD INDEX idx_age (age)"},
		},
		{
			name:        "schema qualified with trailing semicolon",
			input:       "alter table shop.orders drop index idx_x;",
			wantTable:   "orders",
			wantClauses: []string{"drop index idx_x"},
		},
		{
			name:        "comma inside default literal",
			input:       "ALTER TABLE t ADD note VARCHAR(10) DEFAULT 'a,b'",
			wantTable:   "t",
			wantClauses: []string{"ADD note VARCHAR(10) DEFAULT 'a,b'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, clauses, err := SplitAlter(tt.input)
			if err != nil {
				t.Fatalf("SplitAlter() error = %v", err)
			}
			if table != tt.wantTable {
				t.Errorf("table = %q, want %q", table, tt.wantTable)
			}
			if !reflect.DeepEqual(clauses, tt.wantClauses) {
				t.Errorf("clauses = %#v, want %#v", clauses, tt.wantClauses)
			}
		})
	}

	if _, _, err := SplitAlter("SELECT 1"); err == nil {
		t.Error("expected error for non ALTER statement")
	}
}

func TestParseAlterClause(t *testing.T) {
	tests := []struct {
		name   string
		clause string
		want   AlterCommand
	}{
		{"add column", "ADD COLUMN age INT NOT NULL",
			AlterCommand{SubCommand: AlterAddColumn, Column: "age", Definition: "INT NOT NULL"}},
		{"add bare column", "ADD age INT",
			AlterCommand{SubCommand: AlterAddColumn, Column: "age", Definition: "INT"}},
		{"add index", "ADD INDEX idx_age (age)",
			AlterCommand{SubCommand: AlterAddIndex, IndexName: "idx_age", IndexColumns: []string{"age"}}},
		{"add unique key with prefix length", "ADD UNIQUE KEY uk_email (email(191))",
			AlterCommand{SubCommand: AlterAddIndex, IndexName: "uk_email", IndexColumns: []string{"email"}, Unique: true}},
		{"add unnamed unique", "ADD UNIQUE (email)",
			AlterCommand{SubCommand: AlterAddIndex, IndexName: "email", IndexColumns: []string{"email"}, Unique: true}},
		{"add composite key with order", "ADD KEY idx_ab (a DESC, b ASC) USING BTREE",
			AlterCommand{SubCommand: AlterAddIndex, IndexName: "idx_ab", IndexColumns: []string{"a", "b"}}},
		{"add fulltext", "ADD FULLTEXT INDEX ft_body (body)",
			AlterCommand{SubCommand: AlterAddIndex, IndexName: "ft_body", IndexColumns: []string{"body"}}},
		{"add primary key", "ADD PRIMARY KEY (id, tenant)",
			AlterCommand{SubCommand: AlterAddPrimaryKey, IndexColumns: []string{"id", "tenant"}}},
		{"add named primary key", "ADD CONSTRAINT pk PRIMARY KEY (id)",
			AlterCommand{SubCommand: AlterAddPrimaryKey, IndexColumns: []string{"id"}}},
		{"drop index", "DROP INDEX idx_age",
			AlterCommand{SubCommand: AlterDropIndex, IndexName: "idx_age"}},
		{"drop key", "drop key idx",
			AlterCommand{SubCommand: AlterDropIndex, IndexName: "idx"}},
		{"drop primary key", "DROP PRIMARY KEY",
			AlterCommand{SubCommand: AlterDropPrimaryKey}},
		{"drop column", "DROP COLUMN age",
			AlterCommand{SubCommand: AlterDropColumn, Column: "age"}},
		{"drop bare column", "DROP age",
			AlterCommand{SubCommand: AlterDropColumn, Column: "age"}},
		{"rename to", "RENAME TO people",
			AlterCommand{SubCommand: AlterRenameTable, NewColumn: "people"}},
		{"rename as", "RENAME AS people",
			AlterCommand{SubCommand: AlterRenameTable, NewColumn: "people"}},
		{"rename bare", "RENAME people",
			AlterCommand{SubCommand: AlterRenameTable, NewColumn: "people"}},
		{"rename column", "RENAME COLUMN a TO b",
			AlterCommand{SubCommand: AlterRenameColumn, Column: "a", NewColumn: "b"}},
		{"modify", "MODIFY COLUMN name VARCHAR(200) NOT NULL",
			AlterCommand{SubCommand: AlterModifyColumn, Column: "name", Definition: "VARCHAR(200) NOT NULL"}},
		{"change", "CHANGE name full_name VARCHAR(200)",
			AlterCommand{SubCommand: AlterChangeColumn, Column: "name", NewColumn: "full_name", Definition: "VARCHAR(200)"}},
		{"set default", "ALTER COLUMN status SET DEFAULT 'active'",
			AlterCommand{SubCommand: AlterColumnDefault, Column: "status", Default: "'active'"}},
		{"drop default", "ALTER status DROP DEFAULT",
			AlterCommand{SubCommand: AlterColumnDefault, Column: "status", DropDefault: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlterClause("users", tt.clause)
			if err != nil {
				t.Fatalf("ParseAlterClause(%q) error = %v", tt.clause, err)
			}
			tt.want.Table = "users"
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("ParseAlterClause(%q) = %+v, want %+v", tt.clause, *got, tt.want)
			}
		})
	}
}

func TestParseAlterClause_Errors(t *testing.T) {
	clauses := []string{
		"ENGINE=InnoDB",
		"ADD FOREIGN KEY (a) REFERENCES b(id)",
		"ADD CONSTRAINT fk FOREIGN KEY (a) REFERENCES b(id)",
		"DROP FOREIGN KEY fk",
		"DROP PRIMARY",
		"RENAME INDEX a TO b",
		"ALTER COLUMN x SET",
		"ALTER COLUMN x",
		"ADD INDEX idx (",
		"ADD COLUMN age",
		"DROP INDEX a b",
	}

	for _, clause := range clauses {
		_, err := ParseAlterClause("users", clause)
		var perr *AlterParseError
		if !errors.As(err, &perr) {
			t.Errorf("ParseAlterClause(%q) error = %v, want *AlterParseError", clause, err)
			continue
		}
		if perr.Table != "users" || perr.Clause != clause {
			t.Errorf("ParseAlterClause(%q) error fields = %+v", clause, perr)
		}
	}
}

func TestAlterSubCommand(t *testing.T) {
	recreate := map[AlterSubCommand]bool{
		AlterAddColumn:      false,
		AlterRenameTable:    false,
		AlterAddIndex:       false,
		AlterDropIndex:      false,
		AlterDropColumn:     false,
		AlterRenameColumn:   false,
		AlterAddPrimaryKey:  true,
		AlterDropPrimaryKey: true,
		AlterModifyColumn:   true,
		AlterChangeColumn:   true,
		AlterColumnDefault:  true,
	}
	for sub, want := range recreate {
		if got := sub.RequiresRecreation(); got != want {
			t.Errorf("%s.RequiresRecreation() = %v, want %v", sub, got, want)
		}
	}

	if AlterModifyColumn.String() != "modify_column" {
		t.Errorf("String() = %q", AlterModifyColumn.String())
	}
	if AlterSubCommand(99).String() != "subcommand(99)" {
		t.Errorf("String() = %q", AlterSubCommand(99).String())
	}
}
