package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// DeletionAction says what happens to a dependent row when its parent goes away.
type DeletionAction int

const (
	// Cascade removes the dependent rows.
	Cascade DeletionAction = iota
	// Nullify clears the referencing column and keeps the rows.
	Nullify
)

func (a DeletionAction) String() string {
	switch a {
	case Cascade:
		return "cascade"
	case Nullify:
		return "nullify"
	default:
		return fmt.Sprintf("DeletionAction(%d)", int(a))
	}
}

// DeletionRule binds one referencing column to an action.
type DeletionRule struct {
	Table  string
	Column string
	Action DeletionAction
}

// deletionPolicy lists, per deleted table, the dependent rows and how they are
// handled. Test cases are only purged through an explicit hard delete; soft
// deleting a case leaves its steps and links in place.
var deletionPolicy = map[string][]DeletionRule{
	"test_cases": {
		{Table: "test_case_steps", Column: "test_case_id", Action: Cascade},
		{Table: "test_case_suites", Column: "test_case_id", Action: Cascade},
		{Table: "test_case_tags", Column: "test_case_id", Action: Cascade},
		{Table: "attachments", Column: "test_case_id", Action: Cascade},
	},
	"test_suites": {
		{Table: "test_suites", Column: "parent_id", Action: Nullify},
		{Table: "test_case_suites", Column: "suite_id", Action: Cascade},
	},
	"tags": {
		{Table: "test_case_tags", Column: "tag_id", Action: Cascade},
	},
}

// DeletionPolicy returns the rules applied when a row of table is deleted.
func DeletionPolicy(table string) []DeletionRule {
	return deletionPolicy[table]
}

// applyDeletionPolicy runs every rule for table against the row id. Callers run
// it inside the transaction that deletes the row.
func applyDeletionPolicy(tx *gorm.DB, table string, id uint) error {
	for _, rule := range deletionPolicy[table] {
		var stmt string
		switch rule.Action {
		case Cascade:
			stmt = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", rule.Table, rule.Column)
		case Nullify:
			stmt = fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", rule.Table, rule.Column, rule.Column)
		default:
			return fmt.Errorf("unknown deletion action %s for %s.%s", rule.Action, rule.Table, rule.Column)
		}
		if err := tx.Exec(stmt, id).Error; err != nil {
			return fmt.Errorf("apply %s on %s.%s: %w", rule.Action, rule.Table, rule.Column, err)
		}
	}
	return nil
}
