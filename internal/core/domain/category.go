package domain

import "strings"

// CategoryType is the kind of flow a category groups.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// IsValid reports whether t is a known category type.
func (t CategoryType) IsValid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// Category groups transactions and budgets.
type Category struct {
	CategoryID   string       `json:"id"`
	Name         string       `json:"name"`
	CategoryType CategoryType `json:"type"`
	Color        string       `json:"color"`
	IsDefault    bool         `json:"isDefault"`
}

func (c Category) RecordKind() EntityKind { return KindCategory }
func (c Category) RecordID() string       { return c.CategoryID }
func (c Category) IndexKeys() IndexKeys   { return IndexKeys{Type: string(c.CategoryType)} }

// Accepts reports whether a transaction of type t may be filed under c.
// Transfers are not restricted.
func (c Category) Accepts(t TransactionType) bool {
	switch t {
	case TransactionIncome:
		return c.CategoryType == CategoryIncome
	case TransactionExpense:
		return c.CategoryType == CategoryExpense
	}
	return true
}

// NaturalKey identifies the category across independently created ledgers.
func (c Category) NaturalKey() string {
	return strings.ToLower(strings.TrimSpace(c.Name)) + "|" + string(c.CategoryType)
}

// DefaultCategories seeds a fresh ledger.
func DefaultCategories() []Category {
	return []Category{
		{CategoryID: "cat-salary", Name: "Salary", CategoryType: CategoryIncome, Color: "#2e7d32", IsDefault: true},
		{CategoryID: "cat-other-income", Name: "Other Income", CategoryType: CategoryIncome, Color: "#66bb6a", IsDefault: true},
		{CategoryID: "cat-groceries", Name: "Groceries", CategoryType: CategoryExpense, Color: "#ef6c00", IsDefault: true},
		{CategoryID: "cat-housing", Name: "Housing", CategoryType: CategoryExpense, Color: "#6d4c41", IsDefault: true},
		{CategoryID: "cat-transport", Name: "Transport", CategoryType: CategoryExpense, Color: "#1565c0", IsDefault: true},
		{CategoryID: "cat-utilities", Name: "Utilities", CategoryType: CategoryExpense, Color: "#00838f", IsDefault: true},
		{CategoryID: "cat-entertainment", Name: "Entertainment", CategoryType: CategoryExpense, Color: "#8e24aa", IsDefault: true},
	}
}
