package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Snapshot is the full ledger content exchanged during sync.
type Snapshot struct {
	Transactions []Transaction `json:"transactions"`
	Accounts     []Account     `json:"accounts"`
	Categories   []Category    `json:"categories"`
	Budgets      []Budget      `json:"budgets"`
}

// Normalize sorts every collection by id and replaces nil slices with empty ones,
// so that equal ledgers serialize to equal bytes.
func (s *Snapshot) Normalize() {
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.Accounts == nil {
		s.Accounts = []Account{}
	}
	if s.Categories == nil {
		s.Categories = []Category{}
	}
	if s.Budgets == nil {
		s.Budgets = []Budget{}
	}
	sort.Slice(s.Transactions, func(i, j int) bool { return s.Transactions[i].TransactionID < s.Transactions[j].TransactionID })
	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].AccountID < s.Accounts[j].AccountID })
	sort.Slice(s.Categories, func(i, j int) bool { return s.Categories[i].CategoryID < s.Categories[j].CategoryID })
	sort.Slice(s.Budgets, func(i, j int) bool { return s.Budgets[i].BudgetID < s.Budgets[j].BudgetID })
}

// Fingerprint is a content hash of the normalized snapshot.
func (s Snapshot) Fingerprint() (string, error) {
	s.Transactions = append([]Transaction(nil), s.Transactions...)
	s.Accounts = append([]Account(nil), s.Accounts...)
	s.Categories = append([]Category(nil), s.Categories...)
	s.Budgets = append([]Budget(nil), s.Budgets...)
	s.Normalize()
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

