package store

import (
	"store-api/internal/item"
	"store-api/internal/record"
)

type Store struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// View is the response shape: the store with the items that point at it.
type View struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Items []item.Item `json:"items"`
}

var Table = record.Table[Store]{
	Name:       "stores",
	NameColumn: "name",
	Columns:    []string{"name"},
	Scan: func(row record.Scanner) (Store, error) {
		var s Store
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	},
	Values: func(s Store) []any { return []any{s.Name} },
	ID:     func(s Store) int64 { return s.ID },
	SetID:  func(s *Store, id int64) { s.ID = id },
}

func NewMemoryStore() *record.MemoryStore[Store] {
	return record.NewMemoryStore(func(s Store) string { return s.Name }, Table.ID, Table.SetID)
}
