package item

import "store-api/internal/record"

type Item struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	StoreID int64   `json:"store_id"`
}

type Input struct {
	Price   *float64 `json:"price" validate:"required"`
	StoreID *int64   `json:"store_id" validate:"required"`
}

var Table = record.Table[Item]{
	Name:       "items",
	NameColumn: "name",
	Columns:    []string{"name", "price", "store_id"},
	Scan: func(row record.Scanner) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.Name, &it.Price, &it.StoreID)
		return it, err
	},
	Values: func(it Item) []any { return []any{it.Name, it.Price, it.StoreID} },
	ID:     func(it Item) int64 { return it.ID },
	SetID:  func(it *Item, id int64) { it.ID = id },
}

func NewMemoryStore() *record.MemoryStore[Item] {
	return record.NewMemoryStore(func(it Item) string { return it.Name }, Table.ID, Table.SetID)
}
