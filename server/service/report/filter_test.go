package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

func stockRecords(stocks ...int) []inventory.Record {
	records := make([]inventory.Record, len(stocks))
	for i, s := range stocks {
		records[i] = inventory.Record{
			"id":          float64(i + 1),
			"nombre":      fmt.Sprintf("Medicamento %d", i+1),
			"existencias": float64(s),
		}
	}
	return records
}

func TestFilter_PartitionsByStock(t *testing.T) {
	records := stockRecords(0, 5, 0, 3)

	in := Filter(records, InStock)
	out := Filter(records, OutOfStock)

	require.Len(t, in, 2)
	require.Len(t, out, 2)
	assert.EqualValues(t, 5, Stock(in[0]))
	assert.EqualValues(t, 3, Stock(in[1]))
	assert.EqualValues(t, 0, Stock(out[0]))
	assert.EqualValues(t, 0, Stock(out[1]))

	// Union recovers the input with no duplicates.
	seen := make(map[any]int)
	for _, rec := range append(append([]inventory.Record{}, in...), out...) {
		seen[rec["id"]]++
	}
	assert.Len(t, seen, len(records))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %v", id)
	}
}

func TestFilter_FractionalStockIsOnHand(t *testing.T) {
	rec := inventory.Record{"nombre": "Jarabe", "existencias": 0.5}
	assert.True(t, InStock.Match(rec))
	assert.False(t, OutOfStock.Match(rec))
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	records := stockRecords(0, 5)
	before := fmt.Sprint(records)

	_ = Filter(records, InStock)
	_, err := RenderHTMLTable(records, CategoryMedications)
	require.NoError(t, err)

	assert.Equal(t, before, fmt.Sprint(records))
	assert.Len(t, records, 2)
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name string
		rec  inventory.Record
		want bool
	}{
		{"zero stock", inventory.Record{"existencias": float64(0)}, true},
		{"fractional stock", inventory.Record{"existencias": 0.5}, false},
		{"negative stock", inventory.Record{"cantidad": float64(-1)}, true},
		{"low status", inventory.Record{"existencias": float64(10), "estado": "Bajo"}, true},
		{"depleted status", inventory.Record{"existencias": float64(10), "estado": "depleted"}, true},
		{"healthy", inventory.Record{"existencias": float64(10), "estado": "normal"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight.Match(tt.rec))
		})
	}
}

func TestNewPredicate_Errors(t *testing.T) {
	_, err := NewPredicate("syntax", "stock >")
	assert.Error(t, err)

	_, err = NewPredicate("not bool", "stock + 1")
	assert.Error(t, err)

	_, err = NewPredicate("unknown var", "price > 0")
	assert.Error(t, err)

	p, err := NewPredicate("custom", `stock > 2 && status != "agotado"`)
	require.NoError(t, err)
	assert.True(t, p.Match(inventory.Record{"existencias": float64(3)}))
}
