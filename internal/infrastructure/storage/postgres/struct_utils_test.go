package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testTimestamps is deliberately unexported: embedding it mirrors how
// entity structs share timestamp fields, and the map conversion must
// reach its exported fields without reflecting through the embed itself.
type testTimestamps struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type testLot struct {
	ID       string `db:"id"`
	Quantity int64  `db:"quantity"`
	Internal string
	Skipped  string `db:"-"`
	testTimestamps
}

func TestExtractDBColumns(t *testing.T) {
	want := []string{"id", "quantity", "created_at", "updated_at"}
	assert.Equal(t, want, ExtractDBColumns[testLot]())
}

func TestExtractDBColumns_Pointer(t *testing.T) {
	want := []string{"id", "quantity", "created_at", "updated_at"}
	assert.Equal(t, want, ExtractDBColumns[*testLot]())
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	lot := testLot{
		ID:       "abc",
		Quantity: 7,
		Internal: "hidden",
		Skipped:  "hidden",
		testTimestamps: testTimestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	m := StructToMap(&lot)

	assert.Len(t, m, 4)
	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, int64(7), m["quantity"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, now, m["updated_at"])
	assert.NotContains(t, m, "Internal")
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
