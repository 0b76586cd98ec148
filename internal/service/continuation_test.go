package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuationTable_TakeConsumes(t *testing.T) {
	table := NewContinuationTable()
	table.Set(1, PendingEdit{Kind: AwaitPrice, ListingID: "l1", MessageID: 7})

	pe, ok := table.Take(1)
	assert.True(t, ok)
	assert.Equal(t, AwaitPrice, pe.Kind)
	assert.Equal(t, "l1", pe.ListingID)

	_, ok = table.Take(1)
	assert.False(t, ok)
}

func TestContinuationTable_NewEditSupersedesOld(t *testing.T) {
	table := NewContinuationTable()
	table.Set(1, PendingEdit{Kind: AwaitPrice, ListingID: "l1"})
	table.Set(1, PendingEdit{Kind: AwaitDescription, ListingID: "l2"})

	pe, ok := table.Take(1)
	assert.True(t, ok)
	assert.Equal(t, AwaitDescription, pe.Kind)
	assert.Equal(t, "l2", pe.ListingID)
}

func TestContinuationTable_ClearDropsPending(t *testing.T) {
	table := NewContinuationTable()
	table.Set(1, PendingEdit{Kind: AwaitLocation, ListingID: "l1"})
	table.Clear(1)

	_, ok := table.Take(1)
	assert.False(t, ok)
}

func TestContinuationTable_PerChatIsolation(t *testing.T) {
	table := NewContinuationTable()
	table.Set(1, PendingEdit{Kind: AwaitPrice, ListingID: "l1"})
	table.Set(2, PendingEdit{Kind: AwaitDescription, ListingID: "l2"})

	pe, ok := table.Take(1)
	assert.True(t, ok)
	assert.Equal(t, "l1", pe.ListingID)

	pe, ok = table.Take(2)
	assert.True(t, ok)
	assert.Equal(t, "l2", pe.ListingID)
}
