package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemPurchasers(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want []string
	}{
		{"unclaimed and unassigned", Item{}, []string{}},
		{"claimers only", Item{ClaimerIDs: []string{"a", "b"}}, []string{"a", "b"}},
		{"assigned giver only", Item{AssignedGiverID: "g"}, []string{"g"}},
		{"giver also claims", Item{AssignedGiverID: "a", ClaimerIDs: []string{"a"}}, []string{"a"}},
		{"claimer and giver", Item{AssignedGiverID: "g", ClaimerIDs: []string{"a"}}, []string{"a", "g"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, tt.item.Purchasers())
		})
	}
}
