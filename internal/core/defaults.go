package core

// DefaultLedger returns the seed data used when the remote document does
// not exist yet or cannot be reached. Offline operation must never leave
// the caller with an empty screen.
func DefaultLedger() Ledger {
	return Ledger{
		Mine: []Item{
			{ID: "rent", Name: "월세", Amount: 250000, Fixed: true},
			{ID: "mgmt", Name: "관리비", Amount: 170000, Fixed: true},
			{ID: "water", Name: "수도(물)", Amount: 10000},
			{ID: "gas", Name: "가스", Amount: 15300},
			{ID: "elec", Name: "전기", Amount: 93620},
			{ID: "jaewoo-var", Name: "재우(변동비)", Amount: 365200},
		},
		Siblings: []Item{
			{ID: "sib1", Name: "재경(변동비)", Amount: 153089},
		},
	}
}
