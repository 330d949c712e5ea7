package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitEqually(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		participants []string
		want         []string
		wantErr      bool
	}{
		{
			name:         "even split",
			total:        "100",
			participants: []string{"Alice", "Bob"},
			want:         []string{"50", "50"},
		},
		{
			name:         "leftover cents go to the first participants",
			total:        "10",
			participants: []string{"Alice", "Bob", "Charlie"},
			want:         []string{"3.34", "3.33", "3.33"},
		},
		{
			name:         "total is rounded to cents first",
			total:        "0.025",
			participants: []string{"Alice", "Bob"},
			want:         []string{"0.02", "0.01"},
		},
		{
			name:         "no participants should error",
			total:        "10",
			participants: nil,
			wantErr:      true,
		},
		{
			name:         "negative total should error",
			total:        "-10",
			participants: []string{"Alice"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := SplitEqually(d(tt.total), tt.participants)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitEqually() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(shares) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.want))
			}
			sum := decimal.Zero
			for i, s := range shares {
				if s.Party != tt.participants[i] {
					t.Errorf("share %d party = %s, want %s", i, s.Party, tt.participants[i])
				}
				if !s.Amount.Equal(d(tt.want[i])) {
					t.Errorf("%s share = %s, want %s", s.Party, s.Amount, tt.want[i])
				}
				sum = sum.Add(s.Amount)
			}
			if !sum.Equal(d(tt.total).Round(2)) {
				t.Errorf("shares sum to %s, want %s", sum, d(tt.total).Round(2))
			}
		})
	}
}

func TestShareEdges(t *testing.T) {
	t.Run("participants owe the payer", func(t *testing.T) {
		edges, err := ShareEdges("Alice", []Share{
			{Party: "Alice", Amount: d("10")},
			{Party: "Bob", Amount: d("10")},
			{Party: "Charlie", Amount: d("0")},
			{Party: "", Amount: d("5")},
		})
		if err != nil {
			t.Fatalf("ShareEdges failed: %v", err)
		}
		// Alice's own share stays as a self edge; netting drops it.
		if len(edges) != 2 {
			t.Fatalf("expected 2 edges, got %d: %v", len(edges), edges)
		}
		if edges[1].Debtor != "Bob" || edges[1].Creditor != "Alice" || !edges[1].Amount.Equal(d("10")) {
			t.Errorf("unexpected edge %v", edges[1])
		}

		plan := Net(edges)
		if !equalTransfers(plan, []Transfer{transfer("Bob", "Alice", "10")}) {
			t.Errorf("Net(ShareEdges) = %v", plan)
		}
	})

	t.Run("negative share should error", func(t *testing.T) {
		_, err := ShareEdges("Alice", []Share{{Party: "Bob", Amount: d("-1")}})
		if err == nil {
			t.Error("expected error for negative share")
		}
	})

	t.Run("missing payer should error", func(t *testing.T) {
		_, err := ShareEdges("", []Share{{Party: "Bob", Amount: d("1")}})
		if err == nil {
			t.Error("expected error for missing payer")
		}
	})
}

func TestReverseEdges(t *testing.T) {
	reversed := ReverseEdges([]DebtEdge{
		edge("Bob", "Alice", "10"),
		edge("Alice", "Alice", "10"),
	})
	if len(reversed) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(reversed))
	}
	if reversed[0].Debtor != "Alice" || reversed[0].Creditor != "Bob" {
		t.Errorf("unexpected reversed edge %v", reversed[0])
	}

	// An expense and its reversal cancel out.
	combined := append([]DebtEdge{edge("Bob", "Alice", "10")}, reversed...)
	if plan := Net(combined); len(plan) != 0 {
		t.Errorf("expected empty plan, got %v", plan)
	}
}
