package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/pesowise/backend/internal/model"
)

func TestMonthKey(t *testing.T) {
	// Keys are unpadded, matching the dashboard's historical format.
	if got := MonthKey(day(2026, time.March, 5)); got != "2026-3" {
		t.Errorf("expected 2026-3, got %q", got)
	}
	if got := MonthKey(day(2026, time.November, 5)); got != "2026-11" {
		t.Errorf("expected 2026-11, got %q", got)
	}
}

func TestSortedMonthKeys(t *testing.T) {
	totals := map[string]float64{
		"2026-2":  1,
		"2025-12": 1,
		"2026-10": 1,
		"2026-1":  1,
	}
	keys := SortedMonthKeys(totals)
	want := []string{"2025-12", "2026-1", "2026-2", "2026-10"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}
}

func TestGroupByMonth(t *testing.T) {
	txns := []model.Transaction{
		expense(100, day(2026, time.May, 1), "food", "A"),
		expense(200, day(2026, time.May, 20), "food", "B"),
		income(5000, day(2026, time.June, 1), "Acme"),
	}
	buckets := GroupByMonth(txns)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	may := buckets["2026-5"]
	if len(may) != 2 {
		t.Fatalf("expected 2 transactions in 2026-5, got %d", len(may))
	}
	// Within a bucket, input order is preserved.
	if may[0].Name != "A" || may[1].Name != "B" {
		t.Errorf("bucket order not input order: %q, %q", may[0].Name, may[1].Name)
	}
	if len(buckets["2026-6"]) != 1 {
		t.Errorf("expected 1 transaction in 2026-6, got %d", len(buckets["2026-6"]))
	}
}

func TestGroupByCategory(t *testing.T) {
	txns := []model.Transaction{
		expense(100, day(2026, time.May, 1), "food", "A"),
		expense(200, day(2026, time.May, 2), "transport", "B"),
		expense(300, day(2026, time.May, 3), "food", "C"),
	}
	buckets := GroupByCategory(txns)
	if len(buckets["food"]) != 2 || len(buckets["transport"]) != 1 {
		t.Errorf("unexpected buckets: food=%d transport=%d", len(buckets["food"]), len(buckets["transport"]))
	}
}

func TestMonthlyTotals(t *testing.T) {
	txns := []model.Transaction{
		expense(100, day(2026, time.May, 1), "food", "A"),
		expense(200, day(2026, time.May, 20), "food", "B"),
		expense(300, day(2026, time.June, 1), "food", "C"),
		income(5000, day(2026, time.May, 1), "Acme"),
	}
	totals := MonthlyTotals(txns, isExpense)
	if totals["2026-5"] != 300 || totals["2026-6"] != 300 {
		t.Errorf("unexpected totals: %v", totals)
	}
	if _, ok := totals["2026-4"]; ok {
		t.Error("empty month should be absent, not zero")
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := Mean([]float64{2, 4, 6}); got != 4 {
		t.Errorf("expected 4, got %f", got)
	}
}

func TestStandardDeviation(t *testing.T) {
	if got := StandardDeviation(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := StandardDeviation([]float64{5}); got != 0 {
		t.Errorf("expected 0 for single value, got %f", got)
	}
	// Population stddev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	got := StandardDeviation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > 1e-9 {
		t.Errorf("expected 2, got %f", got)
	}
}

func TestPercentageOfTotal(t *testing.T) {
	if got := PercentageOfTotal(5, 0); got != 0 {
		t.Errorf("expected 0 for zero whole, got %f", got)
	}
	if got := PercentageOfTotal(25, 100); got != 25 {
		t.Errorf("expected 25, got %f", got)
	}
}

func TestLinearTrend(t *testing.T) {
	if got := LinearTrend(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := LinearTrend([]float64{10}); got != 0 {
		t.Errorf("expected 0 for single value, got %f", got)
	}
	if got := LinearTrend([]float64{10, 20, 60}); got != 25 {
		t.Errorf("expected 25, got %f", got)
	}
	if got := LinearTrend([]float64{60, 10}); got != -50 {
		t.Errorf("expected -50, got %f", got)
	}
}

func TestGroupByWeekday(t *testing.T) {
	txns := []model.Transaction{
		{Date: day(2026, time.May, 4)}, // Monday
		{Date: day(2026, time.May, 11)},
		{Date: day(2026, time.May, 5)}, // Tuesday
	}
	counts := GroupByWeekday(txns)
	if counts[int(time.Monday)] != 2 || counts[int(time.Tuesday)] != 1 {
		t.Errorf("unexpected weekday counts: %v", counts)
	}
}
