package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/salesmetrics/internal/canonical"
	"github.com/tordrt/salesmetrics/internal/diag"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func line(order, product, price, qty, discount string) canonical.OrderLine {
	l := canonical.OrderLine{OrderID: order, ProductID: product, Discount: decimal.RequireFromString(discount)}
	if price != "" {
		l.UnitPrice = dec(price)
	}
	if qty != "" {
		l.Quantity = dec(qty)
	}
	return l
}

func TestLineRevenue(t *testing.T) {
	tests := []struct {
		name      string
		line      canonical.OrderLine
		want      string
		wantField string
	}{
		{name: "no discount", line: line("1", "1", "18", "10", "0"), want: "180"},
		{name: "ten percent", line: line("1", "2", "19", "5", "0.1"), want: "85.5"},
		{name: "full discount", line: line("1", "3", "19", "5", "1"), want: "0"},
		{name: "fractional quantity", line: line("1", "4", "2.5", "0.5", "0"), want: "1.25"},
		{name: "null price", line: line("1", "5", "", "5", "0"), wantField: "unit_price"},
		{name: "null quantity", line: line("1", "6", "19", "", "0"), wantField: "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LineRevenue(tt.line)
			if tt.wantField != "" {
				var ile *InvalidLineError
				require.True(t, errors.As(err, &ile))
				assert.Equal(t, tt.wantField, ile.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func snapshot() *canonical.Snapshot {
	return &canonical.Snapshot{
		Orders: []canonical.Order{
			// shipped early
			{ID: "1", CustomerID: "A", OrderDate: date("2024-01-05"), RequiredDate: date("2024-01-20"), ShippedDate: date("2024-01-10"), Freight: decimal.RequireFromString("32.38")},
			// shipped exactly on the required date
			{ID: "2", CustomerID: "B", OrderDate: date("2024-01-15"), RequiredDate: date("2024-01-30"), ShippedDate: date("2024-01-30")},
			// late
			{ID: "3", CustomerID: "A", OrderDate: date("2024-03-02"), RequiredDate: date("2024-03-10"), ShippedDate: date("2024-03-12")},
			// not shipped
			{ID: "4", CustomerID: "C", OrderDate: date("2024-03-20"), RequiredDate: date("2024-04-01")},
			// no order date, no lines
			{ID: "5", CustomerID: "B", RequiredDate: date("2024-05-01"), ShippedDate: date("2024-04-28")},
		},
		Lines: []canonical.OrderLine{
			line("1", "1", "0.335", "1", "0"),
			line("1", "2", "0.335", "1", "0"),
			line("2", "1", "18", "2", "0"),
			line("3", "1", "18", "20", "0.25"),
			line("3", "2", "", "3", "0"),
			line("4", "2", "19", "1", "0"),
		},
	}
}

func TestCompute(t *testing.T) {
	d := diag.New()
	res, err := NewComputer(d, nil, 1).Compute(context.Background(), snapshot())
	require.NoError(t, err)
	require.Len(t, res.Sales, 5)

	tests := []struct {
		order     string
		revenue   string
		shipped   bool
		onTime    bool
		cycleDays float64
		hasCycle  bool
		valid     int
		invalid   int
	}{
		// 0.335 + 0.335 is summed before rounding
		{order: "1", revenue: "0.67", shipped: true, onTime: true, cycleDays: 5, hasCycle: true, valid: 2},
		{order: "2", revenue: "36", shipped: true, onTime: true, cycleDays: 15, hasCycle: true, valid: 1},
		{order: "3", revenue: "270", shipped: true, onTime: false, cycleDays: 10, hasCycle: true, valid: 1, invalid: 1},
		{order: "4", revenue: "19", shipped: false, onTime: false, valid: 1},
		{order: "5", revenue: "0", shipped: true, onTime: true},
	}

	for _, tt := range tests {
		t.Run("order "+tt.order, func(t *testing.T) {
			rec, ok := res.Sale(tt.order)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.revenue).Equal(rec.Revenue), "revenue %s", rec.Revenue)
			assert.Equal(t, tt.shipped, rec.Shipped)
			assert.Equal(t, tt.onTime, rec.OnTime)
			days, hasCycle := rec.CycleDays()
			assert.Equal(t, tt.hasCycle, hasCycle)
			assert.InDelta(t, tt.cycleDays, days, 1e-9)
			assert.Equal(t, tt.valid, rec.ValidLines)
			assert.Equal(t, tt.invalid, rec.InvalidLines)
		})
	}

	first, _ := res.Sale("1")
	assert.True(t, decimal.RequireFromString("32.38").Equal(first.Freight))
	assert.Equal(t, 1, first.OnTimeFlag())
	assert.Equal(t, 1, first.ShippedFlag())
	unshipped, _ := res.Sale("4")
	assert.Equal(t, 0, unshipped.ShippedFlag())
	assert.Nil(t, unshipped.Cycle)

	_, ok := res.Sale("missing")
	assert.False(t, ok)

	assert.Len(t, res.Lines, 5)
	assert.Equal(t, 1, d.Count(diag.InvalidLine))
	assert.Equal(t, []string{"3/2"}, d.Entries()[0].Samples)
}

func TestComputeMonthly(t *testing.T) {
	res, err := NewComputer(diag.New(), nil, 1).Compute(context.Background(), snapshot())
	require.NoError(t, err)

	got := make([]string, 0, len(res.Monthly))
	for _, m := range res.Monthly {
		got = append(got, m.ProductID+" "+m.Month+" "+m.Revenue.String())
	}
	assert.Equal(t, []string{
		"1 2024-01 36.335",
		"1 2024-03 270",
		"2 2024-01 0.335",
		"2 2024-03 19",
	}, got)
}

func TestComputeShardedMatchesSingle(t *testing.T) {
	single, err := NewComputer(diag.New(), nil, 1).Compute(context.Background(), snapshot())
	require.NoError(t, err)

	for _, shards := range []int{2, 3, 5, 8} {
		sharded, err := NewComputer(diag.New(), nil, shards).Compute(context.Background(), snapshot())
		require.NoError(t, err)
		assert.Equal(t, single.Sales, sharded.Sales, "shards=%d", shards)
		assert.Equal(t, single.Lines, sharded.Lines, "shards=%d", shards)
		require.Len(t, sharded.Monthly, len(single.Monthly))
		for i := range single.Monthly {
			assert.Equal(t, single.Monthly[i].ProductID, sharded.Monthly[i].ProductID)
			assert.Equal(t, single.Monthly[i].Month, sharded.Monthly[i].Month)
			assert.True(t, single.Monthly[i].Revenue.Equal(sharded.Monthly[i].Revenue))
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	res, err := NewComputer(diag.New(), nil, 4).Compute(context.Background(), &canonical.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, res.Sales)
	assert.Empty(t, res.Monthly)
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewComputer(diag.New(), nil, 2).Compute(ctx, snapshot())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonthKey(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "2025-01", MonthKey(ts))
	assert.Equal(t, "2025", YearKey(ts))
	assert.Equal(t, "0999", YearKey(time.Date(999, 6, 1, 0, 0, 0, 0, time.UTC)))
}
