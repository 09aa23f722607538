package charts

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeangle/internal/core"
)

func TestClampOptions(t *testing.T) {
	assert.Equal(t, Options{Width: 1200, Height: 500, DPI: 144}, ClampOptions(0, 0, 0))
	assert.Equal(t, Options{Width: 320, Height: 2400, DPI: 300}, ClampOptions(10, 9000, 1000))
	assert.Equal(t, Options{Width: 800, Height: 600, DPI: 72}, ClampOptions(800, 600, 1))
}

func TestPlaceholders(t *testing.T) {
	o := ClampOptions(0, 0, 0)

	svg := string(Spending(nil, true, o))
	assert.Contains(t, svg, MsgNoSpending)
	assert.Contains(t, svg, `width="1200"`)

	assert.Contains(t, string(NetPosition(nil, o)), MsgNoSnapshots)
	assert.Contains(t, string(BalanceByAccount(nil, o)), MsgNoSnapshots)

	assert.Contains(t, string(Placeholder("<b>", o)), "&lt;b&gt;")
}

func TestNetPositionSingleDateFallsBack(t *testing.T) {
	snaps := []core.BalanceSnapshot{{
		Date:    core.NewDate(2025, 1, 1),
		Balance: core.NewMoney(decimal.NewFromInt(100), core.EUR),
		Type:    core.BalanceDebit,
	}}
	svg := string(NetPosition(snaps, ClampOptions(0, 0, 0)))
	assert.Contains(t, svg, MsgNotEnough)
}

func TestChartsRenderSVG(t *testing.T) {
	o := ClampOptions(640, 480, 96)
	giro := "Giro"
	snaps := []core.BalanceSnapshot{
		{ID: 1, Date: core.NewDate(2025, 1, 1), Balance: core.NewMoney(decimal.NewFromInt(1000), core.EUR), Type: core.BalanceDebit, Account: &giro},
		{ID: 2, Date: core.NewDate(2025, 2, 1), Balance: core.NewMoney(decimal.NewFromInt(1200), core.EUR), Type: core.BalanceDebit, Account: &giro},
		{ID: 3, Date: core.NewDate(2025, 2, 1), Balance: core.NewMoney(decimal.NewFromInt(300), core.EUR), Type: core.BalanceCredit},
		{ID: 4, Date: core.NewDate(2025, 3, 1), Balance: core.NewMoney(decimal.NewFromInt(250), core.EUR), Type: core.BalanceCredit},
	}

	net := string(NetPosition(snaps, o))
	assert.True(t, strings.HasPrefix(net, "<svg"), net)
	assert.NotContains(t, net, MsgNotEnough)

	byAccount := string(BalanceByAccount(snaps, o))
	assert.Contains(t, byAccount, "Giro (debit)")
	assert.Contains(t, byAccount, "Unassigned (credit)")

	points := []core.SpendingPoint{
		{Month: core.Month{Year: 2025, Month: time.January}, Category: "Food", Total: decimal.NewFromInt(-120)},
		{Month: core.Month{Year: 2025, Month: time.January}, Category: "Rent", Total: decimal.NewFromInt(-800)},
		{Month: core.Month{Year: 2025, Month: time.February}, Category: "Food", Total: decimal.NewFromInt(-90)},
	}
	assert.True(t, strings.HasPrefix(string(Spending(points, true, o)), "<svg"))
	assert.True(t, strings.HasPrefix(string(Spending(points, false, o)), "<svg"))
}

func TestRendererCachesUntilInvalidated(t *testing.T) {
	r := NewRenderer(time.Minute, nil)
	o := ClampOptions(0, 0, 0)
	calls := 0
	draw := func() ([]byte, error) {
		calls++
		return []byte("<svg/>"), nil
	}

	for i := 0; i < 3; i++ {
		svg, err := r.Render("balance", o, draw)
		require.NoError(t, err)
		assert.Equal(t, "<svg/>", string(svg))
	}
	assert.Equal(t, 1, calls)

	_, err := r.Render("balance", ClampOptions(800, 0, 0), draw)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "different size is a different entry")

	r.Invalidate()
	_, err = r.Render("balance", o, draw)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	_, err = r.Render("broken", o, func() ([]byte, error) { return nil, errors.New("db down") })
	require.Error(t, err)
	assert.Equal(t, 1, r.Cache().Size())
}
