package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// UnassignedAccount keys snapshots that are not linked to an account.
const UnassignedAccount = "unassigned"

type (
	// AccountBuckets holds the latest balance of one account per bucket.
	// DEBIT and INVESTMENT share the debit bucket.
	AccountBuckets struct {
		AccountID   string       `json:"accountId"`
		Debit       *MoneyAmount `json:"debit"`
		Credit      *MoneyAmount `json:"credit"`
		Loans       *MoneyAmount `json:"loans"`
		SharedDebit *MoneyAmount `json:"sharedDebit"`
	}

	PositionTotals struct {
		TotalDebit       MoneyAmount `json:"totalDebit"`
		TotalSharedDebit MoneyAmount `json:"totalSharedDebit"`
		TotalCredit      MoneyAmount `json:"totalCredit"`
		TotalLoans       MoneyAmount `json:"totalLoans"`
		SavingsBudget    MoneyAmount `json:"savingsBudget"`
		NetPosition      MoneyAmount `json:"netPosition"`
	}

	// AccountPosition is the monthly net-position snapshot.
	AccountPosition struct {
		ID            int64            `json:"-"`
		Month         Month            `json:"-"`
		SnapshotDate  Date             `json:"snapshotDate"`
		Accounts      []AccountBuckets `json:"accounts"`
		SavingsBudget MoneyAmount      `json:"savingsBudget"`
		Totals        PositionTotals   `json:"totals"`
	}
)

// LatestBuckets keeps, for every account and bucket, the newest snapshot dated
// on or before asOf. Snapshots are walked newest first and the first one seen
// for an account+bucket wins; accounts come out in the order they were first
// seen.
func LatestBuckets(snapshots []BalanceSnapshot, asOf Date) []AccountBuckets {
	ordered := make([]BalanceSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if !s.Date.After(asOf.Time) {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date.Time) {
			return ordered[i].Date.After(ordered[j].Date.Time)
		}
		return ordered[i].ID > ordered[j].ID
	})

	index := make(map[string]int)
	var out []AccountBuckets
	for _, s := range ordered {
		key := UnassignedAccount
		if s.AccountKey != nil && *s.AccountKey != "" {
			key = *s.AccountKey
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, AccountBuckets{AccountID: key})
		}
		bal := s.Balance
		acc := &out[i]
		switch s.Type {
		case BalanceCredit:
			if acc.Credit == nil {
				acc.Credit = &bal
			}
		case BalanceLoan:
			if acc.Loans == nil {
				acc.Loans = &bal
			}
		default:
			if acc.Debit == nil {
				acc.Debit = &bal
			}
		}
	}
	return out
}

// ComputeTotals sums every bucket across accounts and derives
//
//	netPosition = totalDebit + totalSharedDebit + savingsBudget - totalCredit - totalLoans
//
// Absent buckets count as zero. All amounts must share the savings budget's
// currency.
func ComputeTotals(accounts []AccountBuckets, savings MoneyAmount) (PositionTotals, error) {
	var debit, shared, credit, loans []MoneyAmount
	for _, a := range accounts {
		if a.Debit != nil {
			debit = append(debit, *a.Debit)
		}
		if a.SharedDebit != nil {
			shared = append(shared, *a.SharedDebit)
		}
		if a.Credit != nil {
			credit = append(credit, *a.Credit)
		}
		if a.Loans != nil {
			loans = append(loans, *a.Loans)
		}
	}

	var (
		t   PositionTotals
		err error
	)
	if t.TotalDebit, err = sumMoney(debit, savings.Currency); err != nil {
		return PositionTotals{}, fmt.Errorf("total debit: %w", err)
	}
	if t.TotalSharedDebit, err = sumMoney(shared, savings.Currency); err != nil {
		return PositionTotals{}, fmt.Errorf("total shared debit: %w", err)
	}
	if t.TotalCredit, err = sumMoney(credit, savings.Currency); err != nil {
		return PositionTotals{}, fmt.Errorf("total credit: %w", err)
	}
	if t.TotalLoans, err = sumMoney(loans, savings.Currency); err != nil {
		return PositionTotals{}, fmt.Errorf("total loans: %w", err)
	}
	t.SavingsBudget = savings

	net := savings
	for _, add := range []MoneyAmount{t.TotalDebit, t.TotalSharedDebit} {
		if net, err = net.Add(add); err != nil {
			return PositionTotals{}, fmt.Errorf("net position: %w", err)
		}
	}
	for _, sub := range []MoneyAmount{t.TotalCredit, t.TotalLoans} {
		if net, err = net.Sub(sub); err != nil {
			return PositionTotals{}, fmt.Errorf("net position: %w", err)
		}
	}
	t.NetPosition = net
	return t, nil
}

// ComputeAccountPosition assembles a monthly position from stored snapshots.
func ComputeAccountPosition(month Month, snapshots []BalanceSnapshot, savings MoneyAmount, shared map[string]MoneyAmount) (AccountPosition, error) {
	accounts := LatestBuckets(snapshots, month.LastDay())
	ids := make([]string, 0, len(shared))
	for id := range shared {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		amount := shared[id]
		found := false
		for i := range accounts {
			if accounts[i].AccountID == id {
				accounts[i].SharedDebit = &amount
				found = true
				break
			}
		}
		if !found {
			accounts = append(accounts, AccountBuckets{AccountID: id, SharedDebit: &amount})
		}
	}

	totals, err := ComputeTotals(accounts, savings)
	if err != nil {
		return AccountPosition{}, err
	}
	return AccountPosition{
		Month:         month,
		SnapshotDate:  month.FirstDay(),
		Accounts:      accounts,
		SavingsBudget: savings,
		Totals:        totals,
	}, nil
}

func sumMoney(values []MoneyAmount, fallbackCurrency string) (MoneyAmount, error) {
	if len(values) == 0 {
		return MoneyAmount{Amount: decimal.Zero, Currency: fallbackCurrency}, nil
	}
	total := MoneyAmount{Amount: decimal.Zero, Currency: values[0].Currency}
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return MoneyAmount{}, err
		}
	}
	return total, nil
}
