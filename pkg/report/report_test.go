package report_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quotawatch/quotawatch/pkg/model"
	"github.com/quotawatch/quotawatch/pkg/report"
)

func sampleRecords(t *testing.T) []model.Usage {
	t.Helper()
	date := time.Date(2025, time.August, 28, 0, 0, 0, 0, time.UTC)
	return []model.Usage{
		{
			Account:     model.Account{Number: "0101234567", Label: "Home"},
			Balance:     57,
			Remaining:   93.09,
			Used:        46.91,
			MainQuota:   140,
			AddonNames:  "Extra Data; Night Boost",
			AddonsPrice: 125,
			RenewalCost: 120,
			TotalCost:   245,
			RenewalDate: &date,
			Success:     true,
		},
		{
			Account: model.Account{Number: "0109876543", Label: "Branch"},
			Success: false,
		},
	}
}

func TestWrite_RowsAndValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_report.xlsx")
	w := report.NewWriter(report.DefaultHints())

	require.NoError(t, w.Write(sampleRecords(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue(report.SheetName, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Store", cell("A1"))
	assert.Equal(t, "Remaining (GB)", cell("E1"))

	assert.Equal(t, "Home", cell("A2"))
	assert.Equal(t, "0101234567", cell("B2"))
	assert.Equal(t, "57 EGP", cell("C2"))
	assert.Equal(t, "140", cell("D2"))
	assert.Equal(t, "93.09", cell("E2"))
	assert.Equal(t, "Extra Data; Night Boost", cell("G2"))
	assert.Equal(t, "245 EGP", cell("J2"))
	assert.Equal(t, "28-08-2025", cell("K2"))
}

func TestWrite_FailedAccountKeptAndMarked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_report.xlsx")
	w := report.NewWriter(report.DefaultHints())

	require.NoError(t, w.Write(sampleRecords(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per account, failures included")

	balance, err := f.GetCellValue(report.SheetName, "C3")
	require.NoError(t, err)
	assert.Equal(t, model.TextError, balance)

	date, err := f.GetCellValue(report.SheetName, "K3")
	require.NoError(t, err)
	assert.Empty(t, date)
}

func TestWrite_ThresholdFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_report.xlsx")
	w := report.NewWriter(report.Hints{Currency: "EGP", YellowGB: 80, RedGB: 20})

	require.NoError(t, w.Write(sampleRecords(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	formats, err := f.GetConditionalFormats(report.SheetName)
	require.NoError(t, err)
	require.Len(t, formats, 1)

	for area, rules := range formats {
		assert.Contains(t, area, "E2")
		require.Len(t, rules, 2)
		assert.Equal(t, "20", rules[0].Value, "red rule first so it outranks yellow")
		assert.Equal(t, "80", rules[1].Value)
	}
}

func TestWrite_EmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_report.xlsx")
	w := report.NewWriter(report.DefaultHints())

	require.NoError(t, w.Write(nil, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1, "just the header")
}
