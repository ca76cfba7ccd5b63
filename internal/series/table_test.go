package series

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, source Resource, index []time.Time, columns []string, values ...[]float64) *Table {
	t.Helper()
	tbl, err := NewTable(index, columns, values)
	require.NoError(t, err)
	tbl.Source = source
	return tbl
}

func TestNewTable_ShapeMismatch(t *testing.T) {
	_, err := NewTable([]time.Time{date(2020, 1, 1)}, []string{"a", "b"}, [][]float64{{1}})
	assert.Error(t, err)

	_, err = NewTable([]time.Time{date(2020, 1, 1)}, []string{"a"}, [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestOuterJoin(t *testing.T) {
	market := mustTable(t, "Market_Factor",
		[]time.Time{date(2020, 1, 3), date(2020, 1, 2)},
		[]string{"Rm_minus_Rf"},
		[]float64{0.3, 0.2})
	smb := mustTable(t, "SMB_Factor",
		[]time.Time{date(2020, 1, 3), date(2020, 1, 6)},
		[]string{"SMB"},
		[]float64{-0.1, 0.4})

	joined, err := OuterJoin(market, smb)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{date(2020, 1, 2), date(2020, 1, 3), date(2020, 1, 6)}, joined.Index)
	assert.Equal(t, []string{"Rm_minus_Rf", "SMB"}, joined.Columns)
	assert.True(t, joined.IsSorted())

	mkt, _ := joined.Column("Rm_minus_Rf")
	assert.Equal(t, 0.2, mkt[0])
	assert.Equal(t, 0.3, mkt[1])
	assert.True(t, math.IsNaN(mkt[2]))

	s, _ := joined.Column("SMB")
	assert.True(t, math.IsNaN(s[0]))
	assert.Equal(t, -0.1, s[1])
	assert.Equal(t, 0.4, s[2])
}

func TestOuterJoin_ColumnCollision(t *testing.T) {
	idx := []time.Time{date(2020, 1, 2)}
	a := mustTable(t, "HML_Factor", idx, []string{"value"}, []float64{1})
	b := mustTable(t, "WML_Factor", idx, []string{"value"}, []float64{2})

	joined, err := OuterJoin(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"value", "value_WML_Factor"}, joined.Columns)
}

func TestOuterJoin_DuplicateDate(t *testing.T) {
	a := mustTable(t, "SMB_Factor", []time.Time{date(2020, 1, 2), date(2020, 1, 2)}, []string{"SMB"}, []float64{1, 2})

	_, err := OuterJoin(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateIndex)
	assert.Contains(t, err.Error(), "SMB_Factor")
}

func TestOuterJoin_Empty(t *testing.T) {
	joined, err := OuterJoin()
	require.NoError(t, err)
	assert.Equal(t, 0, joined.Len())
	assert.Equal(t, 0, joined.Width())
}

func TestTable_RowsByDateIsStable(t *testing.T) {
	tbl := mustTable(t, "", []time.Time{date(2020, 2, 1), date(2020, 1, 1), date(2020, 2, 1)}, []string{"v"}, []float64{1, 2, 3})
	assert.Equal(t, []int{1, 0, 2}, tbl.RowsByDate())
	assert.False(t, tbl.IsSorted())
	assert.Equal(t, []float64{3}, tbl.Row(2))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
}

func TestTable_MarshalJSON(t *testing.T) {
	tbl := mustTable(t, "Risk_Free", []time.Time{date(2020, 1, 2)}, []string{"Risk_free", "other"}, []float64{0.5}, []float64{math.NaN()})

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source": "Risk_Free",
		"columns": ["Risk_free", "other"],
		"rows": [{"date": "2020-01-02", "values": [0.5, null]}]
	}`, string(data))
}
