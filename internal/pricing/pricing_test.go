package pricing

import (
	"errors"
	"testing"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/catalog"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testBook() *catalog.Snapshot {
	return catalog.NewSnapshot(
		[]models.Product{
			{ID: 1, Name: "Americano", BasePrice: 4500, IsAvailable: true},
			{ID: 2, Name: "Latte", BasePrice: 5000, IsAvailable: true},
			{ID: 3, Name: "Sold out", BasePrice: 3000, IsAvailable: false},
		},
		[]models.Option{
			{ID: 10, Name: "Extra shot", DefaultExtraPrice: 500},
			{ID: 11, Name: "Large", DefaultExtraPrice: 1000},
		},
		[]models.ProductOption{
			{ProductID: 2, OptionID: 10, ExtraPrice: ptr(300)},
		},
	)
}

func TestVerify_TotalEqualsSumOfLines(t *testing.T) {
	t.Parallel()

	lines := []Line{
		{ProductID: 1, Quantity: 2, OptionIDs: []uint{10}},
		{ProductID: 2, Quantity: 1, OptionIDs: []uint{10, 11}},
	}
	// (4500+500)*2 + (5000+300+1000)*1
	q, err := Verify(testBook(), lines, 16300)
	require.NoError(t, err)

	var sum int64
	for _, l := range q.Lines {
		sum += l.LineTotal
	}
	assert.EqualValues(t, 16300, q.Total)
	assert.Equal(t, q.Total, sum)
	assert.EqualValues(t, 5000, q.Lines[0].UnitPrice)
	assert.EqualValues(t, 300, q.Lines[1].Options[0].ExtraPrice)
	assert.Equal(t, "Latte", q.Lines[1].ProductName)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	many := make([]Line, MaxItems+1)
	for i := range many {
		many[i] = Line{ProductID: 1, Quantity: 1}
	}
	tooManyOpts := make([]uint, MaxOptionsPerItem+1)
	for i := range tooManyOpts {
		tooManyOpts[i] = uint(100 + i)
	}

	tests := []struct {
		name      string
		lines     []Line
		total     int64
		wantCode  apperr.Code
		wantIndex int
	}{
		{"zero total", []Line{{ProductID: 1, Quantity: 1}}, 0, apperr.CodeInvalidTotalPrice, apperr.NoIndex},
		{"no items", nil, 4500, apperr.CodeItemsRequired, apperr.NoIndex},
		{"too many items", many, 4500, apperr.CodeItemsTooMany, apperr.NoIndex},
		{"missing product id", []Line{{ProductID: 1, Quantity: 1}, {Quantity: 1}}, 9000, apperr.CodeInvalidProductID, 1},
		{"zero quantity", []Line{{ProductID: 1, Quantity: 0}}, 4500, apperr.CodeInvalidQuantity, 0},
		{"negative quantity", []Line{{ProductID: 1, Quantity: -2}}, 4500, apperr.CodeInvalidQuantity, 0},
		{"too many options", []Line{{ProductID: 1, Quantity: 1, OptionIDs: tooManyOpts}}, 4500, apperr.CodeOptionIDsTooMany, 0},
		{"duplicate option", []Line{{ProductID: 1, Quantity: 1, OptionIDs: []uint{10, 10}}}, 5500, apperr.CodeDuplicateOptionID, 0},
		{"unavailable product", []Line{{ProductID: 3, Quantity: 1}}, 3000, apperr.CodeProductUnavailable, 0},
		{"unknown product", []Line{{ProductID: 1, Quantity: 1}, {ProductID: 99, Quantity: 1}}, 9000, apperr.CodeProductUnavailable, 1},
		{"unknown option", []Line{{ProductID: 1, Quantity: 1, OptionIDs: []uint{77}}}, 4500, apperr.CodeOptionUnavailable, 0},
		{"off by one", []Line{{ProductID: 1, Quantity: 1}}, 4501, apperr.CodeTotalMismatch, apperr.NoIndex},
		{"stale lower price", []Line{{ProductID: 2, Quantity: 1, OptionIDs: []uint{10}}}, 5500, apperr.CodeTotalMismatch, apperr.NoIndex},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := Verify(testBook(), tt.lines, tt.total)
			require.Error(t, err)
			assert.Nil(t, q)

			var e *apperr.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantIndex, e.Index)
		})
	}
}

func TestPrice_Overflow(t *testing.T) {
	t.Parallel()

	book := catalog.NewSnapshot([]models.Product{{ID: 1, Name: "Gold", BasePrice: 1 << 40, IsAvailable: true}}, nil, nil)
	_, err := Price(book, []Line{{ProductID: 1, Quantity: 1 << 30}})
	assert.True(t, errors.Is(err, &apperr.Error{Code: apperr.CodeInvalidQuantity}))
}

func TestIDs(t *testing.T) {
	t.Parallel()

	lines := []Line{
		{ProductID: 2, OptionIDs: []uint{10, 11}},
		{ProductID: 1, OptionIDs: []uint{11}},
		{ProductID: 2},
	}
	assert.Equal(t, []uint{2, 1}, ProductIDs(lines))
	assert.Equal(t, []uint{10, 11}, OptionIDs(lines))
}
