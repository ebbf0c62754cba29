package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImages_Shapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Images
	}{
		{"array", `["a.png","b.png"]`, Images{"a.png", "b.png"}},
		{"encoded array", `"[\"a.png\",\"b.png\"]"`, Images{"a.png", "b.png"}},
		{"single url", `"https://cdn/x.png"`, Images{"https://cdn/x.png"}},
		{"null", `null`, nil},
		{"empty string", `""`, nil},
		{"empty array", `[]`, nil},
		{"blank entries", `[" ", "c.png"]`, Images{"c.png"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Images
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestImages_Invalid(t *testing.T) {
	var got Images
	assert.Error(t, json.Unmarshal([]byte(`42`), &got))
}

func TestCartLine_Unmarshal(t *testing.T) {
	raw := `{"product_id":7,"title":"Lamp","price":12.5,"seller_name":"ann","images":"[\"l1.png\",\"l2.png\"]","quantity":2}`

	var line CartLine
	require.NoError(t, json.Unmarshal([]byte(raw), &line))

	assert.Equal(t, int64(7), line.ProductID)
	assert.Equal(t, "Lamp", line.Title)
	assert.Equal(t, "ann", line.SellerName)
	assert.Equal(t, "l1.png", line.Image)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.Price.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, line.Subtotal().Equal(decimal.NewFromInt(25)))
}

func TestCartLine_ImageWinsOverImages(t *testing.T) {
	raw := `{"product_id":1,"image":["main.png"],"images":["other.png"],"quantity":1,"price":"1.00"}`

	var line CartLine
	require.NoError(t, json.Unmarshal([]byte(raw), &line))
	assert.Equal(t, "main.png", line.Image)
}

func TestListing_Unmarshal(t *testing.T) {
	raw := `{"id":3,"title":"Bike","price":"199.99","images":"[\"b.png\"]","seller_name":"bo"}`

	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.Equal(t, Images{"b.png"}, l.Images)
	assert.Equal(t, "199.99", l.Price.StringFixed(2))
}
