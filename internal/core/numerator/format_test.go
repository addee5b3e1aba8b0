package numerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_Format(t *testing.T) {
	f := FlatFormat()
	assert.Equal(t, "A0001", f.Format(1))
	assert.Equal(t, "A0443", f.Format(443))
	assert.Equal(t, "A9999", f.Format(9999))
	assert.Equal(t, "A10000", f.Format(10000))
	assert.Equal(t, "A1234567", f.Format(1234567))

	c := CompositeFormat("fas2526kiw", "", 3)
	assert.Equal(t, "FAS2526KIW001", c.Format(1))
	assert.Equal(t, "FAS2526KIW1000", c.Format(1000))

	sep := CompositeFormat("FAS2526KIW", "-", 3)
	assert.Equal(t, "FAS2526KIW-007", sep.Format(7))
}

func TestFormat_Parse(t *testing.T) {
	f := FlatFormat()

	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"A0001", 1, true},
		{"a0042", 42, true},
		{"  A0100 \n", 100, true},
		{"A10000", 10000, true},
		{"A1", 1, true},
		{"A", 0, false},
		{"GARBAGE", 0, false},
		{"B0001", 0, false},
		{"A00X1", 0, false},
		{"A-0001", 0, false},
		{"A+001", 0, false},
		{"A 0001", 0, false},
		{"", 0, false},
		{"A99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := f.Parse(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_ParseComposite(t *testing.T) {
	f := CompositeFormat("FAS2526KIW", "", 3)

	n, ok := f.Parse("fas2526kiw012")
	require.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok = f.Parse("FAS2526CER001")
	assert.False(t, ok, "other group must not match")

	_, ok = f.Parse("FAS2526KIW001-4821")
	assert.False(t, ok, "legacy timestamp suffixes are not canonical")
}

func TestFormat_RoundTrip(t *testing.T) {
	formats := []Format{
		FlatFormat(),
		CompositeFormat("COP2526CER", "", 3),
		CompositeFormat("SAN2526MAN", "/", 5),
	}
	values := []int64{1, 2, 9, 10, 99, 100, 999, 1000, 9999, 10000, 123456789}

	for _, f := range formats {
		for _, n := range values {
			s := f.Format(n)
			got, ok := f.Parse(s)
			require.True(t, ok, s)
			assert.Equal(t, n, got)
			assert.Equal(t, s, f.Format(got))

			canon, ok := f.Canonical(" " + s + " ")
			require.True(t, ok)
			assert.Equal(t, s, canon)
		}
	}
}

func TestFormat_Validate(t *testing.T) {
	assert.NoError(t, FlatFormat().Validate())
	assert.Error(t, Format{Prefix: "A"}.Validate())
	assert.Error(t, Format{PadWidth: 4}.Validate())
}
