package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Amount
	}{
		{"Number", `12.5`, 12.5},
		{"NumericString", `"40"`, 40},
		{"PaddedString", `" 7.25 "`, 7.25},
		{"NonNumericString", `"abc"`, 0},
		{"EmptyString", `""`, 0},
		{"Null", `null`, 0},
		{"Bool", `true`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			assert.Equal(t, tt.want, a)
		})
	}
}

func TestDate_UnmarshalJSON(t *testing.T) {
	t.Run("CalendarDate", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2025-01-10"`), &d))
		assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d.Time)
	})

	t.Run("Timestamp", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2025-01-10T08:30:00+02:00"`), &d))
		assert.Equal(t, 6, d.UTC().Hour())
	})

	t.Run("EmptyIsZero", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`""`), &d))
		assert.True(t, d.IsZero())
		assert.Nil(t, d.Ptr())
	})

	t.Run("Invalid", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"10/01/2025"`), &d))
	})
}

func TestDurationDays(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, DurationDays(start, end))

	// time of day does not matter
	assert.Equal(t, 5, DurationDays(start.Add(20*time.Hour), end.Add(2*time.Hour)))
	assert.Equal(t, 0, DurationDays(end, start))
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleAdmin.Can(PermManageUsers))
	assert.True(t, RoleService.Can(PermManageCompliance))
	assert.False(t, RoleService.Can(PermManageUsers))
	assert.False(t, RoleService.Can(PermManageCheckout))
	assert.True(t, RoleRestaurant.Can(PermViewServices))
	assert.False(t, RoleRestaurant.Can(PermViewRooms))
	assert.False(t, RoleStudent.Can(PermViewDashboard))

	assert.True(t, RoleAdmin.ConsoleAccess())
	assert.False(t, RoleStudent.ConsoleAccess())
	assert.False(t, Role("root").Valid())
}

func TestPaymentEffective(t *testing.T) {
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	paid := created.Add(48 * time.Hour)

	p := Payment{Meta: Meta{CreatedAt: &created}, Amount: 100}
	assert.Equal(t, 100.0, p.Effective())
	assert.Equal(t, created, p.EffectiveDate())

	p.FinalAmount = 90
	p.PaidDate = &paid
	assert.Equal(t, 90.0, p.Effective())
	assert.Equal(t, paid, p.EffectiveDate())
}

func TestContractCovers(t *testing.T) {
	c := Contract{RoomIDs: []string{"r1", "r2"}}
	assert.True(t, c.Covers("r2"))
	assert.False(t, c.Covers("r3"))
}
