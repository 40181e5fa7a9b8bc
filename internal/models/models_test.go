package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNames(t *testing.T) {
	assert.Equal(t, "traffic_sign_plan", TrafficSignPlanKind.String())
	assert.Equal(t, "traffic_sign_plans", TrafficSignPlanKind.Table())
	assert.Equal(t, "trafficsignplan", TrafficSignPlanKind.Slug())
	assert.Equal(t, TrafficSignRealKind, TrafficSignPlanKind.Counterpart())
}

func TestParseKind(t *testing.T) {
	for _, in := range []string{"additional_sign_real", "additionalsignreal", "additionalsignreals", "ADDITIONAL_SIGN_REALS"} {
		k, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, AdditionalSignRealKind, k)
	}
	_, ok := ParseKind("lamppost")
	assert.False(t, ok)
}

func TestRegistryCoversEveryKind(t *testing.T) {
	kinds := AllKinds()
	assert.Len(t, kinds, 16)
	assert.Len(t, PlanKinds(), 8)
	for _, k := range kinds {
		d := NewDevice(k)
		require.NotNil(t, d, k.String())
		assert.Equal(t, k, d.Kind())
		assert.Equal(t, k.Table(), d.TableName())
		_, planned := d.(PlannedDevice)
		_, isReal := d.(RealDevice)
		assert.Equal(t, k.IsPlan(), planned, k.String())
		assert.Equal(t, !k.IsPlan(), isReal, k.String())
		for _, p := range Info(k).Parents {
			assert.Equal(t, k.Variant, p.Target.Variant, "%s parent %s", k, p.Column)
		}
	}
}

func TestTrafficSignRealCascadesToAdditionalSigns(t *testing.T) {
	info := Info(TrafficSignRealKind)
	require.Len(t, info.Cascade, 1)
	assert.Equal(t, AdditionalSignRealKind, info.Cascade[0].Kind)
	assert.Empty(t, Info(TrafficSignPlanKind).Cascade)
}

func TestTargetModelAllows(t *testing.T) {
	assert.True(t, TargetNone.Allows(FamilyMount))
	assert.True(t, TargetTrafficSign.Allows(FamilyTrafficSign))
	assert.False(t, TargetTrafficSign.Allows(FamilyAdditionalSign))
}

func TestArrowDirectionValuesAreDistinct(t *testing.T) {
	seen := map[ArrowDirection]bool{}
	for a := ArrowStraight; a <= ArrowUTurn; a++ {
		assert.False(t, seen[a])
		seen[a] = true
	}
	assert.False(t, ArrowDirection(0).Valid())
}

func TestDateJSON(t *testing.T) {
	var holder struct {
		D *Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"31.12.2023"}`), &holder))
	require.NotNil(t, holder.D)
	assert.Equal(t, NewDate(2023, time.December, 31), *holder.D)

	out, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2023-12-31"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &holder))
	assert.Nil(t, holder.D)

	_, err = ParseDate("tomorrow")
	assert.Error(t, err)
}
