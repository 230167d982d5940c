package rpctypes_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc/rpctypes"
)

func TestDecodedArgs_Equal(t *testing.T) {
	num := func(n float64) *structpb.Value { return structpb.NewNumberValue(n) }
	str := func(s string) *structpb.Value { return structpb.NewStringValue(s) }

	tests := []struct {
		name string
		a, b rpctypes.DecodedArgs
		want bool
	}{
		{"both empty", nil, nil, true},
		{"identical values", rpctypes.DecodedArgs{num(1), str("x")}, rpctypes.DecodedArgs{num(1), str("x")}, true},
		{"different length", rpctypes.DecodedArgs{num(1)}, rpctypes.DecodedArgs{num(1), num(2)}, false},
		{"different value", rpctypes.DecodedArgs{num(1)}, rpctypes.DecodedArgs{num(2)}, false},
		{"different type at same position", rpctypes.DecodedArgs{num(1)}, rpctypes.DecodedArgs{str("1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestValueEqual_nilIsDistinctFromAnyValue(t *testing.T) {
	v := structpb.NewNumberValue(0)

	assert.True(t, rpctypes.ValueEqual(nil, nil))
	assert.False(t, rpctypes.ValueEqual(nil, v))
	assert.False(t, rpctypes.ValueEqual(v, nil))
	assert.True(t, rpctypes.ValueEqual(v, structpb.NewNumberValue(0)))
	assert.False(t, rpctypes.ValueEqual(v, structpb.NewNumberValue(1)))
}

func TestIsDomainError(t *testing.T) {
	assert.False(t, rpctypes.IsDomainError(nil))
	assert.False(t, rpctypes.IsDomainError(errors.New("boom")))

	resp := rpctypes.DomainError(codes.InvalidArgument, "bad arg %d", 1)
	require.True(t, resp.IsError())
	assert.True(t, rpctypes.IsDomainError(resp.Err))
}

func TestOutcome_doneAndSuspended(t *testing.T) {
	done := rpctypes.Done(rpctypes.OK(structpb.NewStringValue("hi")))
	require.True(t, done.IsDone())
	require.False(t, done.IsSuspended())
	assert.Equal(t, "hi", done.Response().Result.GetStringValue())
	assert.Equal(t, "Outcome(done)", done.String())

	errResp := rpctypes.Done(rpctypes.DomainError(codes.NotFound, "missing"))
	assert.Contains(t, errResp.String(), "Outcome(done, error=")

	suspended := rpctypes.Suspend(7)
	require.False(t, suspended.IsDone())
	require.True(t, suspended.IsSuspended())
	assert.Equal(t, 7, suspended.Resume())
	assert.Equal(t, "Outcome(suspended)", suspended.String())
}

func TestErrUnknownProcedure_isDomainError(t *testing.T) {
	err := rpctypes.ErrUnknownProcedure("demo", "Missing")
	assert.True(t, rpctypes.IsDomainError(err))
}
