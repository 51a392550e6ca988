package paramstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut    *ssm.GetParameterOutput
	getErr    error
	lastGetIn *ssm.GetParameterInput

	stored     map[string]string
	batchErr   error
	batchCalls [][]string
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastGetIn = in
	return f.getOut, f.getErr
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batchCalls = append(f.batchCalls, in.Names)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := &ssm.GetParametersOutput{}
	for _, n := range in.Names {
		if v, ok := f.stored[n]; ok {
			out.Parameters = append(out.Parameters, types.Parameter{Name: strPtr(n), Value: strPtr(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, n)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func mustNew(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	c, err := New(api)
	require.NoError(t, err)
	return c
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/lead-engine/open-ai-token"), Value: strPtr(`{"token":"sk"}`), Type: types.ParameterTypeSecureString,
	}}}
	v, err := mustNew(t, api).GetParameter(context.Background(), " /lead-engine/open-ai-token ")
	require.NoError(t, err)
	require.Equal(t, `{"token":"sk"}`, v)
	require.Equal(t, "/lead-engine/open-ai-token", *api.lastGetIn.Name)
	require.True(t, *api.lastGetIn.WithDecryption)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	_, err := mustNew(t, api).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_NotFound(t *testing.T) {
	api := &fakeAPI{getErr: fmt.Errorf("operation error SSM: GetParameter: %w", &types.ParameterNotFound{})}
	_, err := mustNew(t, api).GetParameter(context.Background(), "/lead-engine/scoring-rules")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	_, err := mustNew(t, api).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	_, err := mustNew(t, &fakeAPI{}).GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestGetParameters_BatchesAndSkipsMissing(t *testing.T) {
	api := &fakeAPI{stored: map[string]string{}}
	var names []string
	for i := 0; i < 12; i++ {
		n := fmt.Sprintf("/p/%02d", i)
		names = append(names, n)
		if i%2 == 0 {
			api.stored[n] = fmt.Sprintf("v%d", i)
		}
	}

	got, err := mustNew(t, api).GetParameters(context.Background(), names...)
	require.NoError(t, err)
	require.Len(t, api.batchCalls, 2)
	require.Len(t, api.batchCalls[0], 10)
	require.Len(t, api.batchCalls[1], 2)
	require.Len(t, got, 6)
	require.Equal(t, "v10", got["/p/10"])
	_, ok := got["/p/01"]
	require.False(t, ok)
}

func TestGetParameters_Errors(t *testing.T) {
	_, err := mustNew(t, &fakeAPI{}).GetParameters(context.Background(), "/p/a", " ")
	require.ErrorContains(t, err, "name is required")

	_, err = mustNew(t, &fakeAPI{batchErr: errors.New("throttled")}).GetParameters(context.Background(), "/p/a")
	require.ErrorContains(t, err, "throttled")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}
