package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
)

func catalog(params ...*models.Parameter) map[string]*models.Parameter {
	byID := make(map[string]*models.Parameter, len(params))
	for _, p := range params {
		byID[p.ID] = p
	}

	return byID
}

func TestResolve_CascadePriority(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "timeout", Datatype: models.ParameterTypeInteger, DefaultValue: "30"},
		&models.Parameter{ID: "p2", Key: "retries", Datatype: models.ParameterTypeInteger, DefaultValue: "3"},
		&models.Parameter{ID: "p3", Key: "endpoint", Datatype: models.ParameterTypeString, DefaultValue: "http://localhost"},
	)

	tests := []struct {
		name          string
		versionParams []*models.NodeParameter
		subnodeValues []*models.SubNodeParameterValue
		expected      map[string]string
	}{
		{
			name: "defaults apply when version attaches without a value",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1"},
				{VersionID: "v1", ParameterID: "p2"},
			},
			expected: map[string]string{"timeout": "30", "retries": "3"},
		},
		{
			name: "version value overrides the default",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1", Value: "60"},
				{VersionID: "v1", ParameterID: "p2"},
			},
			expected: map[string]string{"timeout": "60", "retries": "3"},
		},
		{
			name: "subnode value overrides both levels",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1", Value: "60"},
			},
			subnodeValues: []*models.SubNodeParameterValue{
				{SubNodeID: "s1", ParameterID: "p1", Value: "90"},
			},
			expected: map[string]string{"timeout": "90"},
		},
		{
			name: "unattached catalog parameters stay out of the result",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1"},
			},
			expected: map[string]string{"timeout": "30"},
		},
		{
			name: "subnode override without an attachment surfaces the parameter",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1"},
			},
			subnodeValues: []*models.SubNodeParameterValue{
				{SubNodeID: "s1", ParameterID: "p3", Value: "http://prod"},
			},
			expected: map[string]string{"timeout": "30", "endpoint": "http://prod"},
		},
		{
			name: "empty subnode value falls through like an empty version value",
			versionParams: []*models.NodeParameter{
				{VersionID: "v1", ParameterID: "p1", Value: "60"},
				{VersionID: "v1", ParameterID: "p2"},
			},
			subnodeValues: []*models.SubNodeParameterValue{
				{SubNodeID: "s1", ParameterID: "p1", Value: ""},
				{SubNodeID: "s1", ParameterID: "p2", Value: ""},
				{SubNodeID: "s1", ParameterID: "p3", Value: ""},
			},
			expected: map[string]string{"timeout": "60", "retries": "3", "endpoint": "http://localhost"},
		},
		{
			name:     "empty input resolves to an empty map",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := Resolve(Input{
				Parameters:    params,
				VersionParams: tt.versionParams,
				SubNodeValues: tt.subnodeValues,
			})

			assert.Equal(t, tt.expected, resolved)
		})
	}
}

func TestAnnotated_ReportsSources(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "timeout", Datatype: models.ParameterTypeInteger, DefaultValue: "30"},
		&models.Parameter{ID: "p2", Key: "retries", Datatype: models.ParameterTypeInteger, DefaultValue: "3"},
		&models.Parameter{ID: "p3", Key: "verbose", Datatype: models.ParameterTypeBoolean, DefaultValue: "false"},
	)

	values := Annotated(Input{
		Parameters: params,
		VersionParams: []*models.NodeParameter{
			{VersionID: "v1", ParameterID: "p1", Value: "60"},
			{VersionID: "v1", ParameterID: "p2"},
			{VersionID: "v1", ParameterID: "p3"},
		},
		SubNodeValues: []*models.SubNodeParameterValue{
			{SubNodeID: "s1", ParameterID: "p3", Value: "true"},
		},
	})

	require.Len(t, values, 3)

	bySource := make(map[string]Source)
	for _, v := range values {
		bySource[v.Key] = v.Source
	}

	assert.Equal(t, SourceVersion, bySource["timeout"])
	assert.Equal(t, SourceDefault, bySource["retries"])
	assert.Equal(t, SourceSubNode, bySource["verbose"])
}

func TestAnnotated_SortedByKey(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "zeta", Datatype: models.ParameterTypeString},
		&models.Parameter{ID: "p2", Key: "alpha", Datatype: models.ParameterTypeString},
		&models.Parameter{ID: "p3", Key: "mid", Datatype: models.ParameterTypeString},
	)

	values := Annotated(Input{
		Parameters: params,
		VersionParams: []*models.NodeParameter{
			{VersionID: "v1", ParameterID: "p1"},
			{VersionID: "v1", ParameterID: "p2"},
			{VersionID: "v1", ParameterID: "p3"},
		},
	})

	require.Len(t, values, 3)
	assert.Equal(t, "alpha", values[0].Key)
	assert.Equal(t, "mid", values[1].Key)
	assert.Equal(t, "zeta", values[2].Key)
}

func TestResolve_IsPure(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "timeout", Datatype: models.ParameterTypeInteger, DefaultValue: "30"},
	)

	input := Input{
		Parameters: params,
		VersionParams: []*models.NodeParameter{
			{VersionID: "v1", ParameterID: "p1", Value: "60"},
		},
	}

	first := Resolve(input)
	second := Resolve(input)

	assert.Equal(t, first, second)
	assert.Equal(t, "60", input.VersionParams[0].Value, "resolution must not mutate its input")
}

func TestCoerced(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "timeout", Datatype: models.ParameterTypeInteger, DefaultValue: "30"},
		&models.Parameter{ID: "p2", Key: "verbose", Datatype: models.ParameterTypeBoolean, DefaultValue: "true"},
		&models.Parameter{ID: "p3", Key: "rate", Datatype: models.ParameterTypeFloat, DefaultValue: "0.5"},
	)

	coerced, err := Coerced(Input{
		Parameters: params,
		VersionParams: []*models.NodeParameter{
			{VersionID: "v1", ParameterID: "p1"},
			{VersionID: "v1", ParameterID: "p2"},
			{VersionID: "v1", ParameterID: "p3"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(30), coerced["timeout"])
	assert.Equal(t, true, coerced["verbose"])
	assert.Equal(t, 0.5, coerced["rate"])
}

func TestCoerced_ReportsMalformedValue(t *testing.T) {
	params := catalog(
		&models.Parameter{ID: "p1", Key: "timeout", Datatype: models.ParameterTypeInteger, DefaultValue: "30"},
	)

	_, err := Coerced(Input{
		Parameters: params,
		VersionParams: []*models.NodeParameter{
			{VersionID: "v1", ParameterID: "p1", Value: "not-a-number"},
		},
	})

	var coercionErr *CoercionError

	require.ErrorAs(t, err, &coercionErr)
	assert.Equal(t, "timeout", coercionErr.Key)
	assert.Equal(t, "not-a-number", coercionErr.Value)
}
