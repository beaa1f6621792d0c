package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransfer(t *testing.T) (*Transfer, *Versioning, *Catalog, *SubNodes) {
	t.Helper()

	store, versioning, catalog, subnodes := newTestServices(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	transfer, err := NewTransfer(store, versioning, subnodes, logger)
	require.NoError(t, err)

	return transfer, versioning, catalog, subnodes
}

func TestExportImport_RoundTrip(t *testing.T) {
	transfer, versioning, catalog, subnodes := newTestTransfer(t)
	ctx := context.Background()

	timeout, err := catalog.CreateParameter(ctx, CreateParameterInput{Key: "timeout", Datatype: "integer", DefaultValue: "30"})
	require.NoError(t, err)

	family := seedFamily(t, versioning, "exportable")

	version, err := versioning.SeedVersion(ctx, family.ID, "scripts/run", "")
	require.NoError(t, err)
	require.NoError(t, versioning.SetParameter(ctx, version.ID, timeout.ID, "60"))

	subnode, err := subnodes.Create(ctx, CreateSubNodeInput{FamilyID: family.ID, Name: "batch"})
	require.NoError(t, err)
	require.NoError(t, subnodes.SetValue(ctx, subnode.ID, timeout.ID, "90"))

	doc, err := transfer.Export(ctx, family.ID)
	require.NoError(t, err)
	require.Len(t, doc.Versions, 1)
	require.Len(t, doc.SubNodes, 1)
	assert.Equal(t, []ValueExport{{Key: "timeout", Value: "60"}}, doc.Versions[0].Parameters)
	assert.Equal(t, []ValueExport{{Key: "timeout", Value: "90"}}, doc.SubNodes[0].Values)

	doc.Name = "imported-copy"

	payload, err := json.Marshal(doc)
	require.NoError(t, err)

	imported, err := transfer.Import(ctx, payload, "importer")
	require.NoError(t, err)
	assert.NotEqual(t, family.ID, imported.ID)

	versions, err := versioning.ListVersions(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "scripts/run", versions[0].ScriptRef)

	importedSubnodes, err := subnodes.ListByFamily(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, importedSubnodes, 1)

	values, err := subnodes.Values(ctx, importedSubnodes[0].ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "90", values[0].Value)
}

func TestImport_SchemaRejection(t *testing.T) {
	transfer, _, _, _ := newTestTransfer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"missing name", `{"versions": []}`},
		{"versions not an array", `{"name": "x", "versions": {}}`},
		{"value pair missing key", `{"name": "x", "versions": [{"version": 1, "parameters": [{"value": "60"}]}]}`},
		{"not json at all", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transfer.Import(ctx, []byte(tt.payload), "")
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestImport_UnknownCatalogKey(t *testing.T) {
	transfer, _, _, _ := newTestTransfer(t)
	ctx := context.Background()

	payload := `{
		"name": "orphan",
		"versions": [
			{"version": 1, "script_ref": "scripts/run", "parameters": [{"key": "no-such-key", "value": "1"}]}
		]
	}`

	_, err := transfer.Import(ctx, []byte(payload), "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "no-such-key")
}
