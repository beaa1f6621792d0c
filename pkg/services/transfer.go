package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Transfer exports a family as a portable JSON document and imports such
// documents back. Catalog parameters travel by key; an import requires every
// referenced key to exist in the target catalog.
type Transfer struct {
	persistence persistence.Persistence
	versioning  *Versioning
	subnodes    *SubNodes
	logger      *slog.Logger
	schema      *gojsonschema.Schema
}

// NewTransfer creates a new export/import service.
func NewTransfer(persistence persistence.Persistence, versioning *Versioning, subnodes *SubNodes, logger *slog.Logger) (*Transfer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(familyExportSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile import schema: %w", err)
	}

	return &Transfer{
		persistence: persistence,
		versioning:  versioning,
		subnodes:    subnodes,
		logger:      logger.With("module", "transfer"),
		schema:      schema,
	}, nil
}

// FamilyExport is the portable representation of a family.
type FamilyExport struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Versions    []VersionExport `json:"versions"`
	SubNodes    []SubNodeExport `json:"subnodes,omitempty"`
}

// VersionExport carries one version with its parameter attachments, keyed by
// catalog key. Composition links are site-specific and do not travel.
type VersionExport struct {
	Version    int           `json:"version"`
	ScriptRef  string        `json:"script_ref,omitempty"`
	Changelog  string        `json:"changelog,omitempty"`
	Parameters []ValueExport `json:"parameters,omitempty"`
}

// SubNodeExport carries one subnode version with its values.
type SubNodeExport struct {
	Name           string        `json:"name"`
	Version        int           `json:"version"`
	Description    string        `json:"description,omitempty"`
	VersionComment string        `json:"version_comment,omitempty"`
	Values         []ValueExport `json:"values,omitempty"`
}

// ValueExport is a (catalog key, value) pair.
type ValueExport struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Export assembles the portable document for a family.
func (t *Transfer) Export(ctx context.Context, familyID string) (*FamilyExport, error) {
	family, err := t.persistence.Families().GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}

	keys, err := t.catalogKeys(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := t.persistence.Versions().ListByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	doc := &FamilyExport{
		Name:        family.Name,
		Description: family.Description,
		Versions:    make([]VersionExport, 0, len(versions)),
	}

	// Oldest first so imports replay in creation order.
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })

	for _, version := range versions {
		parameters, err := t.persistence.Versions().Parameters(ctx, version.ID)
		if err != nil {
			return nil, err
		}

		exported := VersionExport{
			Version:   version.Version,
			ScriptRef: version.ScriptRef,
			Changelog: version.Changelog,
		}

		for _, parameter := range parameters {
			key, ok := keys[parameter.ParameterID]
			if !ok {
				continue
			}

			exported.Parameters = append(exported.Parameters, ValueExport{Key: key, Value: parameter.Value})
		}

		doc.Versions = append(doc.Versions, exported)
	}

	subnodes, err := t.persistence.SubNodes().ListByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	for _, subnode := range subnodes {
		values, err := t.persistence.SubNodes().Values(ctx, subnode.ID)
		if err != nil {
			return nil, err
		}

		exported := SubNodeExport{
			Name:           subnode.Name,
			Version:        subnode.Version,
			Description:    subnode.Description,
			VersionComment: subnode.VersionComment,
		}

		for _, value := range values {
			key, ok := keys[value.ParameterID]
			if !ok {
				continue
			}

			exported.Values = append(exported.Values, ValueExport{Key: key, Value: value.Value})
		}

		doc.SubNodes = append(doc.SubNodes, exported)
	}

	return doc, nil
}

// Import validates a document against the schema and recreates the family
// under fresh identifiers. Versions arrive as drafts; deployment state and
// composition links do not travel.
func (t *Transfer) Import(ctx context.Context, payload []byte, createdBy string) (*models.NodeFamily, error) {
	if err := t.validate(payload); err != nil {
		return nil, err
	}

	var doc FamilyExport
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, NewServiceError("Import", "payload is not valid JSON", ErrInvalidRequest)
	}

	if err := t.checkKeys(ctx, &doc); err != nil {
		return nil, err
	}

	family, err := t.versioning.CreateFamily(ctx, CreateFamilyInput{
		Name:        doc.Name,
		Description: doc.Description,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return nil, err
	}

	for _, exported := range doc.Versions {
		version, err := t.versioning.SeedVersion(ctx, family.ID, exported.ScriptRef, createdBy)
		if err != nil {
			return nil, err
		}

		if exported.Changelog != "" {
			version.Changelog = exported.Changelog
			if err := t.persistence.Versions().Save(ctx, version); err != nil {
				return nil, fmt.Errorf("failed to save changelog: %w", err)
			}
		}

		for _, value := range exported.Parameters {
			parameter, err := t.persistence.Parameters().GetByKey(ctx, value.Key)
			if err != nil {
				return nil, err
			}

			if err := t.versioning.SetParameter(ctx, version.ID, parameter.ID, value.Value); err != nil {
				return nil, err
			}
		}
	}

	if err := t.importSubNodes(ctx, family.ID, doc.SubNodes); err != nil {
		return nil, err
	}

	t.logger.InfoContext(ctx, "imported family",
		"family_id", family.ID,
		"name", family.Name,
		"versions", len(doc.Versions))

	return family, nil
}

func (t *Transfer) importSubNodes(ctx context.Context, familyID string, exports []SubNodeExport) error {
	// Version 1 first so later versions can chain onto the lineage.
	sort.Slice(exports, func(i, j int) bool {
		if exports[i].Name != exports[j].Name {
			return exports[i].Name < exports[j].Name
		}

		return exports[i].Version < exports[j].Version
	})

	lineageHeads := make(map[string]string)

	for _, exported := range exports {
		var (
			subnode *models.SubNode
			err     error
		)

		if headID, ok := lineageHeads[exported.Name]; ok {
			subnode, err = t.subnodes.CreateNewVersion(ctx, headID, exported.VersionComment)
		} else {
			subnode, err = t.subnodes.Create(ctx, CreateSubNodeInput{
				FamilyID:    familyID,
				Name:        exported.Name,
				Description: exported.Description,
			})
		}

		if err != nil {
			return err
		}

		lineageHeads[exported.Name] = subnode.ID

		for _, value := range exported.Values {
			parameter, err := t.persistence.Parameters().GetByKey(ctx, value.Key)
			if err != nil {
				return err
			}

			if err := t.subnodes.SetValue(ctx, subnode.ID, parameter.ID, value.Value); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *Transfer) validate(payload []byte) error {
	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return NewServiceError("Import", "payload is not valid JSON", ErrInvalidRequest)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return NewServiceError("Import", strings.Join(messages, "; "), ErrInvalidRequest)
	}

	return nil
}

// checkKeys rejects the whole document up front when a referenced catalog
// key is missing, before any rows are created.
func (t *Transfer) checkKeys(ctx context.Context, doc *FamilyExport) error {
	seen := make(map[string]bool)

	collect := func(values []ValueExport) {
		for _, value := range values {
			seen[value.Key] = true
		}
	}

	for _, version := range doc.Versions {
		collect(version.Parameters)
	}

	for _, subnode := range doc.SubNodes {
		collect(subnode.Values)
	}

	for key := range seen {
		if _, err := t.persistence.Parameters().GetByKey(ctx, key); err != nil {
			return NewServiceError("Import",
				fmt.Sprintf("catalog parameter %q does not exist", key), ErrInvalidRequest)
		}
	}

	return nil
}

func (t *Transfer) catalogKeys(ctx context.Context) (map[string]string, error) {
	parameters, err := t.persistence.Parameters().List(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(parameters))
	for _, parameter := range parameters {
		keys[parameter.ID] = parameter.Key
	}

	return keys, nil
}

const familyExportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "versions"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 255},
		"description": {"type": "string"},
		"versions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["version"],
				"properties": {
					"version": {"type": "integer", "minimum": 1},
					"script_ref": {"type": "string"},
					"changelog": {"type": "string"},
					"parameters": {"$ref": "#/definitions/values"}
				}
			}
		},
		"subnodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "version"],
				"properties": {
					"name": {"type": "string", "minLength": 1, "maxLength": 255},
					"version": {"type": "integer", "minimum": 1},
					"description": {"type": "string"},
					"version_comment": {"type": "string"},
					"values": {"$ref": "#/definitions/values"}
				}
			}
		}
	},
	"definitions": {
		"values": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["key", "value"],
				"properties": {
					"key": {"type": "string", "minLength": 1},
					"value": {"type": "string"}
				}
			}
		}
	}
}`
