// Package persistence provides the data storage abstraction layer for the
// node version, parameter, subnode, and execution repositories.
package persistence

import (
	"context"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Persistence bundles the repositories behind a single durable store.
type Persistence interface {
	Parameters() ParameterRepository
	Families() FamilyRepository
	Versions() VersionRepository
	SubNodes() SubNodeRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ParameterRepository stores the global parameter catalog. Keys are unique
// across the catalog.
type ParameterRepository interface {
	Save(ctx context.Context, parameter *models.Parameter) error
	GetByID(ctx context.Context, id string) (*models.Parameter, error)
	GetByKey(ctx context.Context, key string) (*models.Parameter, error)
	List(ctx context.Context) ([]*models.Parameter, error)
	Delete(ctx context.Context, id string) error
}

// FamilyRepository stores node families and their composition declarations.
type FamilyRepository interface {
	Save(ctx context.Context, family *models.NodeFamily) error
	GetByID(ctx context.Context, id string) (*models.NodeFamily, error)
	GetByName(ctx context.Context, name string) (*models.NodeFamily, error)
	List(ctx context.Context) ([]*models.NodeFamily, error)

	// Delete removes the family and cascades to its versions, links,
	// subnodes, and relationships.
	Delete(ctx context.Context, id string) error

	AddRelationship(ctx context.Context, rel *models.FamilyRelationship) error
	Relationships(ctx context.Context, parentID string) ([]*models.FamilyRelationship, error)
	HasRelationship(ctx context.Context, parentID, childID string) (bool, error)
}

// VersionRepository stores node versions, their parameter overrides, and
// their outgoing composition links.
type VersionRepository interface {
	Save(ctx context.Context, version *models.NodeVersion) error
	GetByID(ctx context.Context, id string) (*models.NodeVersion, error)
	GetByFamilyVersion(ctx context.Context, familyID string, number int) (*models.NodeVersion, error)
	ListByFamily(ctx context.Context, familyID string) ([]*models.NodeVersion, error)
	GetPublished(ctx context.Context, familyID string) (*models.NodeVersion, error)
	MaxVersion(ctx context.Context, familyID string) (int, error)
	CountByFamily(ctx context.Context, familyID string) (int, error)
	Delete(ctx context.Context, id string) error

	// Publish performs the family's single consistency point: every other
	// published version of the family becomes archived, the target becomes
	// published, and the family's is_deployed flag is recomputed, all inside
	// one transaction or critical section. Concurrent calls for the same
	// family must serialize.
	Publish(ctx context.Context, familyID, versionID string) error

	Parameters(ctx context.Context, versionID string) ([]*models.NodeParameter, error)
	SetParameter(ctx context.Context, param *models.NodeParameter) error
	RemoveParameter(ctx context.Context, versionID, parameterID string) error

	// CountParameterRefs reports how many versions attach the catalog
	// parameter, across all families.
	CountParameterRefs(ctx context.Context, parameterID string) (int, error)

	Links(ctx context.Context, versionID string) ([]*models.NodeVersionLink, error)
	AddLink(ctx context.Context, link *models.NodeVersionLink) error
}

// SubNodeRepository stores subnode instances and their parameter values.
type SubNodeRepository interface {
	Save(ctx context.Context, subnode *models.SubNode) error
	GetByID(ctx context.Context, id string) (*models.SubNode, error)
	ListByFamily(ctx context.Context, familyID string) ([]*models.SubNode, error)
	ListLineage(ctx context.Context, lineageID string) ([]*models.SubNode, error)
	MaxLineageVersion(ctx context.Context, lineageID string) (int, error)
	Delete(ctx context.Context, id string) error

	// Deploy marks the target version deployed and every other version of the
	// lineage undeployed, atomically.
	Deploy(ctx context.Context, lineageID, subnodeID string) error

	Values(ctx context.Context, subnodeID string) ([]*models.SubNodeParameterValue, error)
	SetValue(ctx context.Context, value *models.SubNodeParameterValue) error
	RemoveValue(ctx context.Context, subnodeID, parameterID string) error

	// CountValueRefs reports how many subnode versions carry a value for
	// the catalog parameter.
	CountValueRefs(ctx context.Context, parameterID string) (int, error)
}

// ExecutionRepository stores execution records. Log appends are durable
// before they return and sequential per execution. Update covers status,
// completion time, and artifacts; the log is owned by AppendLog. Update is
// a compare-and-set on the status: once a record is terminal it never
// transitions again, and further updates return ErrExecutionFinished.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.NodeExecution) error
	GetByID(ctx context.Context, id string) (*models.NodeExecution, error)
	ListByVersion(ctx context.Context, versionID string) ([]*models.NodeExecution, error)
	Update(ctx context.Context, execution *models.NodeExecution) error
	AppendLog(ctx context.Context, executionID, line string) error
}
