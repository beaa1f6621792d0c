package file

import (
	"context"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const kindSubNode = "subnodes"

// subnodeDoc is the stored shape: the subnode row plus its parameter values.
type subnodeDoc struct {
	SubNode *models.SubNode                 `json:"subnode"`
	Values  []*models.SubNodeParameterValue `json:"values,omitempty"`
}

// SubNodeRepository stores subnode instances and performs the deploy
// transition.
type SubNodeRepository struct {
	store *store
}

func (r *SubNodeRepository) Save(ctx context.Context, subnode *models.SubNode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := r.list()
	if err != nil {
		return err
	}

	for _, doc := range all {
		if doc.SubNode.ID != subnode.ID &&
			doc.SubNode.FamilyID == subnode.FamilyID &&
			doc.SubNode.Name == subnode.Name &&
			doc.SubNode.Version == subnode.Version {
			return persistence.NewStoreError("Save", "subnode", subnode.ID, persistence.ErrDuplicateSubNodeName)
		}
	}

	doc := subnodeDoc{SubNode: subnode}

	var current subnodeDoc
	if err := r.store.read(kindSubNode, subnode.ID, &current, nil); err == nil && current.SubNode != nil {
		doc.Values = current.Values
	}

	return r.store.write(kindSubNode, subnode.ID, &doc)
}

func (r *SubNodeRepository) GetByID(ctx context.Context, id string) (*models.SubNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(id)
	if err != nil {
		return nil, err
	}

	return doc.SubNode, nil
}

func (r *SubNodeRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.SubNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.list()
	if err != nil {
		return nil, err
	}

	subnodes := make([]*models.SubNode, 0)

	for _, doc := range docs {
		if doc.SubNode.FamilyID == familyID {
			subnodes = append(subnodes, doc.SubNode)
		}
	}

	return subnodes, nil
}

func (r *SubNodeRepository) ListLineage(ctx context.Context, lineageID string) ([]*models.SubNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.lineage(lineageID)
	if err != nil {
		return nil, err
	}

	subnodes := make([]*models.SubNode, 0, len(docs))
	for _, doc := range docs {
		subnodes = append(subnodes, doc.SubNode)
	}

	return subnodes, nil
}

func (r *SubNodeRepository) MaxLineageVersion(ctx context.Context, lineageID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.lineage(lineageID)
	if err != nil {
		return 0, err
	}

	maxVersion := 0
	for _, doc := range docs {
		if doc.SubNode.Version > maxVersion {
			maxVersion = doc.SubNode.Version
		}
	}

	return maxVersion, nil
}

func (r *SubNodeRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.remove(kindSubNode, id, persistence.ErrSubNodeNotFound)
}

// Deploy marks the target deployed and every other version of the lineage
// undeployed, atomically under the store lock.
func (r *SubNodeRepository) Deploy(ctx context.Context, lineageID, subnodeID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	target, err := r.get(subnodeID)
	if err != nil {
		return err
	}

	docs, err := r.lineage(lineageID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.SubNode.ID == subnodeID {
			continue
		}

		if doc.SubNode.IsDeployed {
			doc.SubNode.IsDeployed = false
			if err := r.store.write(kindSubNode, doc.SubNode.ID, doc); err != nil {
				return err
			}
		}
	}

	target.SubNode.IsDeployed = true

	return r.store.write(kindSubNode, subnodeID, target)
}

func (r *SubNodeRepository) Values(ctx context.Context, subnodeID string) ([]*models.SubNodeParameterValue, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(subnodeID)
	if err != nil {
		return nil, err
	}

	values := make([]*models.SubNodeParameterValue, len(doc.Values))
	copy(values, doc.Values)

	return values, nil
}

// CountValueRefs reports how many subnode versions carry a value for the
// catalog parameter.
func (r *SubNodeRepository) CountValueRefs(ctx context.Context, parameterID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.list()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, doc := range docs {
		for _, value := range doc.Values {
			if value.ParameterID == parameterID {
				count++
			}
		}
	}

	return count, nil
}

func (r *SubNodeRepository) SetValue(ctx context.Context, value *models.SubNodeParameterValue) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(value.SubNodeID)
	if err != nil {
		return err
	}

	for _, existing := range doc.Values {
		if existing.ParameterID == value.ParameterID {
			existing.Value = value.Value

			return r.store.write(kindSubNode, value.SubNodeID, doc)
		}
	}

	doc.Values = append(doc.Values, value)

	return r.store.write(kindSubNode, value.SubNodeID, doc)
}

func (r *SubNodeRepository) RemoveValue(ctx context.Context, subnodeID, parameterID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(subnodeID)
	if err != nil {
		return err
	}

	kept := doc.Values[:0]

	for _, existing := range doc.Values {
		if existing.ParameterID != parameterID {
			kept = append(kept, existing)
		}
	}

	doc.Values = kept

	return r.store.write(kindSubNode, subnodeID, doc)
}

func (r *SubNodeRepository) get(id string) (*subnodeDoc, error) {
	var doc subnodeDoc
	if err := r.store.read(kindSubNode, id, &doc, persistence.ErrSubNodeNotFound); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *SubNodeRepository) lineage(lineageID string) ([]*subnodeDoc, error) {
	docs, err := r.list()
	if err != nil {
		return nil, err
	}

	members := make([]*subnodeDoc, 0)

	for _, doc := range docs {
		if doc.SubNode.LineageID() == lineageID {
			members = append(members, doc)
		}
	}

	return members, nil
}

func (r *SubNodeRepository) list() ([]*subnodeDoc, error) {
	ids, err := r.store.ids(kindSubNode)
	if err != nil {
		return nil, err
	}

	docs := make([]*subnodeDoc, 0, len(ids))

	for _, id := range ids {
		var doc subnodeDoc
		if err := r.store.read(kindSubNode, id, &doc, persistence.ErrSubNodeNotFound); err != nil {
			return nil, err
		}

		docs = append(docs, &doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].SubNode.Name != docs[j].SubNode.Name {
			return docs[i].SubNode.Name < docs[j].SubNode.Name
		}

		return docs[i].SubNode.Version < docs[j].SubNode.Version
	})

	return docs, nil
}
