package file

import (
	"context"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const kindFamily = "families"

// familyDoc is the stored shape: the family row plus its outgoing
// composition declarations.
type familyDoc struct {
	Family        *models.NodeFamily           `json:"family"`
	Relationships []*models.FamilyRelationship `json:"relationships,omitempty"`
}

// FamilyRepository stores node families and their relationships.
type FamilyRepository struct {
	store *store
}

func (r *FamilyRepository) Save(ctx context.Context, family *models.NodeFamily) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.getByName(family.Name)
	if err != nil {
		return err
	}

	if existing != nil && existing.Family.ID != family.ID {
		return persistence.NewStoreError("Save", "family", family.ID, persistence.ErrDuplicateFamilyName)
	}

	doc := familyDoc{Family: family}

	var current familyDoc
	if err := r.store.read(kindFamily, family.ID, &current, nil); err == nil {
		doc.Relationships = current.Relationships
	}

	return r.store.write(kindFamily, family.ID, &doc)
}

func (r *FamilyRepository) GetByID(ctx context.Context, id string) (*models.NodeFamily, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(id)
	if err != nil {
		return nil, err
	}

	return doc.Family, nil
}

func (r *FamilyRepository) GetByName(ctx context.Context, name string) (*models.NodeFamily, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.getByName(name)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, persistence.ErrFamilyNotFound
	}

	return doc.Family, nil
}

func (r *FamilyRepository) List(ctx context.Context) ([]*models.NodeFamily, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.list()
	if err != nil {
		return nil, err
	}

	families := make([]*models.NodeFamily, 0, len(docs))
	for _, doc := range docs {
		families = append(families, doc.Family)
	}

	return families, nil
}

// Delete cascades to the family's versions, subnodes, and the relationship
// rows of other families pointing at it.
func (r *FamilyRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.remove(kindFamily, id, persistence.ErrFamilyNotFound); err != nil {
		return err
	}

	versionIDs, err := r.store.ids(kindVersion)
	if err != nil {
		return err
	}

	for _, vid := range versionIDs {
		var doc versionDoc
		if err := r.store.read(kindVersion, vid, &doc, persistence.ErrVersionNotFound); err != nil {
			return err
		}

		if doc.Version.FamilyID == id {
			if err := r.store.remove(kindVersion, vid, persistence.ErrVersionNotFound); err != nil {
				return err
			}
		}
	}

	subnodeIDs, err := r.store.ids(kindSubNode)
	if err != nil {
		return err
	}

	for _, sid := range subnodeIDs {
		var doc subnodeDoc
		if err := r.store.read(kindSubNode, sid, &doc, persistence.ErrSubNodeNotFound); err != nil {
			return err
		}

		if doc.SubNode.FamilyID == id {
			if err := r.store.remove(kindSubNode, sid, persistence.ErrSubNodeNotFound); err != nil {
				return err
			}
		}
	}

	docs, err := r.list()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		kept := doc.Relationships[:0]

		for _, rel := range doc.Relationships {
			if rel.ChildID != id {
				kept = append(kept, rel)
			}
		}

		if len(kept) != len(doc.Relationships) {
			doc.Relationships = kept
			if err := r.store.write(kindFamily, doc.Family.ID, doc); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *FamilyRepository) AddRelationship(ctx context.Context, rel *models.FamilyRelationship) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(rel.ParentID)
	if err != nil {
		return err
	}

	for _, existing := range doc.Relationships {
		if existing.ChildID == rel.ChildID {
			return persistence.NewStoreError("AddRelationship", "family", rel.ParentID, persistence.ErrDuplicateRelationship)
		}
	}

	doc.Relationships = append(doc.Relationships, rel)

	return r.store.write(kindFamily, rel.ParentID, doc)
}

func (r *FamilyRepository) Relationships(ctx context.Context, parentID string) ([]*models.FamilyRelationship, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(parentID)
	if err != nil {
		return nil, err
	}

	rels := make([]*models.FamilyRelationship, len(doc.Relationships))
	copy(rels, doc.Relationships)
	sort.Slice(rels, func(i, j int) bool { return rels[i].Order < rels[j].Order })

	return rels, nil
}

func (r *FamilyRepository) HasRelationship(ctx context.Context, parentID, childID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(parentID)
	if err != nil {
		return false, err
	}

	for _, rel := range doc.Relationships {
		if rel.ChildID == childID {
			return true, nil
		}
	}

	return false, nil
}

func (r *FamilyRepository) get(id string) (*familyDoc, error) {
	var doc familyDoc
	if err := r.store.read(kindFamily, id, &doc, persistence.ErrFamilyNotFound); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *FamilyRepository) getByName(name string) (*familyDoc, error) {
	docs, err := r.list()
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Family.Name == name {
			return doc, nil
		}
	}

	return nil, nil
}

func (r *FamilyRepository) list() ([]*familyDoc, error) {
	ids, err := r.store.ids(kindFamily)
	if err != nil {
		return nil, err
	}

	docs := make([]*familyDoc, 0, len(ids))

	for _, id := range ids {
		var doc familyDoc
		if err := r.store.read(kindFamily, id, &doc, persistence.ErrFamilyNotFound); err != nil {
			return nil, err
		}

		docs = append(docs, &doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Family.Name < docs[j].Family.Name })

	return docs, nil
}
