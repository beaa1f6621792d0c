package file

import (
	"context"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const kindVersion = "versions"

// versionDoc is the stored shape: the version row plus its parameter
// overrides and outgoing links.
type versionDoc struct {
	Version    *models.NodeVersion      `json:"version"`
	Parameters []*models.NodeParameter  `json:"parameters,omitempty"`
	Links      []*models.NodeVersionLink `json:"links,omitempty"`
}

// VersionRepository stores node versions and performs the publish transition.
type VersionRepository struct {
	store *store
}

func (r *VersionRepository) Save(ctx context.Context, version *models.NodeVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc := versionDoc{Version: version}

	var current versionDoc
	if err := r.store.read(kindVersion, version.ID, &current, nil); err == nil && current.Version != nil {
		doc.Parameters = current.Parameters
		doc.Links = current.Links
	}

	return r.store.write(kindVersion, version.ID, &doc)
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.NodeVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(id)
	if err != nil {
		return nil, err
	}

	return doc.Version, nil
}

func (r *VersionRepository) GetByFamilyVersion(ctx context.Context, familyID string, number int) (*models.NodeVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.byFamily(familyID)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Version.Version == number {
			return doc.Version, nil
		}
	}

	return nil, persistence.ErrVersionNotFound
}

func (r *VersionRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.NodeVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.byFamily(familyID)
	if err != nil {
		return nil, err
	}

	versions := make([]*models.NodeVersion, 0, len(docs))
	for _, doc := range docs {
		versions = append(versions, doc.Version)
	}

	return versions, nil
}

func (r *VersionRepository) GetPublished(ctx context.Context, familyID string) (*models.NodeVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.byFamily(familyID)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Version.State == models.VersionStatePublished {
			return doc.Version, nil
		}
	}

	return nil, persistence.ErrPublishedVersionNotFound
}

func (r *VersionRepository) MaxVersion(ctx context.Context, familyID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.byFamily(familyID)
	if err != nil {
		return 0, err
	}

	maxVersion := 0
	for _, doc := range docs {
		if doc.Version.Version > maxVersion {
			maxVersion = doc.Version.Version
		}
	}

	return maxVersion, nil
}

func (r *VersionRepository) CountByFamily(ctx context.Context, familyID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := r.byFamily(familyID)
	if err != nil {
		return 0, err
	}

	return len(docs), nil
}

func (r *VersionRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.remove(kindVersion, id, persistence.ErrVersionNotFound)
}

// Publish archives every other published version of the family, publishes
// the target, and recomputes the family's is_deployed flag. The store lock
// makes the whole transition a critical section: two concurrent publishes on
// one family cannot both end published.
func (r *VersionRepository) Publish(ctx context.Context, familyID, versionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	target, err := r.get(versionID)
	if err != nil {
		return err
	}

	docs, err := r.byFamily(familyID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.Version.ID == versionID {
			continue
		}

		if doc.Version.State == models.VersionStatePublished {
			doc.Version.State = models.VersionStateArchived
			if err := r.store.write(kindVersion, doc.Version.ID, doc); err != nil {
				return err
			}
		}
	}

	target.Version.State = models.VersionStatePublished
	if err := r.store.write(kindVersion, versionID, target); err != nil {
		return err
	}

	var family familyDoc
	if err := r.store.read(kindFamily, familyID, &family, persistence.ErrFamilyNotFound); err != nil {
		return err
	}

	family.Family.IsDeployed = true

	return r.store.write(kindFamily, familyID, &family)
}

func (r *VersionRepository) Parameters(ctx context.Context, versionID string) ([]*models.NodeParameter, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(versionID)
	if err != nil {
		return nil, err
	}

	params := make([]*models.NodeParameter, len(doc.Parameters))
	copy(params, doc.Parameters)

	return params, nil
}

// CountParameterRefs reports how many versions attach the catalog parameter.
func (r *VersionRepository) CountParameterRefs(ctx context.Context, parameterID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(kindVersion)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, id := range ids {
		var doc versionDoc
		if err := r.store.read(kindVersion, id, &doc, persistence.ErrVersionNotFound); err != nil {
			return 0, err
		}

		for _, param := range doc.Parameters {
			if param.ParameterID == parameterID {
				count++
			}
		}
	}

	return count, nil
}

func (r *VersionRepository) SetParameter(ctx context.Context, param *models.NodeParameter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(param.VersionID)
	if err != nil {
		return err
	}

	for _, existing := range doc.Parameters {
		if existing.ParameterID == param.ParameterID {
			existing.Value = param.Value

			return r.store.write(kindVersion, param.VersionID, doc)
		}
	}

	doc.Parameters = append(doc.Parameters, param)

	return r.store.write(kindVersion, param.VersionID, doc)
}

func (r *VersionRepository) RemoveParameter(ctx context.Context, versionID, parameterID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(versionID)
	if err != nil {
		return err
	}

	kept := doc.Parameters[:0]

	for _, existing := range doc.Parameters {
		if existing.ParameterID != parameterID {
			kept = append(kept, existing)
		}
	}

	doc.Parameters = kept

	return r.store.write(kindVersion, versionID, doc)
}

func (r *VersionRepository) Links(ctx context.Context, versionID string) ([]*models.NodeVersionLink, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.get(versionID)
	if err != nil {
		return nil, err
	}

	links := make([]*models.NodeVersionLink, len(doc.Links))
	copy(links, doc.Links)
	sort.Slice(links, func(i, j int) bool { return links[i].Order < links[j].Order })

	return links, nil
}

func (r *VersionRepository) AddLink(ctx context.Context, link *models.NodeVersionLink) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.get(link.ParentVersionID)
	if err != nil {
		return err
	}

	for _, existing := range doc.Links {
		if existing.ChildVersionID == link.ChildVersionID {
			return persistence.NewStoreError("AddLink", "version", link.ParentVersionID, persistence.ErrDuplicateLink)
		}
	}

	doc.Links = append(doc.Links, link)

	return r.store.write(kindVersion, link.ParentVersionID, doc)
}

func (r *VersionRepository) get(id string) (*versionDoc, error) {
	var doc versionDoc
	if err := r.store.read(kindVersion, id, &doc, persistence.ErrVersionNotFound); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *VersionRepository) byFamily(familyID string) ([]*versionDoc, error) {
	ids, err := r.store.ids(kindVersion)
	if err != nil {
		return nil, err
	}

	docs := make([]*versionDoc, 0, len(ids))

	for _, id := range ids {
		var doc versionDoc
		if err := r.store.read(kindVersion, id, &doc, persistence.ErrVersionNotFound); err != nil {
			return nil, err
		}

		if doc.Version.FamilyID == familyID {
			docs = append(docs, &doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Version.Version > docs[j].Version.Version })

	return docs, nil
}
