package file

import (
	"context"
	"sort"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const kindParameter = "parameters"

// ParameterRepository stores catalog parameters as one JSON document each.
type ParameterRepository struct {
	store *store
}

func (r *ParameterRepository) Save(ctx context.Context, parameter *models.Parameter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.getByKey(parameter.Key)
	if err != nil {
		return err
	}

	if existing != nil && existing.ID != parameter.ID {
		return persistence.NewStoreError("Save", "parameter", parameter.ID, persistence.ErrDuplicateParameterKey)
	}

	return r.store.write(kindParameter, parameter.ID, parameter)
}

func (r *ParameterRepository) GetByID(ctx context.Context, id string) (*models.Parameter, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var parameter models.Parameter
	if err := r.store.read(kindParameter, id, &parameter, persistence.ErrParameterNotFound); err != nil {
		return nil, err
	}

	return &parameter, nil
}

func (r *ParameterRepository) GetByKey(ctx context.Context, key string) (*models.Parameter, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	parameter, err := r.getByKey(key)
	if err != nil {
		return nil, err
	}

	if parameter == nil {
		return nil, persistence.ErrParameterNotFound
	}

	return parameter, nil
}

func (r *ParameterRepository) List(ctx context.Context) ([]*models.Parameter, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.list()
}

func (r *ParameterRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.remove(kindParameter, id, persistence.ErrParameterNotFound)
}

func (r *ParameterRepository) getByKey(key string) (*models.Parameter, error) {
	parameters, err := r.list()
	if err != nil {
		return nil, err
	}

	for _, p := range parameters {
		if p.Key == key {
			return p, nil
		}
	}

	return nil, nil
}

func (r *ParameterRepository) list() ([]*models.Parameter, error) {
	ids, err := r.store.ids(kindParameter)
	if err != nil {
		return nil, err
	}

	parameters := make([]*models.Parameter, 0, len(ids))

	for _, id := range ids {
		var parameter models.Parameter
		if err := r.store.read(kindParameter, id, &parameter, persistence.ErrParameterNotFound); err != nil {
			return nil, err
		}

		parameters = append(parameters, &parameter)
	}

	sort.Slice(parameters, func(i, j int) bool { return parameters[i].Key < parameters[j].Key })

	return parameters, nil
}
